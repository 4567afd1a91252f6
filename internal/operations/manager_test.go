package operations_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ONEcampaign/interest-rates/internal/errors"
	"github.com/ONEcampaign/interest-rates/internal/operations"
	"github.com/ONEcampaign/interest-rates/internal/shared/testutil"
)

func TestManagerExecuteFrequentGroup(t *testing.T) {
	fed := newStep("fed", operations.FrequencyFrequent)
	fed.outputs = []string{"fed_rate_hikes.csv", "fed_rate_hikes_wide.csv"}
	scatter := newStep("scatter", operations.FrequencyWeekly)

	logger, handler := testutil.NewTestLogger()
	m := operations.NewManager(newRegistry(t, fed, scatter), fastConfig(), logger)

	resp, err := m.Execute(context.Background(), operations.OperationRequest{Today: tuesday})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "frequent", resp.Group)
	assert.Equal(t, operations.OperationStatusCompleted, resp.Status)
	assert.Equal(t, []string{"fed"}, resp.Order)
	assert.Equal(t, []string{"fed_rate_hikes.csv", "fed_rate_hikes_wide.csv"}, resp.Outputs)
	assert.Equal(t, int32(1), fed.calls.Load())
	assert.Equal(t, int32(0), scatter.calls.Load())

	testutil.AssertLogContains(t, handler, slog.LevelInfo, "operation_complete")

	latest, ok := m.Latest()
	require.True(t, ok)
	assert.Equal(t, resp.ID, latest.ID)

	byID, err := m.GetOperation(resp.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.Status, byID.Status)

	second, err := m.Execute(context.Background(), operations.OperationRequest{Today: tuesday})
	require.NoError(t, err)
	history := m.History()
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, resp.ID, history[1].ID)
}

func TestManagerRetriesNetworkErrors(t *testing.T) {
	netErr := apperrors.NewNetworkError("fetch failed", errors.New("connection reset"))
	step := newStep("fed", operations.FrequencyFrequent, netErr, netErr)

	m := operations.NewManager(newRegistry(t, step), fastConfig(), nil)
	resp, err := m.Execute(context.Background(), operations.OperationRequest{All: true})
	require.NoError(t, err)

	assert.Equal(t, int32(3), step.calls.Load())
	assert.Equal(t, 3, resp.Steps["fed"].Attempts)
	assert.Equal(t, operations.StepStatusCompleted, resp.Steps["fed"].Status)
}

func TestManagerDoesNotRetryOtherErrors(t *testing.T) {
	step := newStep("fed", operations.FrequencyFrequent, apperrors.NewParsingError("bad csv", nil))

	m := operations.NewManager(newRegistry(t, step), fastConfig(), nil)
	resp, err := m.Execute(context.Background(), operations.OperationRequest{All: true})
	require.Error(t, err)

	assert.Equal(t, int32(1), step.calls.Load())
	assert.Equal(t, operations.OperationStatusFailed, resp.Status)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
}

func TestManagerSequentialStopsOnFailure(t *testing.T) {
	first := newStep("first", operations.FrequencyWeekly, errors.New("boom"))
	second := newStep("second", operations.FrequencyWeekly)

	m := operations.NewManager(newRegistry(t, first, second), fastConfig(), nil)
	resp, err := m.Execute(context.Background(), operations.OperationRequest{All: true})
	require.Error(t, err)

	assert.Equal(t, operations.StepStatusFailed, resp.Steps["first"].Status)
	assert.Equal(t, operations.StepStatusSkipped, resp.Steps["second"].Status)
	assert.Equal(t, int32(0), second.calls.Load())
	assert.Contains(t, resp.Error, "boom")
}

func TestManagerContinueOnError(t *testing.T) {
	first := newStep("first", operations.FrequencyWeekly, errors.New("boom"))
	second := newStep("second", operations.FrequencyWeekly)

	cfg := fastConfig()
	cfg.ContinueOnError = true
	m := operations.NewManager(newRegistry(t, first, second), cfg, nil)

	resp, err := m.Execute(context.Background(), operations.OperationRequest{All: true})
	require.Error(t, err)
	assert.Equal(t, operations.StepStatusFailed, resp.Steps["first"].Status)
	assert.Equal(t, operations.StepStatusCompleted, resp.Steps["second"].Status)
}

func TestManagerValidationFailure(t *testing.T) {
	step := newStep("scatter", operations.FrequencyWeekly)
	step.validateErr = errors.New("missing source table")

	m := operations.NewManager(newRegistry(t, step), fastConfig(), nil)
	_, err := m.Execute(context.Background(), operations.OperationRequest{All: true})
	require.Error(t, err)
	assert.Equal(t, operations.ErrorTypeValidation, operations.GetErrorType(err))
	assert.Equal(t, int32(0), step.calls.Load())
}

func TestManagerStepTimeout(t *testing.T) {
	step := newStep("slow", operations.FrequencyWeekly)
	step.delay = time.Second

	cfg := fastConfig()
	cfg.SetStageTimeout("slow", 10*time.Millisecond)
	m := operations.NewManager(newRegistry(t, step), cfg, nil)

	resp, err := m.Execute(context.Background(), operations.OperationRequest{All: true})
	require.Error(t, err)
	assert.Equal(t, operations.ErrorTypeTimeout, operations.GetErrorType(err))
	assert.Equal(t, operations.StepStatusFailed, resp.Steps["slow"].Status)
}

func TestManagerParallel(t *testing.T) {
	var steps []operations.Step
	var fakes []*fakeStep
	for _, id := range []string{"a", "b", "c", "d"} {
		s := newStep(id, operations.FrequencyWeekly)
		s.delay = 20 * time.Millisecond
		s.outputs = []string{id + ".csv"}
		steps = append(steps, s)
		fakes = append(fakes, s)
	}

	cfg := fastConfig()
	cfg.ExecutionMode = operations.ExecutionModeParallel
	cfg.MaxConcurrency = 2
	m := operations.NewManager(newRegistry(t, steps...), cfg, nil)

	resp, err := m.Execute(context.Background(), operations.OperationRequest{All: true})
	require.NoError(t, err)
	assert.Equal(t, operations.OperationStatusCompleted, resp.Status)
	assert.Equal(t, []string{"a.csv", "b.csv", "c.csv", "d.csv"}, resp.Outputs)
	for _, s := range fakes {
		assert.Equal(t, int32(1), s.calls.Load(), s.ID())
	}
}

func TestManagerFinalizers(t *testing.T) {
	step := newStep("fed", operations.FrequencyFrequent)
	step.outputs = []string{"fed_rate_hikes.csv"}

	m := operations.NewManager(newRegistry(t, step), fastConfig(), nil)

	var seen atomic.Value
	m.AddFinalizer(func(ctx context.Context, state *operations.OperationState) error {
		seen.Store(state.Outputs())
		return nil
	})
	m.AddFinalizer(func(ctx context.Context, state *operations.OperationState) error {
		return errors.New("publish failed")
	})

	resp, err := m.Execute(context.Background(), operations.OperationRequest{All: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish failed")
	assert.Equal(t, operations.OperationStatusFailed, resp.Status)
	assert.Equal(t, []string{"fed_rate_hikes.csv"}, seen.Load())
	assert.Equal(t, operations.StepStatusCompleted, resp.Steps["fed"].Status)
}

func TestManagerUnknownStep(t *testing.T) {
	m := operations.NewManager(newRegistry(t, newStep("fed", operations.FrequencyFrequent)), fastConfig(), nil)

	resp, err := m.Execute(context.Background(), operations.OperationRequest{Steps: []string{"nope"}})
	require.Error(t, err)
	assert.Equal(t, operations.OperationStatusFailed, resp.Status)

	_, err = m.GetOperation("does-not-exist")
	assert.Error(t, err)
}

func TestManagerCancelledContext(t *testing.T) {
	first := newStep("first", operations.FrequencyWeekly)
	second := newStep("second", operations.FrequencyWeekly)
	m := operations.NewManager(newRegistry(t, first, second), fastConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := m.Execute(ctx, operations.OperationRequest{All: true})
	require.Error(t, err)
	assert.Equal(t, operations.OperationStatusCancelled, resp.Status)
	assert.Equal(t, operations.StepStatusSkipped, resp.Steps["first"].Status)
	assert.Equal(t, operations.StepStatusSkipped, resp.Steps["second"].Status)
}
