package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ONEcampaign/interest-rates/internal/operations"
	"github.com/ONEcampaign/interest-rates/internal/shared/testutil"
)

type fakeRunner struct {
	mu       sync.Mutex
	requests []operations.OperationRequest
	err      error
}

func (f *fakeRunner) Execute(_ context.Context, req operations.OperationRequest) (*operations.OperationResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &operations.OperationResponse{ID: "run", Group: "frequent"}, nil
}

func (f *fakeRunner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func TestNewRejectsUnknownTimezone(t *testing.T) {
	_, err := New("Mars/Olympus", nil)
	assert.Error(t, err)
}

func TestAdd(t *testing.T) {
	s, err := New("UTC", nil)
	require.NoError(t, err)
	runner := &fakeRunner{}

	require.NoError(t, s.Add(Job{Name: "charts", Spec: "0 0 6 * * *", Runner: runner}))

	tests := []struct {
		name string
		job  Job
	}{
		{name: "duplicate", job: Job{Name: "charts", Spec: "0 0 7 * * *", Runner: runner}},
		{name: "bad spec", job: Job{Name: "raw", Spec: "every morning", Runner: runner}},
		{name: "minutes only spec", job: Job{Name: "raw", Spec: "0 6 * * *", Runner: runner}},
		{name: "no runner", job: Job{Name: "raw", Spec: "0 0 6 * * *"}},
		{name: "no name", job: Job{Spec: "0 0 6 * * *", Runner: runner}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, s.Add(tt.job))
		})
	}

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "charts", entries[0].Name)
}

func TestRunNow(t *testing.T) {
	s, err := New("Europe/Brussels", nil)
	require.NoError(t, err)

	runner := &fakeRunner{}
	require.NoError(t, s.Add(Job{Name: "charts", Spec: "0 0 6 * * *", Runner: runner}))
	require.NoError(t, s.Add(Job{
		Name:   "raw",
		Spec:   "0 30 6 * * 1",
		Runner: runner,
		Request: func(now time.Time) operations.OperationRequest {
			return operations.OperationRequest{All: true, Refresh: true, Today: now}
		},
	}))

	resp, err := s.RunNow(context.Background(), "charts")
	require.NoError(t, err)
	assert.Equal(t, "run", resp.ID)

	_, err = s.RunNow(context.Background(), "raw")
	require.NoError(t, err)

	require.Equal(t, 2, runner.calls())
	assert.False(t, runner.requests[0].All)
	assert.Equal(t, "Europe/Brussels", runner.requests[0].Today.Location().String())
	assert.True(t, runner.requests[1].All)
	assert.True(t, runner.requests[1].Refresh)

	_, err = s.RunNow(context.Background(), "missing")
	assert.Error(t, err)
}

func TestScheduledRunsAndFailuresAreLogged(t *testing.T) {
	logger, handler := testutil.NewTestLogger()
	s, err := New("UTC", logger)
	require.NoError(t, err)

	runner := &fakeRunner{err: errors.New("upstream down")}
	require.NoError(t, s.Add(Job{Name: "charts", Spec: "* * * * * *", Runner: runner}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	require.Eventually(t, func() bool { return runner.calls() > 0 }, 3*time.Second, 20*time.Millisecond)
	s.Stop()

	testutil.AssertLogContains(t, handler, slog.LevelError, "Job failed")
	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Prev.IsZero())
}
