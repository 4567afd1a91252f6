package operations_test

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ONEcampaign/interest-rates/internal/operations"
)

// fakeStep fails with errs[i] on attempt i+1 and succeeds afterwards.
type fakeStep struct {
	operations.BaseStage
	errs        []error
	delay       time.Duration
	outputs     []string
	validateErr error
	calls       atomic.Int32
}

func newStep(id string, f operations.Frequency, errs ...error) *fakeStep {
	return &fakeStep{
		BaseStage: operations.NewBaseStage(id, "Step "+id, f),
		errs:      errs,
	}
}

func (s *fakeStep) Validate(state *operations.OperationState) error {
	return s.validateErr
}

func (s *fakeStep) Execute(ctx context.Context, state *operations.OperationState) error {
	n := int(s.calls.Add(1))
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if n <= len(s.errs) && s.errs[n-1] != nil {
		return s.errs[n-1]
	}
	for _, o := range s.outputs {
		state.AddOutput(s.ID(), o)
	}
	return nil
}

func fastConfig() *operations.Config {
	return operations.NewConfigBuilder().
		WithRetryConfig(operations.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2,
		}).
		Build()
}

// monday and tuesday are fixed dates used to exercise the weekly rule.
var (
	monday  = time.Date(2022, time.October, 3, 9, 0, 0, 0, time.UTC)
	tuesday = monday.AddDate(0, 0, 1)
)
