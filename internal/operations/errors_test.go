package operations_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/ONEcampaign/interest-rates/internal/errors"
	"github.com/ONEcampaign/interest-rates/internal/operations"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("x"), false},
		{"network", apperrors.NewNetworkError("fetch failed", errors.New("reset")), true},
		{"wrapped upstream", fmt.Errorf("ids: %w", apperrors.NewUpstreamError("ids", 503)), true},
		{"parsing", apperrors.NewParsingError("bad csv", nil), false},
		{"timeout", operations.NewTimeoutError("fed", "1s"), true},
		{"validation", operations.NewValidationError("fed", "bad"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, operations.IsRetryable(tt.err))
		})
	}
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, operations.WrapError(nil, "fed", "failed"))

	cause := errors.New("disk full")
	err := operations.WrapError(cause, "fed", "step execution failed")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, operations.ErrorTypeExecution, operations.GetErrorType(err))
	assert.Equal(t, "[execution] fed: step execution failed: disk full", err.Error())

	existing := operations.NewValidationError("", "bad input")
	wrapped := operations.WrapError(existing, "scatter", "ignored")
	assert.Equal(t, operations.ErrorTypeValidation, operations.GetErrorType(wrapped))
	assert.Equal(t, "scatter", existing.Step)
}
