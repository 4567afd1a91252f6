package operations

import (
	"time"
)

// Frequency says how often a step is due.
type Frequency string

const (
	// FrequencyFrequent steps run on every scheduled run (Fed rates, inflation).
	FrequencyFrequent Frequency = "frequent"
	// FrequencyWeekly steps run once a week (interest charts, debt health).
	FrequencyWeekly Frequency = "weekly"
)

// Default timeouts
const (
	DefaultStageTimeout = 30 * time.Minute
)

// ExecutionMode defines how steps are executed
type ExecutionMode string

const (
	ExecutionModeSequential ExecutionMode = "sequential"
	ExecutionModeParallel   ExecutionMode = "parallel"
)

// Context keys for operation state
const (
	ContextKeyToday     = "today"
	ContextKeyRefresh   = "refresh"
	ContextKeyDryRun    = "dry_run"
	ContextKeyWorkbook  = "workbook_path"
	ContextKeyPublished = "published"
)

// RetryConfig defines retry behavior for steps
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
}

// NewRetryConfig returns the default retry configuration
func NewRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// OperationRequest selects the steps of a run.
//
// Steps names steps explicitly. Otherwise All runs every registered step,
// and with neither set the frequency rule applies: frequent steps always,
// weekly steps only on the configured weekday.
type OperationRequest struct {
	ID      string    `json:"id"`
	Steps   []string  `json:"steps,omitempty"`
	All     bool      `json:"all"`
	Today   time.Time `json:"today"`
	Refresh bool      `json:"refresh"`

	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// OperationResponse represents the response from a operation execution
type OperationResponse struct {
	ID        string                `json:"id"`
	Group     string                `json:"group"`
	Status    OperationStatusValue  `json:"status"`
	StartTime time.Time             `json:"start_time"`
	Duration  time.Duration         `json:"duration"`
	Steps     map[string]*StepState `json:"steps"`
	Order     []string              `json:"order"`
	Outputs   []string              `json:"outputs"`
	Error     string                `json:"error,omitempty"`
}
