package operations

import (
	"fmt"
	"time"

	"github.com/ONEcampaign/interest-rates/internal/config"
)

// Config represents the operation execution configuration
type Config struct {
	// Execution mode (sequential or parallel)
	ExecutionMode ExecutionMode `json:"execution_mode"`

	// Default and per-step timeouts
	DefaultTimeout time.Duration            `json:"default_timeout"`
	StageTimeouts  map[string]time.Duration `json:"stage_timeouts"`

	// Retry configuration for steps
	RetryConfig RetryConfig `json:"retry_config"`

	// Whether to continue on Step failures
	ContinueOnError bool `json:"continue_on_error"`

	// Maximum concurrent steps (for parallel execution)
	MaxConcurrency int `json:"max_concurrency"`

	// Day on which weekly steps are due
	WeeklyDay time.Weekday `json:"weekly_day"`
}

// NewConfig returns the default operation configuration
func NewConfig() *Config {
	return &Config{
		ExecutionMode:   ExecutionModeSequential,
		DefaultTimeout:  DefaultStageTimeout,
		StageTimeouts:   make(map[string]time.Duration),
		RetryConfig:     NewRetryConfig(),
		ContinueOnError: false,
		MaxConcurrency:  1,
		WeeklyDay:       time.Monday,
	}
}

// FromPipelineConfig builds the runner configuration from the application
// config.
func FromPipelineConfig(cfg config.PipelineConfig) (*Config, error) {
	day, err := config.ParseWeekday(cfg.WeeklyDay)
	if err != nil {
		return nil, err
	}

	b := NewConfigBuilder().
		WithExecutionMode(ExecutionMode(cfg.ExecutionMode)).
		WithMaxConcurrency(cfg.MaxConcurrency).
		WithWeeklyDay(day)
	if cfg.StepTimeout > 0 {
		b.WithDefaultTimeout(cfg.StepTimeout)
	}

	c := b.Build()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	switch c.ExecutionMode {
	case ExecutionModeSequential, ExecutionModeParallel:
	default:
		return fmt.Errorf("invalid execution mode: %q", c.ExecutionMode)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max concurrency must be at least 1, got %d", c.MaxConcurrency)
	}
	if c.RetryConfig.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1, got %d", c.RetryConfig.MaxAttempts)
	}
	return nil
}

// GetStageTimeout returns the timeout for a specific Step
func (c *Config) GetStageTimeout(stageID string) time.Duration {
	if timeout, ok := c.StageTimeouts[stageID]; ok {
		return timeout
	}
	if c.DefaultTimeout > 0 {
		return c.DefaultTimeout
	}
	return DefaultStageTimeout
}

// SetStageTimeout sets the timeout for a specific Step
func (c *Config) SetStageTimeout(stageID string, timeout time.Duration) {
	if c.StageTimeouts == nil {
		c.StageTimeouts = make(map[string]time.Duration)
	}
	c.StageTimeouts[stageID] = timeout
}

// ConfigBuilder provides a fluent interface for building operation configurations
type ConfigBuilder struct {
	config *Config
}

// NewConfigBuilder creates a new configuration builder
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		config: NewConfig(),
	}
}

// WithExecutionMode sets the execution mode
func (b *ConfigBuilder) WithExecutionMode(mode ExecutionMode) *ConfigBuilder {
	b.config.ExecutionMode = mode
	return b
}

// WithDefaultTimeout sets the timeout for steps without their own.
func (b *ConfigBuilder) WithDefaultTimeout(timeout time.Duration) *ConfigBuilder {
	b.config.DefaultTimeout = timeout
	return b
}

// WithRetryConfig sets the retry configuration
func (b *ConfigBuilder) WithRetryConfig(config RetryConfig) *ConfigBuilder {
	b.config.RetryConfig = config
	return b
}

// WithContinueOnError sets whether to continue on errors
func (b *ConfigBuilder) WithContinueOnError(continueOnError bool) *ConfigBuilder {
	b.config.ContinueOnError = continueOnError
	return b
}

// WithMaxConcurrency sets the maximum concurrency
func (b *ConfigBuilder) WithMaxConcurrency(maxConcurrency int) *ConfigBuilder {
	b.config.MaxConcurrency = maxConcurrency
	return b
}

// WithWeeklyDay sets the day weekly steps are due.
func (b *ConfigBuilder) WithWeeklyDay(day time.Weekday) *ConfigBuilder {
	b.config.WeeklyDay = day
	return b
}

// Build returns the built configuration
func (b *ConfigBuilder) Build() *Config {
	return b.config
}
