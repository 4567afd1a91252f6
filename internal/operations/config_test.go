package operations_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ONEcampaign/interest-rates/internal/config"
	"github.com/ONEcampaign/interest-rates/internal/operations"
)

func TestFromPipelineConfig(t *testing.T) {
	pipeline := config.Default().Pipeline
	pipeline.ExecutionMode = "parallel"
	pipeline.MaxConcurrency = 3
	pipeline.WeeklyDay = "Friday"
	pipeline.StepTimeout = 2 * time.Minute

	cfg, err := operations.FromPipelineConfig(pipeline)
	require.NoError(t, err)
	assert.Equal(t, operations.ExecutionModeParallel, cfg.ExecutionMode)
	assert.Equal(t, 3, cfg.MaxConcurrency)
	assert.Equal(t, time.Friday, cfg.WeeklyDay)
	assert.Equal(t, 2*time.Minute, cfg.GetStageTimeout("fed"))

	cfg.SetStageTimeout("fed", time.Second)
	assert.Equal(t, time.Second, cfg.GetStageTimeout("fed"))
	assert.Equal(t, 2*time.Minute, cfg.GetStageTimeout("scatter"))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*operations.Config)
		wantErr bool
	}{
		{"defaults", func(*operations.Config) {}, false},
		{"unknown mode", func(c *operations.Config) { c.ExecutionMode = "eventual" }, true},
		{"zero concurrency", func(c *operations.Config) { c.MaxConcurrency = 0 }, true},
		{"zero attempts", func(c *operations.Config) { c.RetryConfig.MaxAttempts = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := operations.NewConfig()
			tt.mutate(c)
			if tt.wantErr {
				assert.Error(t, c.Validate())
			} else {
				assert.NoError(t, c.Validate())
			}
		})
	}

	pipeline := config.Default().Pipeline
	pipeline.WeeklyDay = "someday"
	_, err := operations.FromPipelineConfig(pipeline)
	assert.Error(t, err)
}
