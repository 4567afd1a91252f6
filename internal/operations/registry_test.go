package operations_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ONEcampaign/interest-rates/internal/operations"
)

func newRegistry(t *testing.T, steps ...operations.Step) *operations.Registry {
	t.Helper()
	r := operations.NewRegistry()
	for _, s := range steps {
		require.NoError(t, r.Register(s))
	}
	return r
}

func TestRegistryRegister(t *testing.T) {
	r := newRegistry(t,
		newStep("fed", operations.FrequencyFrequent),
		newStep("scatter", operations.FrequencyWeekly),
		newStep("inflation", operations.FrequencyFrequent),
	)

	assert.Equal(t, 3, r.Count())
	assert.Equal(t, []string{"fed", "scatter", "inflation"}, r.ListIDs())
	assert.True(t, r.Has("scatter"))
	assert.False(t, r.Has("missing"))

	got, err := r.Get("fed")
	require.NoError(t, err)
	assert.Equal(t, "Step fed", got.Name())

	_, err = r.Get("missing")
	assert.Error(t, err)
}

func TestRegistryRegisterErrors(t *testing.T) {
	r := newRegistry(t, newStep("fed", operations.FrequencyFrequent))

	tests := []struct {
		name string
		step operations.Step
	}{
		{"nil step", nil},
		{"empty id", newStep("", operations.FrequencyWeekly)},
		{"duplicate id", newStep("fed", operations.FrequencyWeekly)},
		{"bad frequency", &fakeStep{BaseStage: operations.NewBaseStage("hourly", "Hourly", "hourly")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, r.Register(tt.step))
		})
	}
	assert.Equal(t, 1, r.Count())
}

func TestRegistrySelect(t *testing.T) {
	r := newRegistry(t,
		newStep("fed", operations.FrequencyFrequent),
		newStep("scatter", operations.FrequencyWeekly),
		newStep("inflation", operations.FrequencyFrequent),
	)

	tests := []struct {
		name      string
		req       operations.OperationRequest
		wantIDs   []string
		wantGroup string
	}{
		{
			name:      "tuesday runs frequent steps",
			req:       operations.OperationRequest{Today: tuesday},
			wantIDs:   []string{"fed", "inflation"},
			wantGroup: "frequent",
		},
		{
			name:      "monday runs every step",
			req:       operations.OperationRequest{Today: monday},
			wantIDs:   []string{"fed", "scatter", "inflation"},
			wantGroup: "weekly",
		},
		{
			name:      "all overrides the weekday",
			req:       operations.OperationRequest{Today: tuesday, All: true},
			wantIDs:   []string{"fed", "scatter", "inflation"},
			wantGroup: "weekly",
		},
		{
			name:      "explicit steps keep registration order",
			req:       operations.OperationRequest{Today: tuesday, Steps: []string{"inflation", "scatter"}},
			wantIDs:   []string{"scatter", "inflation"},
			wantGroup: "custom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps, group, err := r.Select(tt.req, monday.Weekday())
			require.NoError(t, err)
			ids := make([]string, len(steps))
			for i, s := range steps {
				ids[i] = s.ID()
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantGroup, group)
		})
	}

	_, _, err := r.Select(operations.OperationRequest{Steps: []string{"nope"}}, monday.Weekday())
	assert.ErrorContains(t, err, "nope")
}
