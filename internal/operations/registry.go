package operations

import (
	"fmt"
	"sync"
	"time"
)

// Registry manages registered operation steps
type Registry struct {
	mu    sync.RWMutex
	steps map[string]Step
	order []string // Maintains registration order
}

// NewRegistry creates a new Step registry
func NewRegistry() *Registry {
	return &Registry{
		steps: make(map[string]Step),
		order: make([]string, 0),
	}
}

// Register adds a Step to the registry
func (r *Registry) Register(step Step) error {
	if step == nil {
		return fmt.Errorf("cannot register nil step")
	}

	id := step.ID()
	if id == "" {
		return fmt.Errorf("step ID cannot be empty")
	}
	switch step.Frequency() {
	case FrequencyFrequent, FrequencyWeekly:
	default:
		return fmt.Errorf("step %s has invalid frequency %q", id, step.Frequency())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.steps[id]; exists {
		return fmt.Errorf("step with ID %s already registered", id)
	}

	r.steps[id] = step
	r.order = append(r.order, id)
	return nil
}

// Get retrieves a Step by ID
func (r *Registry) Get(id string) (Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	step, exists := r.steps[id]
	if !exists {
		return nil, fmt.Errorf("step with ID %s not found", id)
	}

	return step, nil
}

// Has checks if a Step is registered
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.steps[id]
	return exists
}

// List returns all registered steps in registration order
func (r *Registry) List() []Step {
	r.mu.RLock()
	defer r.mu.RUnlock()

	steps := make([]Step, 0, len(r.order))
	for _, id := range r.order {
		steps = append(steps, r.steps[id])
	}
	return steps
}

// ListIDs returns all registered Step IDs in registration order
func (r *Registry) ListIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Count returns the number of registered steps
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.steps)
}

// ByFrequency returns the steps with frequency f, in registration order.
func (r *Registry) ByFrequency(f Frequency) []Step {
	var steps []Step
	for _, s := range r.List() {
		if s.Frequency() == f {
			steps = append(steps, s)
		}
	}
	return steps
}

// Select resolves the steps a request asks for. It returns the steps in
// registration order and the name of the group that was selected.
func (r *Registry) Select(req OperationRequest, weeklyDay time.Weekday) ([]Step, string, error) {
	if len(req.Steps) > 0 {
		wanted := make(map[string]bool, len(req.Steps))
		for _, id := range req.Steps {
			if !r.Has(id) {
				return nil, "", fmt.Errorf("requested step not found: %s", id)
			}
			wanted[id] = true
		}
		var steps []Step
		for _, s := range r.List() {
			if wanted[s.ID()] {
				steps = append(steps, s)
			}
		}
		return steps, "custom", nil
	}

	if req.All || req.Today.Weekday() == weeklyDay {
		return r.List(), "weekly", nil
	}
	return r.ByFrequency(FrequencyFrequent), "frequent", nil
}
