package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ONEcampaign/interest-rates/internal/infrastructure"
)

// historySize is how many finished runs the manager remembers.
const historySize = 20

// Finalizer runs once after the steps of a run have finished, whatever
// their outcome. The workbook bundle and publishers are finalizers.
type Finalizer func(ctx context.Context, state *OperationState) error

// Manager orchestrates operation execution
type Manager struct {
	registry   *Registry
	config     *Config
	logger     *slog.Logger
	metrics    *infrastructure.PipelineMetrics
	tracer     *OperationTracer
	finalizers []Finalizer

	// Active operations and recent history
	mu         sync.RWMutex
	operations map[string]*OperationState
	history    []*OperationResponse
}

// NewManager creates a new operation manager
func NewManager(registry *Registry, config *Config, logger *slog.Logger) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if config == nil {
		config = NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		registry:   registry,
		config:     config,
		logger:     logger.With(slog.String("component", "operations")),
		metrics:    infrastructure.NoopPipelineMetrics(),
		tracer:     NewOperationTracer(),
		operations: make(map[string]*OperationState),
	}
}

// SetMetrics records run and step metrics on metrics.
func (m *Manager) SetMetrics(metrics *infrastructure.PipelineMetrics) {
	if metrics != nil {
		m.metrics = metrics
	}
}

// AddFinalizer registers fn to run after every run.
func (m *Manager) AddFinalizer(fn Finalizer) {
	m.finalizers = append(m.finalizers, fn)
}

// GetRegistry returns the registry for accessing registered stages
func (m *Manager) GetRegistry() *Registry {
	return m.registry
}

// Execute runs a operation with the given request
func (m *Manager) Execute(ctx context.Context, req OperationRequest) (*OperationResponse, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Today.IsZero() {
		req.Today = time.Now()
	}

	state := NewOperationState(req.ID)
	state.Today = req.Today
	state.SetContext(ContextKeyToday, req.Today)
	state.SetContext(ContextKeyRefresh, req.Refresh)
	for k, v := range req.Parameters {
		state.SetContext(k, v)
	}

	steps, group, err := m.registry.Select(req, m.config.WeeklyDay)
	if err != nil {
		m.logOperationError(ctx, req.ID, err)
		state.Fail(err)
		resp := m.createResponse(state)
		m.remember(resp)
		return resp, err
	}
	state.Group = group

	for _, step := range steps {
		state.SetStage(step.ID(), NewStepState(step.ID(), step.Name()))
	}

	ctx = infrastructure.WithRunID(infrastructure.EnsureTraceID(ctx), req.ID)
	ctx, span := m.tracer.TraceOperationExecution(ctx, req.ID, group, len(steps))

	m.storeOperation(state)
	defer m.removeOperation(req.ID)

	m.logOperationStart(ctx, req.ID, group, len(steps))
	state.Start()

	if m.config.ExecutionMode == ExecutionModeParallel {
		err = m.executeParallel(ctx, state, steps)
	} else {
		err = m.executeSequential(ctx, state, steps)
	}

	for _, fn := range m.finalizers {
		if ferr := fn(ctx, state); ferr != nil {
			m.logger.ErrorContext(ctx, "finalizer_failed",
				slog.String("operation_id", req.ID),
				slog.String("error", ferr.Error()))
			err = errors.Join(err, ferr)
		}
	}

	switch {
	case err != nil && ctx.Err() != nil:
		state.Cancel(err)
	case err != nil:
		state.Fail(err)
	default:
		state.Complete()
	}

	EndSpan(span, err)
	m.metrics.RecordRun(ctx, group, err == nil)
	m.logOperationComplete(ctx, req.ID, state.Duration(), string(state.Status))

	resp := m.createResponse(state)
	m.remember(resp)
	return resp, err
}

// executeSequential executes steps one by one
func (m *Manager) executeSequential(ctx context.Context, state *OperationState, steps []Step) error {
	var errs []error
	for i, step := range steps {
		if ctx.Err() != nil {
			m.logger.WarnContext(ctx, "operation_cancelled",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()))
			m.skipRemaining(state, steps[i:], "run cancelled")
			return errors.Join(append(errs, NewCancellationError(step.ID()))...)
		}

		m.logger.InfoContext(ctx, "executing_stage",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("stage_number", i+1),
			slog.Int("total_stages", len(steps)))

		if err := m.executeStage(ctx, state, step); err != nil {
			if !m.config.ContinueOnError {
				m.skipRemaining(state, steps[i+1:], fmt.Sprintf("previous step %s failed", step.ID()))
				return err
			}
			m.logger.WarnContext(ctx, "stage_failed_continuing",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()),
				slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// executeParallel runs steps concurrently, at most MaxConcurrency at a time.
// Steps are independent: each reads its own sources and writes its own
// outputs.
func (m *Manager) executeParallel(ctx context.Context, state *OperationState, steps []Step) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.config.MaxConcurrency)

	var mu sync.Mutex
	var errs []error

	for _, step := range steps {
		g.Go(func() error {
			if gctx.Err() != nil {
				state.GetStage(step.ID()).Skip("run cancelled")
				return nil
			}
			err := m.executeStage(gctx, state, step)
			if err == nil {
				return nil
			}
			if m.config.ContinueOnError {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

// executeStage executes a single Step with retry logic
func (m *Manager) executeStage(ctx context.Context, state *OperationState, step Step) (err error) {
	stepState := state.GetStage(step.ID())
	if stepState == nil {
		return NewFatalError("step state not found: "+step.ID(), nil)
	}

	ctx, span := m.tracer.TraceStageExecution(ctx, state.ID, step.ID(), step.Frequency())
	started := time.Now()
	defer func() {
		EndSpan(span, err)
		m.metrics.RecordStep(ctx, step.ID(), time.Since(started).Seconds(), err)
	}()

	if verr := step.Validate(state); verr != nil {
		m.logger.WarnContext(ctx, "validation_failed",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.String("error", verr.Error()))
		err = NewValidationError(step.ID(), verr.Error())
		stepState.Fail(err)
		return err
	}

	timeout := m.config.GetStageTimeout(step.ID())
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	retryConfig := m.config.RetryConfig
	for attempt := 1; ; attempt++ {
		stepState.Start()
		m.logStageStart(ctx, state.ID, step.ID(), attempt)

		attemptStart := time.Now()
		execErr := step.Execute(stageCtx, state)
		if execErr == nil {
			stepState.Complete()
			m.logStageComplete(ctx, state.ID, step.ID(), time.Since(attemptStart))
			return nil
		}

		if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
			err = NewTimeoutError(step.ID(), timeout.String())
			stepState.Fail(err)
			m.logStageError(ctx, state.ID, step.ID(), err)
			return err
		}

		if ctx.Err() != nil || !IsRetryable(execErr) || attempt >= retryConfig.MaxAttempts {
			err = WrapError(execErr, step.ID(), "step execution failed")
			stepState.Fail(err)
			m.logStageError(ctx, state.ID, step.ID(), err)
			return err
		}

		delay := m.calculateRetryDelay(attempt, retryConfig)
		m.logger.WarnContext(ctx, "stage_retry",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", retryConfig.MaxAttempts),
			slog.Duration("delay", delay),
			slog.String("error", execErr.Error()))

		select {
		case <-time.After(delay):
		case <-stageCtx.Done():
			err = NewTimeoutError(step.ID(), timeout.String())
			if ctx.Err() != nil {
				err = NewCancellationError(step.ID())
			}
			stepState.Fail(err)
			return err
		}
	}
}

func (m *Manager) skipRemaining(state *OperationState, steps []Step, reason string) {
	for _, step := range steps {
		if s := state.GetStage(step.ID()); s != nil && s.GetStatus() == StepStatusPending {
			s.Skip(reason)
		}
	}
}

// calculateRetryDelay grows the delay geometrically, capped at MaxDelay.
func (m *Manager) calculateRetryDelay(attempt int, config RetryConfig) time.Duration {
	delay := config.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * config.Multiplier)
		if delay > config.MaxDelay {
			return config.MaxDelay
		}
	}
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	return delay
}

// createResponse creates a operation response from state
func (m *Manager) createResponse(state *OperationState) *OperationResponse {
	snapshot := state.Clone()
	resp := &OperationResponse{
		ID:        snapshot.ID,
		Group:     snapshot.Group,
		Status:    snapshot.Status,
		StartTime: snapshot.StartTime,
		Duration:  state.Duration(),
		Steps:     snapshot.Steps,
		Order:     snapshot.Order,
		Outputs:   state.Outputs(),
	}
	if snapshot.Error != nil {
		resp.Error = snapshot.Error.Error()
	}
	return resp
}

// GetOperation returns a running operation, or a recent finished one.
func (m *Manager) GetOperation(id string) (*OperationResponse, error) {
	m.mu.RLock()
	state, running := m.operations[id]
	m.mu.RUnlock()
	if running {
		return m.createResponse(state), nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].ID == id {
			return m.history[i], nil
		}
	}
	return nil, fmt.Errorf("operation %s not found", id)
}

// ListOperations returns all active operations
func (m *Manager) ListOperations() []*OperationResponse {
	m.mu.RLock()
	states := make([]*OperationState, 0, len(m.operations))
	for _, state := range m.operations {
		states = append(states, state)
	}
	m.mu.RUnlock()

	out := make([]*OperationResponse, 0, len(states))
	for _, state := range states {
		out = append(out, m.createResponse(state))
	}
	return out
}

// Latest returns the most recently finished run.
func (m *Manager) Latest() (*OperationResponse, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.history) == 0 {
		return nil, false
	}
	return m.history[len(m.history)-1], true
}

// History returns the recently finished runs, newest first.
func (m *Manager) History() []*OperationResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*OperationResponse, 0, len(m.history))
	for i := len(m.history) - 1; i >= 0; i-- {
		out = append(out, m.history[i])
	}
	return out
}

func (m *Manager) remember(resp *OperationResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, resp)
	if len(m.history) > historySize {
		m.history = m.history[len(m.history)-historySize:]
	}
}

// storeOperation stores a operation state
func (m *Manager) storeOperation(state *OperationState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations[state.ID] = state
}

// removeOperation removes a operation state
func (m *Manager) removeOperation(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.operations, id)
}
