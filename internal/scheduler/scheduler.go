// Package scheduler runs pipeline operations on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ONEcampaign/interest-rates/internal/operations"
)

// Runner executes an operation. *operations.Manager implements it.
type Runner interface {
	Execute(ctx context.Context, req operations.OperationRequest) (*operations.OperationResponse, error)
}

// Job is an operation run on a cron schedule.
type Job struct {
	Name string
	// Spec is a cron expression with seconds, e.g. "0 0 6 * * *".
	Spec   string
	Runner Runner
	// Request builds the request for a run starting at now. Nil runs the
	// steps due that day.
	Request func(now time.Time) operations.OperationRequest
}

func (j Job) request(now time.Time) operations.OperationRequest {
	if j.Request == nil {
		return operations.OperationRequest{Today: now}
	}
	return j.Request(now)
}

// Entry describes a registered job.
type Entry struct {
	Name string    `json:"name"`
	Spec string    `json:"spec"`
	Next time.Time `json:"next"`
	Prev time.Time `json:"prev"`
}

// Scheduler manages background jobs
type Scheduler struct {
	cron     *cron.Cron
	location *time.Location
	logger   *slog.Logger

	mu   sync.Mutex
	ctx  context.Context
	jobs map[string]Job
	ids  map[string]cron.EntryID
}

// New creates a scheduler evaluating specs in timezone. Overlapping runs of
// a job are skipped.
func New(timezone string, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "scheduler"))

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}

	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		location: loc,
		logger:   logger,
		ctx:      context.Background(),
		jobs:     make(map[string]Job),
		ids:      make(map[string]cron.EntryID),
	}, nil
}

// Add registers job with its cron schedule.
// Schedule examples:
//   - "0 0 6 * * *"    - 6 AM every day
//   - "0 30 6 * * 1"   - 6:30 AM on Mondays
//   - "@every 1h"      - every hour
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Runner == nil {
		return fmt.Errorf("job needs a name and a runner")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %s already registered", job.Name)
	}

	id, err := s.cron.AddFunc(job.Spec, func() { s.run(job) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", job.Spec, job.Name, err)
	}
	s.jobs[job.Name] = job
	s.ids[job.Name] = id

	s.logger.Info("Job registered",
		slog.String("job", job.Name),
		slog.String("schedule", job.Spec))
	return nil
}

// Start starts the scheduler. Runs use ctx and stop when it is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.InfoContext(ctx, "Scheduler started", slog.Int("jobs", len(s.cron.Entries())))
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(ctx context.Context, name string) (*operations.OperationResponse, error) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("job %s not found", name)
	}

	s.logger.InfoContext(ctx, "Running job immediately", slog.String("job", name))
	return job.Runner.Execute(ctx, job.request(time.Now().In(s.location)))
}

// Entries lists the registered jobs with their next and previous runs.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entry
	for _, e := range s.cron.Entries() {
		for name, id := range s.ids {
			if id != e.ID {
				continue
			}
			out = append(out, Entry{Name: name, Spec: s.jobs[name].Spec, Next: e.Next, Prev: e.Prev})
		}
	}
	return out
}

func (s *Scheduler) run(job Job) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}

	s.logger.DebugContext(ctx, "Running job", slog.String("job", job.Name))
	resp, err := job.Runner.Execute(ctx, job.request(time.Now().In(s.location)))
	if err != nil {
		s.logger.ErrorContext(ctx, "Job failed",
			slog.String("job", job.Name),
			slog.String("error", err.Error()))
		return
	}
	s.logger.InfoContext(ctx, "Job completed",
		slog.String("job", job.Name),
		slog.String("operation_id", resp.ID),
		slog.String("group", resp.Group),
		slog.Int("outputs", len(resp.Outputs)))
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
