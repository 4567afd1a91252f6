package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ONEcampaign/interest-rates/internal/cache"
	"github.com/ONEcampaign/interest-rates/internal/charts"
	"github.com/ONEcampaign/interest-rates/internal/config"
	"github.com/ONEcampaign/interest-rates/internal/debt"
	"github.com/ONEcampaign/interest-rates/internal/exporter"
	"github.com/ONEcampaign/interest-rates/internal/government"
	"github.com/ONEcampaign/interest-rates/internal/infrastructure"
	"github.com/ONEcampaign/interest-rates/internal/operations"
	"github.com/ONEcampaign/interest-rates/internal/publish"
	"github.com/ONEcampaign/interest-rates/internal/reference"
	"github.com/ONEcampaign/interest-rates/internal/scheduler"
	"github.com/ONEcampaign/interest-rates/internal/sources"
	handlers "github.com/ONEcampaign/interest-rates/internal/transport/http"
)

// Scheduled job names.
const (
	JobCharts  = "charts"
	JobRawData = "raw-data"
)

// BuildTime is set at compile time
var BuildTime = "dev"

// Refresher toggles cache bypass on the shared fetcher.
type Refresher interface {
	SetRefresh(refresh bool)
}

// Resetter drops data memoised by a previous run.
type Resetter interface {
	Reset()
}

// Pipeline is an operations manager whose runs honour the request's refresh
// flag. Pipelines sharing a fetcher share a lock, so only one of them runs
// at a time.
type Pipeline struct {
	*operations.Manager
	fetcher Refresher
	resets  []Resetter
	mu      *sync.Mutex
}

// NewPipeline wraps m. mu may be shared with other pipelines using fetcher.
// Every run starts by resetting resets.
func NewPipeline(m *operations.Manager, fetcher Refresher, mu *sync.Mutex, resets ...Resetter) *Pipeline {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	return &Pipeline{Manager: m, fetcher: fetcher, resets: resets, mu: mu}
}

// Execute runs req with the fetcher's refresh flag set from it.
func (p *Pipeline) Execute(ctx context.Context, req operations.OperationRequest) (*operations.OperationResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, r := range p.resets {
		r.Reset()
	}
	if p.fetcher != nil {
		p.fetcher.SetRefresh(req.Refresh)
		defer p.fetcher.SetRefresh(false)
	}
	return p.Manager.Execute(ctx, req)
}

// Application represents the main application container
type Application struct {
	Config    *config.Config
	Logger    *slog.Logger
	Paths     *config.Paths
	OTel      *infrastructure.OTelProviders
	Cache     cache.Repository
	Fetcher   *sources.Fetcher
	Deps      *charts.Deps
	Publisher publish.Multi

	// Charts builds the chart files; RawData refreshes the raw tables.
	Charts  *Pipeline
	RawData *Pipeline

	Scheduler *scheduler.Scheduler
	Router    http.Handler
	Server    *http.Server

	runCtx    context.Context
	cancelRun context.CancelFunc
}

// NewApplication loads the configuration and wires the application.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return New(ctx, cfg, logger)
}

// New wires the application from cfg. Nothing is started; call Start for
// the daemon or use the pipelines directly.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "Application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("build_time", BuildTime))

	paths, err := config.NewPaths(cfg.Paths)
	if err != nil {
		return nil, fmt.Errorf("failed to get paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	a := &Application{Config: cfg, Logger: logger, Paths: paths}
	a.runCtx, a.cancelRun = context.WithCancel(context.Background())

	a.OTel, err = infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	if err := a.initializeSources(); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if err := a.initializePipelines(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if err := a.initializeScheduler(); err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Router = handlers.NewRouter(handlers.RouterDeps{
		BaseContext: a.runCtx,
		Runner:      a.Charts,
		Schedule:    a.Scheduler,
		OutputDir:   paths.OutputDir,
		Metrics:     a.OTel.PrometheusHTTP,
		Server:      cfg.Server,
		Logger:      logger,
	})
	a.Server = handlers.NewServer(cfg.Server, a.Router)
	return a, nil
}

// initializeSources opens the cache and the upstream clients
func (a *Application) initializeSources() error {
	repo, err := cache.New(a.Config.Cache, a.Paths)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	a.Cache = repo

	src := a.Config.Sources
	a.Fetcher = sources.NewFetcher(src, repo, a.Config.Cache.KeyPrefix, a.Logger)
	a.Fetcher.SetMetrics(a.OTel.Metrics)

	ref, err := reference.Load()
	if src.CountriesOverride != "" {
		ref, err = reference.LoadWithOverride(a.Paths.RawDataPath(src.CountriesOverride))
	}
	if err != nil {
		return fmt.Errorf("failed to load country reference: %w", err)
	}

	ids := sources.NewIDSClient(a.Fetcher, src.IDSBaseURL, src.PageSize, a.Logger)
	weo := sources.NewWEOClient(a.Fetcher, src.WEOBaseURL, a.Logger)

	writer := exporter.NewCSVWriter(a.Paths, a.Logger)
	writer.SetMetrics(a.OTel.Metrics)

	a.Deps = &charts.Deps{
		Analyzer: debt.NewAnalyzer(ids, ref, a.Logger),
		IDS:      ids,
		Finance:  government.NewFinance(weo),
		Fed:      sources.NewFREDClient(a.Fetcher, src.FREDURL, src.MaxVintageFallbacks, a.Logger),
		Tables:   sources.NewTableSource(a.Fetcher, a.Paths),
		Ref:      ref,
		Writer:   writer,
		Paths:    a.Paths,
		Pipeline: a.Config.Pipeline,
		Sources:  src,
		Logger:   a.Logger,
	}
	return nil
}

// initializePipelines registers the chart and raw data steps
func (a *Application) initializePipelines(ctx context.Context) error {
	opCfg, err := operations.FromPipelineConfig(a.Config.Pipeline)
	if err != nil {
		return fmt.Errorf("invalid pipeline configuration: %w", err)
	}

	chartsReg := operations.NewRegistry()
	if err := charts.Register(chartsReg, a.Deps); err != nil {
		return fmt.Errorf("failed to register chart steps: %w", err)
	}
	rawReg := operations.NewRegistry()
	if err := charts.RegisterRawData(rawReg, a.Deps); err != nil {
		return fmt.Errorf("failed to register raw data steps: %w", err)
	}

	chartsMgr := operations.NewManager(chartsReg, opCfg, a.Logger)
	chartsMgr.SetMetrics(a.OTel.Metrics)
	if a.Config.Pipeline.Workbook {
		chartsMgr.AddFinalizer(charts.WorkbookFinalizer(a.Deps.Writer, charts.WorkbookFile, a.Logger))
	}

	a.Publisher, err = publish.FromConfig(ctx, a.Config.Publish, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to open publishers: %w", err)
	}
	if len(a.Publisher) > 0 {
		chartsMgr.AddFinalizer(charts.PublishFinalizer(a.Publisher, a.Logger))
	}

	rawMgr := operations.NewManager(rawReg, opCfg, a.Logger)
	rawMgr.SetMetrics(a.OTel.Metrics)

	mu := &sync.Mutex{}
	a.Charts = NewPipeline(chartsMgr, a.Fetcher, mu, a.Deps.Analyzer)
	a.RawData = NewPipeline(rawMgr, a.Fetcher, mu)
	return nil
}

// initializeScheduler adds the daily chart run and the weekly raw data
// refresh.
func (a *Application) initializeScheduler() error {
	s, err := scheduler.New(a.Config.Schedule.Timezone, a.Logger)
	if err != nil {
		return err
	}
	jobs := []scheduler.Job{
		{Name: JobCharts, Spec: a.Config.Schedule.Frequent, Runner: a.Charts},
		{
			Name:   JobRawData,
			Spec:   a.Config.Schedule.Weekly,
			Runner: a.RawData,
			Request: func(now time.Time) operations.OperationRequest {
				return operations.OperationRequest{Today: now, All: true, Refresh: true}
			},
		},
	}
	for _, job := range jobs {
		if err := s.Add(job); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.Name, err)
		}
	}
	a.Scheduler = s
	return nil
}

// Start starts the scheduler and the status server. A server failure calls
// cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Scheduler.Start(a.runCtx)

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started",
		slog.String("address", a.Config.Server.Addr),
		slog.Int("jobs", len(a.Scheduler.Entries())))
	return nil
}

// Stop shuts the server down, waits for scheduled runs and releases
// resources.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	// cancelling runCtx interrupts runs in flight so Stop does not block on them
	a.cancelRun()
	a.Scheduler.Stop()

	if err := a.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// Close releases the cache, publishers and telemetry providers.
func (a *Application) Close(ctx context.Context) error {
	if a.cancelRun != nil {
		a.cancelRun()
	}
	var errs []error
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publishers: %w", err))
		}
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if a.OTel != nil {
		if err := a.OTel.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown OpenTelemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}
