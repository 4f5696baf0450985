package container

import (
	"context"
	"fmt"
	"net/http"

	apisource "quotebias/adapters/api"
	"quotebias/adapters/excel"
	"quotebias/adapters/postgres"
	"quotebias/app"
	"quotebias/domain/discrimination"
	"quotebias/domain/quotes"
	"quotebias/internal"
	"quotebias/internal/api"
	"quotebias/internal/config"
	"quotebias/internal/errors"
	"quotebias/internal/migration"
	"quotebias/internal/preprocess"
	"quotebias/internal/report"
	"quotebias/internal/testkit"
	"quotebias/ports"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB       *sqlx.DB
	Runs     ports.RunRepository
	Registry *prometheus.Registry

	// Data sources and diagnostics
	Survey  ports.DatasetSource
	Control ports.DatasetSource
	Sink    ports.DiagnosticSink
	Store   *app.DatasetStore

	// Analysis
	Service  *app.ComparisonService
	Plan     *discrimination.Plan
	Renderer *report.Renderer

	// HTTP
	Handler *api.DiscriminationHandler
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, errors.ConfigInvalid("config cannot be nil")
	}
	level, err := internal.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Container{
		Config:   cfg,
		Logger:   internal.NewLogger(level),
		Registry: registry,
	}, nil
}

// MetricsHandler serves the container registry in the Prometheus text format
func (c *Container) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
}

// Init builds every component. Sources are chosen in order: DATA_FILE,
// DATA_URL, DATABASE_URL, then the synthetic generator. The control dataset
// comes from CONTROL_FILE, or from the generator when the survey is generated.
// With a database, runs are stored in it.
func (c *Container) Init(ctx context.Context) error {
	if err := c.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := c.initSources(); err != nil {
		return fmt.Errorf("failed to initialize data sources: %w", err)
	}
	if err := c.initDiagnostics(); err != nil {
		return fmt.Errorf("failed to initialize diagnostics: %w", err)
	}
	if err := c.initAnalysis(); err != nil {
		return fmt.Errorf("failed to initialize analysis: %w", err)
	}

	c.Handler = api.NewDiscriminationHandler(c.Service, c.Store, c.Plan, &c.Config.Analysis, c.Renderer, c.Logger)
	if c.Runs != nil {
		c.Handler.WithRuns(c.Runs)
	}

	survey, control := c.Store.Sources()
	c.Logger.Info("container initialized: survey=%s control=%q plan=%t", survey, control, c.Plan != nil)
	return nil
}

// initDatabase connects and migrates when DATABASE_URL is set
func (c *Container) initDatabase(ctx context.Context) error {
	if !c.Config.HasDatabase() {
		return nil
	}
	db, err := postgres.Open(ctx, c.Config.Database.URL)
	if err != nil {
		return err
	}
	c.DB = db

	migrator := migration.NewRunner(c.Config.Database.Table)
	if err := migrator.Run(ctx, db); err != nil {
		return err
	}
	c.Runs = postgres.NewRunRepository(db)
	c.Logger.Info("database ready (migrations %s)", migrator.Version())
	return nil
}

// initSources selects the survey and control dataset sources
func (c *Container) initSources() error {
	data := c.Config.Data

	switch {
	case data.File != "":
		c.Survey = excel.NewFileSource(c.fileConfig(data.File), c.Logger)
	case data.URL != "":
		src, err := apisource.NewSource(c.urlConfig(), c.Logger)
		if err != nil {
			return err
		}
		c.Survey = src
	case c.DB != nil:
		c.Survey = postgres.NewQuoteSource(c.DB, c.Config.Database.Table,
			quotes.DefaultCovariates(), preprocess.DefaultOptions(), c.Logger)
	default:
		c.Logger.Warn("no DATA_FILE, DATA_URL or DATABASE_URL set, serving generated quotes")
		c.Survey = testkit.NewGeneratedSource(testkit.DefaultQuoteConfig(), false)
		if data.ControlFile == "" {
			c.Control = testkit.NewGeneratedSource(testkit.DefaultQuoteConfig(), true)
		}
	}

	if data.ControlFile != "" {
		c.Control = excel.NewFileSource(c.fileConfig(data.ControlFile), c.Logger)
	}

	c.Store = app.NewDatasetStore(c.Survey, c.Control, c.Logger)
	return nil
}

func (c *Container) urlConfig() apisource.SourceConfig {
	data := c.Config.Data
	cfg := apisource.DefaultSourceConfig(data.URL)
	cfg.DataPath = data.URLPath
	cfg.PaginationType = data.URLPaging
	if data.URLToken != "" {
		cfg.AuthMethod = "bearer"
		cfg.AuthToken = data.URLToken
	}
	return cfg
}

func (c *Container) fileConfig(path string) excel.SourceConfig {
	cfg := excel.DefaultSourceConfig(path)
	cfg.Sheet = c.Config.Data.Sheet
	cfg.Separator = c.Config.Data.Separator
	return cfg
}

// initDiagnostics enables pair dumps when DIAGNOSTICS_DIR is set
func (c *Container) initDiagnostics() error {
	dir := c.Config.Diagnostics.Dir
	if dir == "" {
		return nil
	}
	sink, err := excel.NewPairDumpSink(dir, c.Logger)
	if err != nil {
		return err
	}
	c.Sink = sink
	c.Logger.Info("matched pairs will be dumped to %s", dir)
	return nil
}

// initAnalysis creates the comparison service and loads the plan, if any
func (c *Container) initAnalysis() error {
	analysis := c.Config.Analysis

	cfg := app.ComparisonServiceConfig{
		Dedup:   analysis.Dedup,
		Outcome: analysis.Outcome,
		Workers: analysis.Workers,
		Sink:    c.Sink,
		Metrics: app.NewMetrics(c.Registry),
		Logger:  c.Logger,
	}
	c.Service = app.NewComparisonService(cfg)
	c.Renderer = report.NewRenderer(c.Config.Report.Currency)

	if analysis.PlanFile == "" {
		return nil
	}
	plan, err := config.LoadPlan(analysis.PlanFile, &analysis)
	if err != nil {
		return err
	}
	c.Plan = plan
	c.Logger.Info("plan %q: %d comparisons (control=%t)", plan.Name, len(plan.Comparisons), plan.Control)
	return nil
}

// Close releases infrastructure resources
func (c *Container) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
