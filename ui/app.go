package ui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"quotebias/domain/discrimination"
	"quotebias/internal"
	"quotebias/internal/api"
	apperrors "quotebias/internal/errors"
	"quotebias/internal/report"
)

// App serves the report pages and mounts the JSON API
type App struct {
	router   *chi.Mux
	handler  *api.DiscriminationHandler
	renderer *report.Renderer
	metrics  http.Handler
	logger   *internal.Logger
	port     string
}

// Config holds UI application configuration
type Config struct {
	Port string
	// Metrics is served on /metrics when set
	Metrics http.Handler
}

// NewApp creates a new UI application
func NewApp(config Config, handler *api.DiscriminationHandler, renderer *report.Renderer, logger *internal.Logger) *App {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	port := config.Port
	if port == "" {
		port = "8080"
	}

	app := &App{
		router:   chi.NewRouter(),
		handler:  handler,
		renderer: renderer,
		metrics:  config.Metrics,
		logger:   logger.With("UI"),
		port:     port,
	}

	app.setupMiddleware()
	app.setupRoutes()

	return app
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	a.router.Get("/healthz", a.handleHealth)
	if a.metrics != nil {
		a.router.Handle("/metrics", a.metrics)
	}
	a.router.Get("/", http.RedirectHandler("/report", http.StatusFound).ServeHTTP)

	// Reports of the configured plan
	a.router.Get("/report", a.handleReport)
	a.router.Get("/report.md", a.handleReportMarkdown)
	a.router.Get("/report.tex", a.handleReportLaTeX)

	// JSON API
	a.router.Mount("/api", api.NewEngine(a.handler))
}

// Handler exposes the router, mainly for tests
func (a *App) Handler() http.Handler {
	return a.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (a *App) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + a.port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("serving on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}

func (a *App) handleReport(w http.ResponseWriter, r *http.Request) {
	table, ok := a.runPlan(w, r)
	if !ok {
		return
	}
	page, err := a.renderer.HTML(table)
	if err != nil {
		a.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func (a *App) handleReportMarkdown(w http.ResponseWriter, r *http.Request) {
	table, ok := a.runPlan(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := a.renderer.WriteMarkdown(&buf, table); err != nil {
		a.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write(buf.Bytes())
}

func (a *App) handleReportLaTeX(w http.ResponseWriter, r *http.Request) {
	table, ok := a.runPlan(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := a.renderer.WriteLaTeX(&buf, table); err != nil {
		a.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-latex; charset=utf-8")
	w.Write(buf.Bytes())
}

func (a *App) runPlan(w http.ResponseWriter, r *http.Request) (*discrimination.ComparisonTable, bool) {
	plan := a.handler.DefaultPlan()
	if plan == nil {
		http.Error(w, "no analysis plan configured (set PLAN_FILE)", http.StatusNotFound)
		return nil, false
	}
	table, err := a.handler.RunTable(r.Context(), plan)
	if err != nil {
		a.fail(w, err)
		return nil, false
	}
	return table, true
}

func (a *App) fail(w http.ResponseWriter, err error) {
	status := api.StatusFor(apperrors.GetCode(err))
	if status >= http.StatusInternalServerError {
		a.logger.Error("report failed: %v", err)
	}
	http.Error(w, err.Error(), status)
}
