// Package app wires configuration, storage, services and HTTP transport
// into a runnable web application.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"sellerpulse/internal/config"
	"sellerpulse/internal/dataprocessing"
	"sellerpulse/internal/fetcher"
	"sellerpulse/internal/infrastructure"
	"sellerpulse/internal/services"
	"sellerpulse/internal/store"
	transporthttp "sellerpulse/internal/transport/http"
)

// Version is the application version, overridable at build time.
var Version = "dev"

// Application holds the assembled runtime components
type Application struct {
	Config *config.Config
	Logger *slog.Logger
	Router chi.Router
	Server *http.Server
	Store  *store.Store
}

// New creates the application: it loads nothing itself, the caller passes
// in loaded config so tests can construct one directly.
func New(cfg *config.Config) (*Application, error) {
	logger := infrastructure.InitializeLogger(cfg.Logging)

	metricStore, err := store.Open(cfg.Storage.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &Application{
		Config: cfg,
		Logger: logger,
		Store:  metricStore,
	}
	a.setupRouter()
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return a, nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	extractorCfg := dataprocessing.DefaultExtractorConfig()
	if a.Config.Import.MaxHeaderScan > 0 {
		extractorCfg.MaxHeaderScan = a.Config.Import.MaxHeaderScan
	}
	if a.Config.Import.MinHeaderCells > 0 {
		extractorCfg.MinHeaderCells = a.Config.Import.MinHeaderCells
	}
	if a.Config.Import.MinDateCells > 0 {
		extractorCfg.MinDateCells = a.Config.Import.MinDateCells
	}
	if a.Config.Import.DecemberYear > 0 && a.Config.Import.DefaultYear > 0 {
		extractorCfg.Seasons = dataprocessing.SeasonPolicy{
			YearByMonth: map[time.Month]int{time.December: a.Config.Import.DecemberYear},
			DefaultYear: a.Config.Import.DefaultYear,
		}
	}

	extractor := dataprocessing.NewExtractor(extractorCfg, a.Logger)
	csvFetcher := fetcher.NewClient(a.Config.Import.FetchTimeout, a.Logger)

	importService := services.NewImportService(a.Config.Catalog, a.Store, csvFetcher, extractor, a.Logger)
	analyticsService := services.NewAnalyticsService(a.Config.Catalog, a.Store, csvFetcher, extractor, a.Logger)
	exportService := services.NewExportService(a.Config.Catalog, a.Store, a.Logger)

	importHandler := transporthttp.NewImportHandler(importService, a.Logger)
	analyticsHandler := transporthttp.NewAnalyticsHandler(analyticsService, exportService, a.Logger)
	healthHandler := transporthttp.NewHealthHandler(Version, a.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(a.Config.Server.RequestTimeout))
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/version", healthHandler.Version)
		r.Mount("/import", importHandler.Routes())
		r.Mount("/analytics", analyticsHandler.Routes())
	})

	a.Router = r
}

// Run starts the server and blocks until the context is cancelled or an
// interrupt arrives, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	if err := a.Store.EnsureTables(ctx, a.Config.Catalog.Tables()); err != nil {
		return fmt.Errorf("ensure tables: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.InfoContext(ctx, "starting server",
			slog.String("addr", a.Server.Addr),
			slog.String("version", Version))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	if err := a.Store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}
