package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/sitrep-cache/internal/core/config"
	"github.com/mohammed-shakir/sitrep-cache/internal/core/health"
	middleware "github.com/mohammed-shakir/sitrep-cache/internal/core/middleware"
	"github.com/mohammed-shakir/sitrep-cache/internal/core/router"
)

type Deps struct {
	Overview router.OverviewService
	Regions  router.RegionLister
	Ready    health.ReadinessReporter
	// Metrics serves /metrics; nil uses the default registry.
	Metrics http.Handler
}

// Handler builds the full route tree.
func Handler(logger *slog.Logger, d Deps) http.Handler {
	if d.Ready == nil {
		d.Ready = health.AlwaysReady{}
	}
	if d.Metrics == nil {
		d.Metrics = promhttp.Handler()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(d.Ready))
	r.Method(http.MethodGet, "/metrics", d.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Get("/overview", router.HandleOverview(logger, d.Overview))
		r.Get("/risk", router.HandleRisk(logger, d.Overview))
		r.Get("/regions", router.HandleRegions(logger, d.Regions))
		r.Post("/admin/cache/invalidate", router.HandleInvalidate(logger, d.Overview))
	})
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, d Deps) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           Handler(logger, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
