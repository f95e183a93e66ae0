package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ballast-sched/ballast/pkg/metrics"
	"github.com/ballast-sched/ballast/pkg/storage"
)

// AdminServer serves the operational HTTP surface alongside the scheduler
// API: /health and /ready via the shared metrics.HealthChecker, /live as a
// bare liveness probe, and /metrics for Prometheus scraping.
type AdminServer struct {
	facade *storage.Facade
	mux    *http.ServeMux
}

// NewAdminServer builds an AdminServer watching facade's readiness.
func NewAdminServer(facade *storage.Facade) *AdminServer {
	mux := http.NewServeMux()
	as := &AdminServer{facade: facade, mux: mux}

	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	mux.Handle("/metrics", metrics.Handler())

	metrics.RegisterComponent(metrics.ComponentStorage, false, "waiting for log replay")
	metrics.RegisterComponent(metrics.ComponentAPI, true, "")
	return as
}

// WatchStorageReadiness flips the storage health component healthy the
// moment facade finishes replaying its log, or marks it unhealthy if ctx is
// done first.
func (as *AdminServer) WatchStorageReadiness(ctx context.Context) {
	select {
	case <-as.facade.Ready():
		metrics.UpdateComponent(metrics.ComponentStorage, true, "")
	case <-ctx.Done():
		metrics.UpdateComponent(metrics.ComponentStorage, false, "startup interrupted before storage became ready")
	}
}

// Handler returns the HTTP handler serving every admin endpoint, for
// embedding in another server or mounting directly via ListenAndServe.
func (as *AdminServer) Handler() http.Handler { return as.mux }

// Start runs a standalone HTTP server on addr serving the admin endpoints
// until ctx is done.
func (as *AdminServer) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      as.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
