package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"

	"git.home.luguber.info/inful/tagshipper/internal/logfields"
)

// HTTPHandler returns an http.Handler that serves Prometheus metrics for the provided registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// StatusFunc reports daemon status for the health endpoint.
type StatusFunc func() any

// NewMux builds the metrics mux: /metrics and /healthz.
func NewMux(reg *prom.Registry, status StatusFunc) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", HTTPHandler(reg))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var body any = map[string]string{"status": "ok"}
		if status != nil {
			body = status()
		}
		if err := json.NewEncoder(w).Encode(body); err != nil {
			slog.Warn("Failed to encode health response", logfields.Error(err))
		}
	})
	return mux
}

// Serve listens on addr and serves NewMux until ctx is canceled.
func Serve(ctx context.Context, addr string, reg *prom.Registry, status StatusFunc) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ServeListener(ctx, ln, reg, status)
}

// ServeListener is Serve on a pre-bound listener.
func ServeListener(ctx context.Context, ln net.Listener, reg *prom.Registry, status StatusFunc) error {
	srv := &http.Server{Handler: NewMux(reg, status), ReadTimeout: 30 * time.Second, WriteTimeout: 30 * time.Second, IdleTimeout: 120 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Metrics server listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		slog.Info("Metrics server stopped")
		return nil
	}
}
