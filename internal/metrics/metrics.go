// Package metrics exposes Prometheus collectors and the metrics/health HTTP
// endpoint.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CommandsTotal counts handled bot commands by command name.
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightboard_commands_total",
			Help: "Total number of bot commands handled.",
		},
		[]string{"command"},
	)

	// EntriesAdded counts successfully stored entries, imports included.
	EntriesAdded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flightboard_entries_added_total",
			Help: "Total number of entries added.",
		},
	)

	// EntriesExpired counts entries removed by the expiry sweep.
	EntriesExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flightboard_entries_expired_total",
			Help: "Total number of entries removed by expiry sweeps.",
		},
	)

	// SweepFailures counts expiry sweeps that failed at the store.
	SweepFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flightboard_sweep_failures_total",
			Help: "Total number of failed expiry sweeps.",
		},
	)

	// BoardRepublished counts successful board republish cycles.
	BoardRepublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flightboard_board_republish_total",
			Help: "Total number of board messages published.",
		},
	)
)

func init() {
	prometheus.MustRegister(CommandsTotal, EntriesAdded, EntriesExpired, SweepFailures, BoardRepublished)
}

// Serve runs the metrics and health endpoint on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("metrics endpoint", "error", err)
	}
}
