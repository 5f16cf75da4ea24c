package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LinesRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sshwatch_lines_read_total",
		Help: "Log lines read from the input source",
	})
	LinesUnmatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sshwatch_lines_unmatched_total",
		Help: "Log lines that did not contain an sshd address/port record",
	})
	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sshwatch_events_total",
		Help: "Matched auth events by status",
	}, []string{"status"})
	EventsFiltered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sshwatch_events_filtered_total",
		Help: "Matched events rejected by the filter expression",
	})
	AlertsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sshwatch_alerts_total",
		Help: "Brute-force alerts by risk level",
	}, []string{"risk"})
	ConfigReloads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sshwatch_config_reloads_total",
		Help: "Successful configuration reloads",
	})
	SinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sshwatch_sink_errors_total",
		Help: "Failed writes to event sinks",
	}, []string{"sink"})
)

// StatusLabel maps an empty status to a readable label value.
func StatusLabel(status string) string {
	if status == "" {
		return "none"
	}
	return status
}

// Handler returns the /metrics handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartServer serves /metrics on addr until ctx is done.
func StartServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
