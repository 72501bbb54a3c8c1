package exporter

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var rowsCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "pggensql_rows_total",
	Help: "Total number of rows written as INSERT values",
})

var rowErrorsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pggensql_row_errors_total",
	Help: "Total number of rows that failed to serialize, by error kind",
}, []string{"kind"})

var exportDurationHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "pggensql_export_duration_seconds",
	Help:    "Export duration in seconds",
	Buckets: prometheus.DefBuckets,
})

// MetricsServer serves /metrics for the default registry.
type MetricsServer struct {
	srv *http.Server
	ln  net.Listener
}

// StartMetricsServer listens on addr and serves metrics in the background.
func StartMetricsServer(addr string) (*MetricsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		slog.Info("Starting metrics server.", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("Metrics server error.", "error", err)
		}
	}()
	return &MetricsServer{srv: srv, ln: ln}, nil
}

// Addr returns the address the server listens on.
func (m *MetricsServer) Addr() string {
	return m.ln.Addr().String()
}

// Shutdown stops the server, waiting for in-flight scrapes until ctx is done.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
