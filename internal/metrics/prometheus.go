package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector implements Collector using Prometheus metrics.
type PrometheusCollector struct {
	sessionsTotal  prometheus.Counter
	sessionsActive prometheus.Gauge

	verbsTotal *prometheus.CounterVec

	handleCount prometheus.Histogram

	storeLatency *prometheus.HistogramVec
}

// NewPrometheusCollector creates a PrometheusCollector with all metrics
// registered against reg.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		sessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exmdbsrv_sessions_total",
			Help: "Total number of logon sessions opened.",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "exmdbsrv_sessions_active",
			Help: "Number of currently active logon sessions.",
		}),
		verbsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exmdbsrv_verbs_total",
			Help: "Total number of rop verb calls, by verb and result code.",
		}, []string{"verb", "code"}),
		handleCount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "exmdbsrv_handles_per_session",
			Help:    "Live handle count in a session's handle map after a mutation.",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
		}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "exmdbsrv_store_call_seconds",
			Help:    "Latency of exmdb.Store driver calls, by method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(
		c.sessionsTotal,
		c.sessionsActive,
		c.verbsTotal,
		c.handleCount,
		c.storeLatency,
	)
	return c
}

func (c *PrometheusCollector) SessionOpened() {
	c.sessionsTotal.Inc()
	c.sessionsActive.Inc()
}

func (c *PrometheusCollector) SessionClosed() {
	c.sessionsActive.Dec()
}

func (c *PrometheusCollector) VerbCalled(verb string, code string) {
	c.verbsTotal.WithLabelValues(verb, code).Inc()
}

func (c *PrometheusCollector) HandleCount(n int) {
	c.handleCount.Observe(float64(n))
}

func (c *PrometheusCollector) StoreLatency(method string, seconds float64) {
	c.storeLatency.WithLabelValues(method).Observe(seconds)
}

// HTTPServer serves the default Prometheus registry's /metrics endpoint.
type HTTPServer struct {
	Addr string
	Path string

	srv *http.Server
}

// Start implements Server.
func (s *HTTPServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	path := s.Path
	if path == "" {
		path = "/metrics"
	}
	mux.Handle(path, promhttp.Handler())
	s.srv = &http.Server{Addr: s.Addr, Handler: mux}

	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown implements Server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
