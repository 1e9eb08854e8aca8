package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docintel"

// HTTPServerMetrics owns the registry exposed on /metrics of the API.
// Every collector it creates carries a constant service label.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	requestBytes *prometheus.HistogramVec
	inFlight     prometheus.Gauge
	rejections   *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: namespace, Subsystem: "http", Name: name, Help: help}
	}
	m := &HTTPServerMetrics{
		registry: registry,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts(opts("requests_total", "HTTP requests by route template and status.")),
			[]string{"method", "path", "status"},
		),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency. Uploads include classification and extraction.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method", "path"}),
		requestBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_size_bytes",
			Help:      "Declared request body size.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		}, []string{"method", "path"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts(opts("in_flight_requests", "Requests currently being served."))),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts(opts("rejected_total", "Requests rejected by traffic control, by reason.")),
			[]string{"reason"},
		),
	}

	labeled := prometheus.WrapRegistererWith(prometheus.Labels{"service": service}, registry)
	labeled.MustRegister(m.requests, m.latency, m.requestBytes, m.inFlight, m.rejections)
	return m
}

// Registry lets other collectors of the same process share the endpoint.
func (m *HTTPServerMetrics) Registry() prometheus.Registerer {
	return m.registry
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware labels by the matched route template. Requests that match no
// route share the "unmatched" path.
func (m *HTTPServerMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if c.Request.ContentLength > 0 {
			m.requestBytes.WithLabelValues(method, path).Observe(float64(c.Request.ContentLength))
		}
	}
}

func (m *HTTPServerMetrics) RecordRejection(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.rejections.WithLabelValues(reason).Inc()
}
