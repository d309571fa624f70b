package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geowhisper",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "geowhisper",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "geowhisper",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Zone labelling
	GeocoderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geowhisper",
		Subsystem: "geocoder",
		Name:      "requests_total",
		Help:      "Reverse-geocoding requests by outcome",
	}, []string{"outcome"})

	GeocoderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "geowhisper",
		Subsystem: "geocoder",
		Name:      "request_duration_seconds",
		Help:      "Reverse-geocoding request latency",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	LabelsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geowhisper",
		Subsystem: "zones",
		Name:      "labels_resolved_total",
		Help:      "Label resolutions by result (resolved, skipped, failed)",
	}, []string{"result"})

	ZoneNumbersAssigned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geowhisper",
		Subsystem: "zones",
		Name:      "numbers_assigned_total",
		Help:      "Session zone numbers assigned",
	})

	ZoneNumberFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geowhisper",
		Subsystem: "zones",
		Name:      "number_fallbacks_total",
		Help:      "Zone number lookups that degraded to a derived label",
	})

	HotZoneQueries = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "geowhisper",
		Subsystem: "zones",
		Name:      "hot_zone_candidates",
		Help:      "Candidate zones analysed per hot-zone query",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geowhisper",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geowhisper",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geowhisper",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	PrefetchesCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geowhisper",
		Subsystem: "prefetch",
		Name:      "workflows_total",
		Help:      "Label prefetch workflows started, by result",
	}, []string{"result"})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
