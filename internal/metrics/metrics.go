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

const namespace = "collab"

var (
	// Registry holds the service's collectors; the default global registry is
	// left untouched.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	socketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Currently open socket connections.",
		},
	)

	rooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "rooms",
			Help:      "Rooms with at least one member on this instance.",
		},
	)

	messagesPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "messages_published_total",
			Help:      "Channel publish attempts by result.",
		},
		[]string{"result"},
	)

	statusBroadcasts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "status_broadcasts_total",
			Help:      "Status-changed events fanned out.",
		},
	)

	slowConsumers = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "slow_consumer_disconnects_total",
			Help:      "Connections dropped because their send buffer was full.",
		},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Lifecycle operations by name and outcome code.",
		},
		[]string{"op", "code"},
	)

	violations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "violations",
			Help:      "Invariant violations found by the last audit run.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		socketConnections,
		rooms,
		messagesPublished,
		statusBroadcasts,
		slowConsumers,
		transitions,
		violations,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request counts and latency keyed by the matched route
// template, so path parameters do not explode label cardinality.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func ConnectionOpened() { socketConnections.Inc() }
func ConnectionClosed() { socketConnections.Dec() }

func SetRooms(n int) { rooms.Set(float64(n)) }

func MessagePublished(result string) { messagesPublished.WithLabelValues(result).Inc() }

func StatusBroadcast() { statusBroadcasts.Inc() }

func SlowConsumerDropped() { slowConsumers.Inc() }

// Transition counts a lifecycle operation; code is "ok" or an error code.
func Transition(op, code string) { transitions.WithLabelValues(op, code).Inc() }

func SetViolations(n int) { violations.Set(float64(n)) }
