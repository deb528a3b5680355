package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total number of HTTP requests processed by the relay service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"identity"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_ws_events_total",
			Help: "Total number of dispatched websocket events by result.",
		},
		[]string{"kind", "result"},
	)
	wsLifecycleTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_ws_lifecycle_total",
			Help: "Total number of websocket connect/disconnect/error events.",
		},
		[]string{"event"},
	)
	messagesRelayedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_relayed_total",
			Help: "Total number of messages persisted and relayed.",
		},
	)
	deliveryReceiptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_delivery_receipts_total",
			Help: "Total number of delivery-progress updates recorded.",
		},
	)
	readReceiptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_read_receipts_total",
			Help: "Total number of read-receipt bulk updates that marked messages.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		wsLifecycleTotal,
		messagesRelayedTotal,
		deliveryReceiptsTotal,
		readReceiptsTotal,
		amqpPublishErrorsTotal,
	)
}

// HTTPMetricsMiddleware records request counts and latencies per route.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func identityLabel(anonymous bool) string {
	if anonymous {
		return "anonymous"
	}
	return "authenticated"
}

func IncWSActive(anonymous bool) {
	wsActiveConnections.WithLabelValues(identityLabel(anonymous)).Inc()
}

func DecWSActive(anonymous bool) {
	wsActiveConnections.WithLabelValues(identityLabel(anonymous)).Dec()
}

func IncWSEvent(kind, result string) {
	wsEventsTotal.WithLabelValues(kind, result).Inc()
}

func IncWSLifecycle(event string) {
	wsLifecycleTotal.WithLabelValues(event).Inc()
}

func IncMessageRelayed() {
	messagesRelayedTotal.Inc()
}

func IncDeliveryReceipt() {
	deliveryReceiptsTotal.Inc()
}

func IncReadReceipt() {
	readReceiptsTotal.Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
