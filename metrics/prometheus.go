package metrics

import (
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// all metrics and middleware for the REST API and the rotation core
var (
	// to prevent metrics from being initialized multiple times
	isMetricsInitVar uint32 = 0

	// active REST API connections
	activeRESTConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_rest_connections",
			Help: "Number of active REST API connections",
		},
	)

	// response times for REST APIs
	responseTimeRESTAPI = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "restapi_response_time_milliseconds",
			Help:    "REST API response time distributions",
			Buckets: []float64{1, 10, 50, 100, 200, 300, 400, 500},
		},
		[]string{"method", "endpoint"},
	)

	// Number of requests processed by REST API
	RESTRequestMetricsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rest_requests_processed_total",
		Help: "The total number of processed REST requests",
	}, []string{"method", "endpoint"})

	// Number of rotation packets built and delivered to peers
	RotationPacketsSentMetricsCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rotation_packets_sent_total",
		Help: "The total number of rotation packets sent to peers",
	})

	// Number of rotation packets received and accepted
	RotationPacketsReceivedMetricsCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rotation_packets_received_total",
		Help: "The total number of rotation packets received and accepted",
	})

	// Number of failed rotation operations (transport or validation)
	RotationFailedMetricsCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rotation_failures_total",
		Help: "The total number of failed rotation operations",
	})

	// Number of monitor sweeps over the record map
	RotationSweepMetricsCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rotation_sweeps_total",
		Help: "The total number of rotation monitor sweeps",
	})

	// Number of overdue classifications emitted by sweeps
	RotationOverdueMetricsCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rotation_overdue_total",
		Help: "The total number of overdue events emitted",
	})
)

func setIsMetricsInit() {
	atomic.StoreUint32(&isMetricsInitVar, 1)
}

func isMetricsInit() bool {
	return atomic.LoadUint32(&isMetricsInitVar) == 1
}

func InitMetrics() {
	if !isMetricsInit() {
		setIsMetricsInit()

		// Metrics have to be registered to be exposed
		prometheus.MustRegister(activeRESTConnections)
		prometheus.MustRegister(responseTimeRESTAPI)
		prometheus.MustRegister(RESTRequestMetricsTotal)
		prometheus.MustRegister(RotationPacketsSentMetricsCount)
		prometheus.MustRegister(RotationPacketsReceivedMetricsCount)
		prometheus.MustRegister(RotationFailedMetricsCount)
		prometheus.MustRegister(RotationSweepMetricsCount)
		prometheus.MustRegister(RotationOverdueMetricsCount)
	}
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Increment the counter for the given endpoint:
		RESTRequestMetricsTotal.WithLabelValues(c.Request.Method, c.FullPath()).Inc()

		// Start timing responseTime histogram
		start := time.Now()

		// Set activeConnections gauge
		activeRESTConnections.Inc()
		defer activeRESTConnections.Dec()

		c.Next()

		// Set responseTime histogram
		latency := time.Since(start)
		responseTimeRESTAPI.WithLabelValues(c.Request.Method, c.Request.URL.Path).Observe(float64(latency.Milliseconds()))
	}
}
