package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// 信令通道指标
	SignalOnlineUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "signal_online_users",
			Help: "Number of learners holding a live signaling connection",
		},
	)

	SignalMessageCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_messages_total",
			Help: "Signaling messages by type and direction",
		},
		[]string{"type", "direction"},
	)

	CallEventCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "call_events_total",
			Help: "Practice call lifecycle events",
		},
		[]string{"event"}, // requested, accepted, declined, ended, timeout, failed
	)

	ActiveCallSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "call_sessions_active",
			Help: "Number of practice calls currently connected",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(SignalOnlineUsers)
	prometheus.MustRegister(SignalMessageCounter)
	prometheus.MustRegister(CallEventCounter)
	prometheus.MustRegister(ActiveCallSessions)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
