package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authgate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Authentication metrics
	loginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_login_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"method", "status"}, // status: success/failure/blocked
	)

	loginDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authgate_login_duration_seconds",
			Help:    "Login request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method"},
	)

	tokenValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_token_validations_total",
			Help: "Total number of token validations",
		},
		[]string{"status"}, // status: success/failure/missing
	)

	rateLimitHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authgate_rate_limit_hits_total",
			Help: "Total number of login rate limit hits",
		},
	)
)

// Metrics creates a Prometheus metrics middleware
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// FullPath keeps the label cardinality bounded to registered
		// routes; unmatched requests collapse into one bucket.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

// RecordLoginAttempt records a login attempt metric
func RecordLoginAttempt(method, status string, duration time.Duration) {
	loginAttemptsTotal.WithLabelValues(method, status).Inc()
	loginDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordTokenValidation records a token validation metric
func RecordTokenValidation(status string) {
	tokenValidationsTotal.WithLabelValues(status).Inc()
}

// RecordRateLimitHit records a rate limit hit
func RecordRateLimitHit() {
	rateLimitHitsTotal.Inc()
}
