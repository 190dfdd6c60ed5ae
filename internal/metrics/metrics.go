// Package metrics provides Prometheus instrumentation for the zappanel backend.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zappanel",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "zappanel",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// GateDecisionsTotal counts access-gate outcomes by decision.
	GateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zappanel",
			Name:      "gate_decisions_total",
			Help:      "Total access-gate evaluations by outcome (pass, redirect_login, redirect_plans).",
		},
		[]string{"outcome"},
	)

	// GateFailOpenTotal counts gate evaluations allowed through because a
	// lookup failed. Non-zero here is an availability trade, not a success.
	GateFailOpenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zappanel",
			Name:      "gate_fail_open_total",
			Help:      "Total requests passed through the gate because a lookup failed.",
		},
		[]string{"stage"},
	)

	// TrialExpirationsTotal counts lazy trial->suspended transitions performed
	// by the gate.
	TrialExpirationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "zappanel",
		Name:      "trial_expirations_total",
		Help:      "Total trial subscriptions suspended lazily at request time.",
	})

	// PlanNotFoundTotal counts subscriptions whose plan name failed to resolve
	// against the catalogue during quota aggregation.
	PlanNotFoundTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zappanel",
			Name:      "plan_not_found_total",
			Help:      "Total quota aggregations that skipped a subscription with an unknown plan name.",
		},
		[]string{"plan_name"},
	)

	// EntitlementDenialsTotal counts provisioning requests rejected by quota.
	EntitlementDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zappanel",
			Name:      "entitlement_denials_total",
			Help:      "Total provisioning requests denied by resource quota.",
		},
		[]string{"resource"},
	)

	// ProvisionedResources tracks live resource counts by type.
	ProvisionedResources = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "zappanel",
			Name:      "provisioned_resources",
			Help:      "Currently provisioned resources by type.",
		},
		[]string{"resource"},
	)

	// ActiveSessions tracks currently valid login sessions.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "zappanel",
		Name:      "active_sessions",
		Help:      "Number of currently active login sessions.",
	})

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "zappanel", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "zappanel", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "zappanel", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// DBWaitCount tracks the total number of connections waited for.
	DBWaitCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "zappanel", Name: "db_wait_count_total",
		Help: "Total number of connections waited for.",
	})
	// DBWaitDuration tracks total time waited for connections.
	DBWaitDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "zappanel", Name: "db_wait_duration_seconds_total",
		Help: "Total time waited for connections in seconds.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "zappanel", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		GateDecisionsTotal,
		GateFailOpenTotal,
		TrialExpirationsTotal,
		PlanNotFoundTotal,
		EntitlementDenialsTotal,
		ProvisionedResources,
		ActiveSessions,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		DBWaitCount,
		DBWaitDuration,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			DBWaitCount.Set(float64(stats.WaitCount))
			DBWaitDuration.Set(stats.WaitDuration.Seconds())
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
