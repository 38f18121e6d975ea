// Package telemetry holds the Prometheus metrics of the access server.
//
// All metrics are registered against the default registry and served by the
// side-channel HTTP server started in main.go:
//
//	GET http://<host>:<METRICS_PORT>/metrics
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms, labelled by chi route pattern
//   - Access decisions: grants by action and denials by reason
//   - Delivery and audit-log write failures
//   - Registry health: code generation collisions, stale portfolio scope, code gauges
//   - Database connection pool gauge
//
// Denied attempts never reach the client-facing access log, so
// access_denied_total is the place to watch for code enumeration against a parcel.
package telemetry

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/songon-extension/access-server/internal/model"
)

// HTTP metrics. The path label holds the route pattern (e.g. /api/documents/{parcelleID}/{documentType}),
// never the raw URL, so parcel ids and codes do not inflate cardinality.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route pattern.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Access decisions.
//
// Example PromQL queries:
//   - Invalid code rate:        rate(access_denied_total{reason="unknown"}[5m])
//   - Downloads vs previews:    sum by (action) (rate(access_granted_total[1h]))
var (
	AccessDeniedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_denied_total",
			Help: "Total number of rejected code verifications, by precise reason.",
		},
		[]string{"reason"},
	)

	AccessGrantedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_granted_total",
			Help: "Total number of granted accesses, by action (preview, download, email, whatsapp, surveillance).",
		},
		[]string{"action"},
	)
)

var (
	DeliveryFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_failures_total",
			Help: "Total number of documents that could not be delivered, by channel.",
		},
		[]string{"channel"},
	)

	// AuditLogWriteFailuresTotal counts access-log rows lost after a successful delivery.
	// Deliveries are not failed for it, so alert on any increase.
	AuditLogWriteFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_log_write_failures_total",
			Help: "Total number of access log entries that could not be persisted.",
		},
	)
)

var (
	CodeGenerationCollisionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "code_generation_collisions_total",
			Help: "Total number of generated access codes that collided with an existing code.",
		},
	)

	StaleScopeTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portfolio_stale_scope_total",
			Help: "Total number of portfolio parcels skipped because the parcel no longer exists.",
		},
	)

	AccessCodes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "access_codes",
			Help: "Number of access codes by state (active, expired, revoked).",
		},
		[]string{"state"},
	)
)

var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// RecordDenied counts one rejected verification.
func RecordDenied(reason model.DenyReason) {
	AccessDeniedTotal.WithLabelValues(string(reason)).Inc()
}

func RecordGranted(action string) {
	AccessGrantedTotal.WithLabelValues(action).Inc()
}

// SetCodeCounts publishes the registry gauges.
func SetCodeCounts(c *model.AccessCodeCounts) {
	AccessCodes.WithLabelValues("active").Set(float64(c.Active))
	AccessCodes.WithLabelValues("expired").Set(float64(c.Expired))
	AccessCodes.WithLabelValues("revoked").Set(float64(c.Revoked))
}

// StartDBStatsCollector polls the pool every 30 seconds until ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sqlx.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.PingContext(ctx); err != nil {
					log.Warn().Err(err).Msg("db stats collector: database unreachable")
					continue
				}
				DBOpenConnections.Set(float64(db.Stats().OpenConnections))
			}
		}
	}()
}
