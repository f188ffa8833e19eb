// Package metrics exposes the Prometheus collectors for the economy service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	transfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "economy",
			Subsystem: "ledger",
			Name:      "transfers_total",
			Help:      "Total number of transfer attempts by outcome.",
		},
		[]string{"status"},
	)

	payRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "economy",
			Subsystem: "ledger",
			Name:      "pay_rejections_total",
			Help:      "Total number of rejected pay calls by status code.",
		},
		[]string{"code"},
	)

	rollbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "economy",
			Subsystem: "ledger",
			Name:      "rollbacks_total",
			Help:      "Total number of compensating transfers issued.",
		},
		[]string{"kind"},
	)

	settlementPeriods = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "economy",
			Subsystem: "settlement",
			Name:      "periods_total",
			Help:      "Total number of billing periods settled.",
		},
	)

	settlementBlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "economy",
			Subsystem: "settlement",
			Name:      "blocked_total",
			Help:      "Total number of duties/boxes blocked for insolvency.",
		},
		[]string{"kind"},
	)

	settlementPassDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "economy",
			Subsystem: "settlement",
			Name:      "pass_duration_seconds",
			Help:      "Duration of full settlement passes.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
	)
)

func init() {
	Registry.MustRegister(
		transfers,
		payRejections,
		rollbacks,
		settlementPeriods,
		settlementBlocked,
		settlementPassDuration,
	)
}

// Handler returns the HTTP handler serving the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// TransferObserved records one transfer attempt outcome.
func TransferObserved(status string) {
	transfers.WithLabelValues(status).Inc()
}

// PayRejected records one rejected pay call.
func PayRejected(code int) {
	payRejections.WithLabelValues(strconv.Itoa(code)).Inc()
}

// RollbackCompensated records one issued compensating transfer.
func RollbackCompensated(kind string) {
	rollbacks.WithLabelValues(kind).Inc()
}

// PeriodsSettled records settled billing periods.
func PeriodsSettled(n int) {
	settlementPeriods.Add(float64(n))
}

// EntityBlocked records a duty or box blocked for insolvency.
func EntityBlocked(kind string) {
	settlementBlocked.WithLabelValues(kind).Inc()
}

// SettlementPass records the duration of one full settlement pass.
func SettlementPass(d time.Duration) {
	settlementPassDuration.Observe(d.Seconds())
}
