package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records outcomes of wallet ledger mutations.
type LedgerMetrics struct {
	duration  *prometheus.HistogramVec
	applied   *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	conflicts *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_apply_duration_seconds",
		Help:    "Duration of wallet ledger mutations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
	applied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_transactions_applied",
		Help: "Ledger entries applied successfully.",
	}, []string{"type"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_transactions_rejected",
		Help: "Ledger entries rejected before commit.",
	}, []string{"type", "reason"})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_version_conflicts",
		Help: "Optimistic lock conflicts observed while applying entries.",
	}, []string{"type"})
	reg.MustRegister(duration, applied, rejected, conflicts)
	return &LedgerMetrics{
		duration:  duration,
		applied:   applied,
		rejected:  rejected,
		conflicts: conflicts,
	}
}

// ObserveDuration records the duration for the given transaction type.
func (l *LedgerMetrics) ObserveDuration(txnType string, duration time.Duration) {
	if l == nil || l.duration == nil {
		return
	}
	l.duration.WithLabelValues(normalizeLabel(txnType)).Observe(duration.Seconds())
}

// IncApplied increments the applied counter for the given transaction type.
func (l *LedgerMetrics) IncApplied(txnType string) {
	if l == nil || l.applied == nil {
		return
	}
	l.applied.WithLabelValues(normalizeLabel(txnType)).Inc()
}

// IncRejected increments the rejected counter with the failure reason.
func (l *LedgerMetrics) IncRejected(txnType, reason string) {
	if l == nil || l.rejected == nil {
		return
	}
	l.rejected.WithLabelValues(normalizeLabel(txnType), normalizeLabel(reason)).Inc()
}

// IncConflict increments the version conflict counter.
func (l *LedgerMetrics) IncConflict(txnType string) {
	if l == nil || l.conflicts == nil {
		return
	}
	l.conflicts.WithLabelValues(normalizeLabel(txnType)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
