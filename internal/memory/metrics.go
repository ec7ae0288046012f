package memory

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports memory service telemetry to Prometheus. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	opDuration      *prometheus.HistogramVec
	opErrors        *prometheus.CounterVec
	evictions       prometheus.Counter
	quotaRejections prometheus.Counter
	capacityAlerts  prometheus.Counter
}

// NewMetrics registers the memory service collectors on reg. Passing a nil
// Registerer uses the default one; re-registration of identical collectors
// is tolerated so tests can build multiple services.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = "hivemind_memory"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of memory service operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		opErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Count of failed memory service operations.",
		}, []string{"operation"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Records evicted by the capacity policy.",
		}),
		quotaRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_rejections_total",
			Help:      "Add operations rejected because the tenant had no remaining quota.",
		}),
		capacityAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capacity_exceeded_total",
			Help:      "Sweeps that left a tenant over capacity because all records were pinned.",
		}),
	}

	collectors := []prometheus.Collector{
		m.opDuration, m.opErrors, m.evictions, m.quotaRejections, m.capacityAlerts,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return nil, fmt.Errorf("memory: register metric: %w", err)
		}
	}
	return m, nil
}

// ObserveOp records a completed operation's duration and failure state.
func (m *Metrics) ObserveOp(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.opDuration.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		m.opErrors.WithLabelValues(op).Inc()
	}
}

// RecordEvictions counts records removed by the capacity policy.
func (m *Metrics) RecordEvictions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evictions.Add(float64(n))
}

// RecordQuotaRejection counts an add rejected for lack of quota.
func (m *Metrics) RecordQuotaRejection() {
	if m == nil {
		return
	}
	m.quotaRejections.Inc()
}

// RecordCapacityExceeded counts an over-capacity-all-pinned condition.
func (m *Metrics) RecordCapacityExceeded() {
	if m == nil {
		return
	}
	m.capacityAlerts.Inc()
}
