package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/beancontainer/errors"
)

const namespace = "beancontainer"

// Metrics are the container-wide instruments. Every method is a no-op on a
// nil receiver so packages can run without a registry in tests.
type Metrics struct {
	Invocations      *prometheus.CounterVec
	InvocationTime   *prometheus.HistogramVec
	LockWait         *prometheus.HistogramVec
	LockTimeouts     *prometheus.CounterVec
	SessionsActive   *prometheus.GaugeVec
	SessionsRemoved  *prometheus.CounterVec
	PoolInstances    *prometheus.GaugeVec
	SweepRuns        prometheus.Counter
	SingletonsActive prometheus.Gauge
}

// NewMetrics creates the container metrics without registering them
func NewMetrics() *Metrics {
	return &Metrics{
		Invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "invocations",
				Name:      "total",
				Help:      "Operation invocations by component, kind and outcome",
			},
			[]string{"component", "kind", "outcome"},
		),
		InvocationTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "invocations",
				Name:      "duration_seconds",
				Help:      "Operation latency including lock and session waits",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
			[]string{"component", "kind"},
		),
		LockWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "singleton",
				Name:      "lock_wait_seconds",
				Help:      "Time spent acquiring container-managed singleton locks",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"component", "lock"},
		),
		LockTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "singleton",
				Name:      "lock_timeouts_total",
				Help:      "Lock acquisitions that exceeded the access timeout",
			},
			[]string{"component", "lock"},
		),
		SessionsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "sessions",
				Name:      "active",
				Help:      "Active stateful sessions",
			},
			[]string{"component"},
		),
		SessionsRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sessions",
				Name:      "removed_total",
				Help:      "Stateful sessions ended, by reason",
			},
			[]string{"component", "reason"},
		),
		PoolInstances: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "instances",
				Help:      "Stateless instances by state (idle, in_use)",
			},
			[]string{"component", "state"},
		),
		SweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "sweeps_total",
			Help:      "Completed expiry sweeps",
		}),
		SingletonsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "singleton",
			Name:      "active",
			Help:      "Initialized singletons",
		}),
	}
}

func (m *Metrics) mustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		m.Invocations, m.InvocationTime, m.LockWait, m.LockTimeouts,
		m.SessionsActive, m.SessionsRemoved, m.PoolInstances,
		m.SweepRuns, m.SingletonsActive,
	)
}

// Outcome maps an invocation error to its metric label
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return errors.Classify(err).String()
}

// RecordInvocation counts one call and observes its latency
func (m *Metrics) RecordInvocation(component, kind string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.Invocations.WithLabelValues(component, kind, Outcome(err)).Inc()
	m.InvocationTime.WithLabelValues(component, kind).Observe(d.Seconds())
}

// RecordLockWait observes a lock acquisition; timedOut also counts a timeout
func (m *Metrics) RecordLockWait(component, lock string, d time.Duration, timedOut bool) {
	if m == nil {
		return
	}
	m.LockWait.WithLabelValues(component, lock).Observe(d.Seconds())
	if timedOut {
		m.LockTimeouts.WithLabelValues(component, lock).Inc()
	}
}

// SessionCreated increments the active session gauge
func (m *Metrics) SessionCreated(component string) {
	if m == nil {
		return
	}
	m.SessionsActive.WithLabelValues(component).Inc()
}

// SessionEnded decrements the active gauge and counts the removal reason
func (m *Metrics) SessionEnded(component, reason string) {
	if m == nil {
		return
	}
	m.SessionsActive.WithLabelValues(component).Dec()
	m.SessionsRemoved.WithLabelValues(component, reason).Inc()
}

// SetPoolInstances publishes the idle and in-use counts of a pool
func (m *Metrics) SetPoolInstances(component string, idle, inUse int) {
	if m == nil {
		return
	}
	m.PoolInstances.WithLabelValues(component, "idle").Set(float64(idle))
	m.PoolInstances.WithLabelValues(component, "in_use").Set(float64(inUse))
}

// RecordSweep counts one sweep run
func (m *Metrics) RecordSweep() {
	if m == nil {
		return
	}
	m.SweepRuns.Inc()
}

// SetSingletons publishes the number of initialized singletons
func (m *Metrics) SetSingletons(n int) {
	if m == nil {
		return
	}
	m.SingletonsActive.Set(float64(n))
}
