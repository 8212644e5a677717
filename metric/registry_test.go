package metric

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/c360/beancontainer/errors"
)

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()
	require.NotNil(t, registry.PrometheusRegistry())
	require.NotNil(t, registry.CoreMetrics())

	var nilRegistry *MetricsRegistry
	assert.Nil(t, nilRegistry.CoreMetrics())
}

func TestMetricsRegistry_RegisterDuplicate(t *testing.T) {
	registry := NewMetricsRegistry()
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "gateway_requests_total", Help: "h"}, []string{"route"})

	require.NoError(t, registry.RegisterCounterVec("gateway", "requests_total", vec))

	err := registry.RegisterCounterVec("gateway", "requests_total", vec)
	require.Error(t, err)
	assert.True(t, cerrors.IsInvalid(err))

	other := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "gateway_requests_total", Help: "h"}, []string{"route"})
	err = registry.RegisterCounterVec("other", "requests_total", other)
	assert.True(t, cerrors.IsInvalid(err), "prometheus name conflict")

	assert.True(t, registry.Unregister("gateway", "requests_total"))
	assert.False(t, registry.Unregister("gateway", "requests_total"))
	require.NoError(t, registry.RegisterCounterVec("other", "requests_total", other))
}

func TestMetrics_Record(t *testing.T) {
	m := NewMetricsRegistry().CoreMetrics()

	m.RecordInvocation("ShoppingCart", "stateful", nil, time.Millisecond)
	m.RecordInvocation("ShoppingCart", "stateful", cerrors.ErrNoSuchSession, time.Millisecond)
	m.RecordInvocation("ItemCache", "singleton", cerrors.ErrConcurrentAccessTimeout, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Invocations.WithLabelValues("ShoppingCart", "stateful", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Invocations.WithLabelValues("ShoppingCart", "stateful", "invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Invocations.WithLabelValues("ItemCache", "singleton", "transient")))

	m.RecordLockWait("ItemCache", "exclusive", time.Second, true)
	m.RecordLockWait("ItemCache", "exclusive", time.Millisecond, false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LockTimeouts.WithLabelValues("ItemCache", "exclusive")))

	m.SessionCreated("ShoppingCart")
	m.SessionCreated("ShoppingCart")
	m.SessionEnded("ShoppingCart", "expired")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsActive.WithLabelValues("ShoppingCart")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsRemoved.WithLabelValues("ShoppingCart", "expired")))

	m.SetPoolInstances("ItemService", 3, 1)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PoolInstances.WithLabelValues("ItemService", "idle")))

	m.RecordSweep()
	m.SetSingletons(2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepRuns))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SingletonsActive))
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordInvocation("x", "stateless", errors.New("boom"), time.Second)
		m.RecordLockWait("x", "shared", time.Second, true)
		m.SessionCreated("x")
		m.SessionEnded("x", "removed")
		m.SetPoolInstances("x", 1, 1)
		m.RecordSweep()
		m.SetSingletons(1)
	})
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "fatal", Outcome(cerrors.ErrComponentPanic))
}

func TestHandler(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordSweep()

	rec := httptest.NewRecorder()
	registry.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "beancontainer_scheduler_sweeps_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}
