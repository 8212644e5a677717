package health

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate(t *testing.T) {
	tests := []struct {
		name string
		subs []Status
		want string
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", []Status{NewHealthy("a", ""), NewHealthy("b", "")}, StatusHealthy},
		{"one degraded", []Status{NewHealthy("a", ""), NewDegraded("b", "")}, StatusDegraded},
		{"unhealthy wins", []Status{NewDegraded("a", ""), NewUnhealthy("b", ""), NewHealthy("c", "")}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate("container", tt.subs)
			assert.Equal(t, tt.want, got.Status)
			assert.Equal(t, tt.want == StatusHealthy, got.Healthy)
			assert.Len(t, got.SubStatuses, len(tt.subs))
		})
	}
}

func TestAggregate_CopiesSubStatuses(t *testing.T) {
	subs := []Status{NewHealthy("a", "")}
	agg := Aggregate("container", subs)
	subs[0].Component = "changed"
	assert.Equal(t, "a", agg.SubStatuses[0].Component)
}

func TestStatus_WithDetailAndSubStatus(t *testing.T) {
	base := NewHealthy("sessions", "ok")
	withDetail := base.WithDetail("active", 3)
	assert.Nil(t, base.Details, "original is not modified")
	assert.Equal(t, 3, withDetail.Details["active"])

	parent := NewHealthy("container", "")
	child := parent.WithSubStatus(base)
	assert.Empty(t, parent.SubStatuses)
	require.Len(t, child.SubStatuses, 1)
	assert.Equal(t, "sessions", child.SubStatuses[0].Component)
}

func TestFromError(t *testing.T) {
	assert.True(t, FromError("nats", nil).IsHealthy())

	st := FromError("nats", errors.New("dial nats://admin@10.0.0.5:4222 failed: password=hunter2"))
	assert.True(t, st.IsUnhealthy())
	assert.False(t, st.Healthy)
	assert.NotContains(t, st.Message, "10.0.0.5")
	assert.NotContains(t, st.Message, "hunter2")
	assert.Contains(t, st.Message, "[URL]")
}

func TestSanitizeErrorMessage(t *testing.T) {
	tests := []struct {
		in, notWant string
	}{
		{"open /etc/beancontainer/config.json: denied", "/etc/beancontainer"},
		{"connect 192.168.1.10 refused", "192.168.1.10"},
		{"listen :8080 in use", ":8080"},
		{"auth failed token: abc123", "abc123"},
	}
	for _, tt := range tests {
		assert.NotContains(t, sanitizeErrorMessage(tt.in), tt.notWant, tt.in)
	}
	assert.Empty(t, sanitizeErrorMessage(""))
}
