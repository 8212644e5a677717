package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/beancontainer/errors"
)

func TestConnectionStatus_String(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "circuit_open", StatusCircuitOpen.String())
	assert.Equal(t, "unknown", ConnectionStatus(42).String())
}

func TestNewClient_Options(t *testing.T) {
	c, err := NewClient("nats://localhost:4222",
		WithName("beancontainer"),
		WithMaxReconnects(3),
		WithCircuitBreakerThreshold(2),
		WithRequestTimeout(time.Second),
	)
	require.NoError(t, err)
	assert.Equal(t, "nats://localhost:4222", c.URL())
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, c.IsHealthy())
	assert.Equal(t, int32(2), c.circuitThreshold)

	_, err = NewClient("nats://localhost:4222", WithCircuitBreakerThreshold(0))
	assert.True(t, errors.IsInvalid(err))
}

func TestClient_CircuitOpensAfterThreshold(t *testing.T) {
	c, err := NewClient("nats://127.0.0.1:1",
		WithCircuitBreakerThreshold(2),
		WithTimeout(200*time.Millisecond),
		WithMaxReconnects(0),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 2; i++ {
		err := c.Connect(ctx)
		require.Error(t, err)
		assert.True(t, errors.IsTransient(err))
	}
	assert.Equal(t, StatusCircuitOpen, c.Status())

	err = c.Connect(ctx)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.ErrorIs(t, err, errors.ErrNoConnection)
}

func TestClient_NotConnected(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)
	ctx := context.Background()

	err = c.Serve(ctx, "svc.invoke", "q", func(context.Context, []byte) []byte { return nil })
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = c.Request(ctx, "svc.invoke", nil)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = c.JetStream()
	assert.ErrorIs(t, err, ErrNotConnected)

	assert.NoError(t, c.Close(ctx))
	assert.NoError(t, c.Close(ctx), "close is idempotent")
}

func TestIsKVErrors(t *testing.T) {
	assert.True(t, IsKVNotFoundError(ErrKVKeyNotFound))
	assert.False(t, IsKVNotFoundError(nil))
	assert.True(t, IsKVConflictError(ErrKVRevisionMismatch))
	assert.True(t, IsKVConflictError(ErrKVKeyExists))
	assert.False(t, IsKVConflictError(ErrKVKeyNotFound))
}
