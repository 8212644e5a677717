package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/beancontainer/beans/cart"
	"github.com/c360/beancontainer/component"
	"github.com/c360/beancontainer/container"
	"github.com/c360/beancontainer/errors"
)

func TestStartContainer_FakeClockDrivesExpiry(t *testing.T) {
	env := StartContainer(t)
	ctx := context.Background()

	key, err := env.Container.CreateSession(ctx, cart.Name)
	require.NoError(t, err)

	env.Clock.Step(cart.IdleTimeout + time.Second)
	assert.Equal(t, 1, env.Container.Sweep(ctx))

	_, err = env.Container.Invoke(ctx, container.Call{Component: cart.Name, SessionKey: key, Operation: "total"})
	assert.ErrorIs(t, err, errors.ErrNoSuchSession)
}

func TestOps_FactoryCopiesTable(t *testing.T) {
	calls := 0
	ops := Ops{"hit": func(context.Context, component.Args) (any, error) {
		calls++
		return calls, nil
	}}
	env := StartContainer(t, WithDefinitions(component.Definition{
		Name: "Hits", Kind: component.Stateless, Factory: ops.Factory(),
	}))

	out, err := env.Container.Invoke(context.Background(), container.Call{Component: "Hits", Operation: "hit"})
	require.NoError(t, err)
	assert.Equal(t, 1, out)

	inst, err := ops.Factory()(component.Dependencies{})
	require.NoError(t, err)
	delete(inst.(Ops), "hit")
	assert.Contains(t, ops, "hit", "instances never share the original table")
}
