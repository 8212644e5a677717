//go:build integration

package nats

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/beancontainer/beans/cart"
	"github.com/c360/beancontainer/component"
	"github.com/c360/beancontainer/config"
	"github.com/c360/beancontainer/gateway"
	"github.com/c360/beancontainer/natsclient"
	"github.com/c360/beancontainer/testutil"
)

func TestNATSGateway_ShoppingCart(t *testing.T) {
	tc := natsclient.NewTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	env := testutil.StartContainer(t)

	cfg := config.Default().NATS
	s, err := New(tc.Client, env.Container, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start(ctx))

	call := func(req gateway.Request) gateway.Response {
		data, err := json.Marshal(req)
		require.NoError(t, err)
		reply, err := tc.Client.Request(ctx, Subject(cfg.SubjectPrefix), data)
		require.NoError(t, err)
		var resp gateway.Response
		require.NoError(t, json.Unmarshal(reply, &resp))
		return resp
	}

	created := call(gateway.Request{Action: gateway.ActionCreateSession, Component: cart.Name})
	require.Nil(t, created.Error)
	key := created.SessionKey

	resp := call(gateway.Request{
		Action: gateway.ActionInvoke, Component: cart.Name, SessionKey: key,
		Operation: "addItem", Args: component.Args{cart.Item{ID: "b1", Title: "Book", Price: 9.5}},
	})
	require.Nil(t, resp.Error)

	resp = call(gateway.Request{Action: gateway.ActionInvoke, Component: cart.Name, SessionKey: key, Operation: "checkout", Args: component.Args{"Paul"}})
	require.Nil(t, resp.Error)

	resp = call(gateway.Request{Action: gateway.ActionInvoke, Component: cart.Name, SessionKey: key, Operation: "total"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, "no_such_session", resp.Error.Code)
}
