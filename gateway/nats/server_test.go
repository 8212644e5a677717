package nats

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/beancontainer/config"
	"github.com/c360/beancontainer/gateway"
	"github.com/c360/beancontainer/health"
	"github.com/c360/beancontainer/natsclient"
)

type stubDispatcher struct {
	gateway.Dispatcher
}

func (stubDispatcher) Names() []string { return []string{"module:Stub"} }

func (stubDispatcher) Health(context.Context) health.Status {
	return health.NewHealthy("container", "ok")
}

func newServer(t *testing.T) *Server {
	t.Helper()
	client, err := natsclient.NewClient("nats://127.0.0.1:4222")
	require.NoError(t, err)
	s, err := New(client, stubDispatcher{}, config.Default().NATS, nil)
	require.NoError(t, err)
	return s
}

func decode(t *testing.T, data []byte) gateway.Response {
	t.Helper()
	var resp gateway.Response
	require.NoError(t, json.Unmarshal(data, &resp))
	return resp
}

func TestServer_Handle(t *testing.T) {
	s := newServer(t)
	assert.Equal(t, "beancontainer.rpc", s.subject)

	resp := decode(t, s.handle(context.Background(), []byte(`{"action":"list"}`)))
	assert.Nil(t, resp.Error)
	assert.Equal(t, []string{"module:Stub"}, resp.Names)

	resp = decode(t, s.handle(context.Background(), []byte(`{not json`)))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_argument", resp.Error.Code)

	resp = decode(t, s.handle(context.Background(), []byte(`{"action":"invoke"}`)))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid", resp.Error.Class)

	s.Stop()
	resp = decode(t, s.handle(context.Background(), []byte(`{"action":"list"}`)))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "shutting_down", resp.Error.Code)
	assert.Equal(t, uint64(4), s.Served())
}

func TestNew_Validation(t *testing.T) {
	client, err := natsclient.NewClient("nats://127.0.0.1:4222")
	require.NoError(t, err)

	_, err = New(nil, stubDispatcher{}, config.Default().NATS, nil)
	assert.Error(t, err)

	cfg := config.Default().NATS
	cfg.SubjectPrefix = ""
	_, err = New(client, stubDispatcher{}, cfg, nil)
	assert.Error(t, err)
}
