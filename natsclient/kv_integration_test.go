//go:build integration

package natsclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVStore_Integration(t *testing.T) {
	tc := NewTestClient(t, WithKVBuckets("records"))
	ctx := context.Background()

	kv, err := tc.KVStore(ctx, "records")
	require.NoError(t, err)

	_, err = kv.Create(ctx, "Book.1", []byte(`{"title":"Go"}`))
	require.NoError(t, err)

	_, err = kv.Create(ctx, "Book.1", []byte(`{}`))
	assert.ErrorIs(t, err, ErrKVKeyExists)

	require.NoError(t, kv.UpdateExisting(ctx, "Book.1", []byte(`{"title":"Go 2"}`)))
	entry, err := kv.Get(ctx, "Book.1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Go 2"}`, string(entry.Value))

	assert.ErrorIs(t, kv.UpdateExisting(ctx, "Book.2", []byte(`{}`)), ErrKVKeyNotFound)

	_, err = kv.Create(ctx, "CD.1", []byte(`{}`))
	require.NoError(t, err)
	keys, err := kv.Keys(ctx, "Book.")
	require.NoError(t, err)
	assert.Equal(t, []string{"Book.1"}, keys)

	require.NoError(t, kv.Delete(ctx, "Book.1"))
	_, err = kv.Get(ctx, "Book.1")
	assert.ErrorIs(t, err, ErrKVKeyNotFound)
	assert.ErrorIs(t, kv.Delete(ctx, "Book.1"), ErrKVKeyNotFound)
}

func TestClient_ServeRequest_Integration(t *testing.T) {
	tc := NewTestClient(t)
	ctx := context.Background()

	err := tc.Client.Serve(ctx, "echo", "workers", func(_ context.Context, data []byte) []byte {
		return append([]byte("re:"), data...)
	})
	require.NoError(t, err)

	reply, err := tc.Client.Request(ctx, "echo", []byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, "re:ping", string(reply))
}
