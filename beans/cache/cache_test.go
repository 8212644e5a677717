package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/c360/beancontainer/component"
	"github.com/c360/beancontainer/errors"
	"github.com/c360/beancontainer/singleton"
)

func startCaches(t *testing.T) *singleton.Manager {
	t.Helper()
	reg := component.NewRegistry()
	require.NoError(t, Register(reg))
	m := singleton.NewManager(reg)
	require.NoError(t, m.InitializeAll(context.Background()))
	t.Cleanup(func() { m.Shutdown(context.Background()) })
	return m
}

func TestCache_AddIgnoresExisting(t *testing.T) {
	m := startCaches(t)
	ctx := context.Background()

	for _, name := range []string{Name, NameBMC} {
		t.Run(name, func(t *testing.T) {
			_, err := m.Invoke(ctx, name, "addToCache", component.Args{int64(1), "first"})
			require.NoError(t, err)
			_, err = m.Invoke(ctx, name, "addToCache", component.Args{1.0, "second"})
			require.NoError(t, err)

			got, err := m.Invoke(ctx, name, "getFromCache", component.Args{1})
			require.NoError(t, err)
			assert.Equal(t, "first", got)

			n, err := m.Invoke(ctx, name, "numberOfItems", nil)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			missing, err := m.Invoke(ctx, name, "getFromCache", component.Args{int64(99)})
			require.NoError(t, err)
			assert.Nil(t, missing)

			_, err = m.Invoke(ctx, name, "removeFromCache", component.Args{int64(1)})
			require.NoError(t, err)
			_, err = m.Invoke(ctx, name, "addToCache", component.Args{int64(2), "x"})
			require.NoError(t, err)
			_, err = m.Invoke(ctx, name, "clearCache", nil)
			require.NoError(t, err)
			n, _ = m.Invoke(ctx, name, "numberOfItems", nil)
			assert.Equal(t, 0, n)
		})
	}
}

func TestCache_ConcurrentWriters(t *testing.T) {
	m := startCaches(t)
	ctx := context.Background()

	for _, name := range []string{Name, NameBMC} {
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < 50; i++ {
			id := int64(i % 10)
			g.Go(func() error {
				if _, err := m.Invoke(gctx, name, "addToCache", component.Args{id, id}); err != nil {
					return err
				}
				_, err := m.Invoke(gctx, name, "getFromCache", component.Args{id})
				return err
			})
		}
		require.NoError(t, g.Wait(), name)

		n, err := m.Invoke(ctx, name, "numberOfItems", nil)
		require.NoError(t, err)
		assert.Equal(t, 10, n, name)
	}
}

func TestCache_WriterWaitsForReaders(t *testing.T) {
	m := startCaches(t)
	lock, ok := m.Lock(Name)
	require.True(t, ok)

	// Hold a shared lock the way a long read would.
	release, err := lock.Acquire(context.Background(), component.Shared, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = m.Invoke(ctx, Name, "getFromCache", component.Args{int64(1)})
	assert.NoError(t, err, "readers share the lock")

	_, err = m.Invoke(ctx, Name, "addToCache", component.Args{int64(1), "v"})
	require.Error(t, err, "the writer cannot get in while a reader holds the lock")
	assert.True(t, errors.IsTransient(err))

	release()
	n, err := m.Invoke(context.Background(), Name, "numberOfItems", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "a timed-out writer changes nothing")
}

func TestDefinitions(t *testing.T) {
	def := Definition()
	require.NoError(t, def.Validate())
	assert.Equal(t, component.Shared, def.LockFor("getFromCache").Type)
	assert.Equal(t, component.Exclusive, def.LockFor("clearCache").Type)
	assert.Equal(t, AccessTimeout, def.LockFor("addToCache").AccessTimeout)

	bmc := DefinitionBMC()
	require.NoError(t, bmc.Validate())
	assert.Equal(t, component.BeanManaged, bmc.Concurrency)
}
