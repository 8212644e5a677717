package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/beancontainer/component"
	"github.com/c360/beancontainer/datastore"
	"github.com/c360/beancontainer/errors"
)

func newService(t *testing.T, env component.Env) (component.Instance, *datastore.Memory) {
	t.Helper()
	store := datastore.NewMemory()
	inst, err := New(component.Dependencies{Store: store, Env: env})
	require.NoError(t, err)
	return inst, store
}

func call(t *testing.T, inst component.Instance, op string, args ...any) (any, error) {
	t.Helper()
	return component.Call(context.Background(), Name, inst, op, args)
}

func TestService_BooksAndCDs(t *testing.T) {
	svc, _ := newService(t, nil)

	out, err := call(t, svc, "createBook", Book{Title: "The Hitchhiker's Guide", Price: 12.5, ISBN: "1-84023-742-2", NbOfPages: 354})
	require.NoError(t, err)
	created := out.(Book)
	assert.NotEmpty(t, created.ID)

	out, err = call(t, svc, "findBookById", created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, out)

	_, err = call(t, svc, "createCD", CD{Title: "St Pepper", Price: 12.8, MusicCompany: "Apple", NumberOfCDs: 1})
	require.NoError(t, err)

	books, err := call(t, svc, "findBooks")
	require.NoError(t, err)
	assert.Len(t, books, 1)

	cds, err := call(t, svc, "findCDs")
	require.NoError(t, err)
	require.Len(t, cds, 1)
	assert.Equal(t, "St Pepper", cds.([]CD)[0].Title)

	created.Price = 10
	_, err = call(t, svc, "updateBook", created)
	require.NoError(t, err)
	out, err = call(t, svc, "findBookById", created.ID)
	require.NoError(t, err)
	assert.Equal(t, 10.0, out.(Book).Price)

	_, err = call(t, svc, "deleteBook", created)
	require.NoError(t, err)
	_, err = call(t, svc, "findBookById", created.ID)
	assert.True(t, datastore.IsNotFound(err))
}

func TestService_CreateBookRollsBack(t *testing.T) {
	svc, store := newService(t, nil)

	_, err := call(t, svc, "createBook", Book{Title: "Kept", Price: 1})
	require.NoError(t, err)

	_, err = call(t, svc, "createBook", Book{Title: "Rejected", Price: -1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCannotCreateBook)
	assert.True(t, errors.IsInvalid(err))

	_, err = call(t, svc, "createBook", Book{Title: "  "})
	assert.ErrorIs(t, err, ErrCannotCreateBook)

	assert.Equal(t, 1, store.Len(TypeBook), "rejected books are not persisted")
}

func TestService_ConvertPrice(t *testing.T) {
	tests := []struct {
		name         string
		env          component.Env
		wantPrice    float64
		wantCurrency string
	}{
		{"defaults", nil, 8, "Euro"},
		{"configured", component.Env{EnvCurrency: "Dollar", EnvChangeRate: 1.5}, 15, "Dollar"},
		{"wrong type falls back", component.Env{EnvChangeRate: "fast"}, 8, "Euro"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService(t, tt.env)
			out, err := call(t, svc, "convertPrice", map[string]any{"title": "Item", "price": 10.0})
			require.NoError(t, err)
			item := out.(PricedItem)
			assert.InDelta(t, tt.wantPrice, item.Price, 1e-9)
			assert.Equal(t, tt.wantCurrency, item.Currency)
			assert.Equal(t, "Item", item.Title)
		})
	}
}

func TestService_BadArguments(t *testing.T) {
	svc, _ := newService(t, nil)

	_, err := call(t, svc, "createBook")
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)

	_, err = call(t, svc, "findBookById", []int{1})
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(component.Dependencies{})
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestDefinition_Views(t *testing.T) {
	def := Definition()
	require.NoError(t, def.Validate())

	remote, ok := def.View("Remote")
	require.True(t, ok)
	assert.True(t, remote.Allows("findBooks"))
	assert.False(t, remote.Allows("createBook"))

	local, _ := def.View("")
	assert.Equal(t, "Local", local.Name)
	assert.False(t, local.Allows("convertPrice"))

	all, _ := def.View("NoInterface")
	assert.True(t, all.Allows("convertPrice"))

	svc, _ := newService(t, nil)
	for _, v := range def.Views {
		for _, op := range v.Operations {
			assert.Contains(t, svc.Operations(), op, "view %s names a real operation", v.Name)
		}
	}
}
