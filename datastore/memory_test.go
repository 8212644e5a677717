package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/c360/beancontainer/errors"
)

type book struct {
	Title string  `json:"title"`
	Price float64 `json:"price"`
	Tag   string  `json:"tag,omitempty"`
}

func seed(t *testing.T, s DataStore, books ...book) []string {
	t.Helper()
	ids := make([]string, 0, len(books))
	for _, b := range books {
		id, err := Insert(context.Background(), s, "Book", "", b)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestMemory_CRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	rec, err := s.Save(ctx, Record{Type: "Book", ID: "b1", Data: json.RawMessage(`{"title":"Go"}`)})
	require.NoError(t, err)
	assert.Equal(t, "b1", rec.ID)

	_, err = s.Save(ctx, Record{Type: "Book", ID: "b1", Data: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, cerrors.ErrDataStore)

	got, err := s.Find(ctx, "Book", "b1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Go"}`, string(got.Data))

	require.NoError(t, s.Update(ctx, Record{Type: "Book", ID: "b1", Data: json.RawMessage(`{"title":"Go 2"}`)}))
	b, err := Get[book](ctx, s, "Book", "b1")
	require.NoError(t, err)
	assert.Equal(t, "Go 2", b.Title)

	require.NoError(t, s.Delete(ctx, "Book", "b1"))
	_, err = s.Find(ctx, "Book", "b1")
	assert.ErrorIs(t, err, cerrors.ErrNotFound)
	assert.ErrorIs(t, err, cerrors.ErrDataStore)
	assert.True(t, IsNotFound(err))
	assert.True(t, cerrors.IsInvalid(err))

	assert.ErrorIs(t, s.Update(ctx, Record{Type: "Book", ID: "b1"}), cerrors.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "Book", "b1"), cerrors.ErrNotFound)
}

func TestMemory_ReturnedDataIsCopied(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	data := json.RawMessage(`{"title":"Go"}`)
	_, err := s.Save(ctx, Record{Type: "Book", ID: "b1", Data: data})
	require.NoError(t, err)

	data[2] = 'X'
	got, err := s.Find(ctx, "Book", "b1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Go"}`, string(got.Data))
}

func TestMemory_InvalidKey(t *testing.T) {
	_, err := NewMemory().Save(context.Background(), Record{Type: "", ID: "x"})
	assert.ErrorIs(t, err, cerrors.ErrDataStore)

	_, err = NewMemory().Save(context.Background(), Record{Type: "Book", ID: "a.b"})
	assert.ErrorIs(t, err, cerrors.ErrDataStore)
}

func TestMemory_FindAll(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	seed(t, s,
		book{Title: "Go", Price: 12.5, Tag: "it"},
		book{Title: "Java", Price: 23, Tag: "it"},
		book{Title: "Novel", Price: 9.99},
	)
	_, err := Insert(ctx, s, "CD", "", map[string]any{"title": "Album"})
	require.NoError(t, err)

	all, err := List[book](ctx, s, Query{Name: "findAllBooks", Type: "Book"})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	it, err := List[book](ctx, s, Query{Type: "Book", Where: map[string]any{"tag": "it"}})
	require.NoError(t, err)
	assert.Len(t, it, 2)

	priced, err := List[book](ctx, s, Query{Type: "Book", Where: map[string]any{"price": 23}})
	require.NoError(t, err)
	require.Len(t, priced, 1)
	assert.Equal(t, "Java", priced[0].Title)

	limited, err := s.FindAll(ctx, Query{Type: "Book", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
	assert.LessOrEqual(t, limited[0].ID, limited[1].ID)

	none, err := s.FindAll(ctx, Query{Type: "DVD"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWithinTx_Commit(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	ids := seed(t, s, book{Title: "Old"})

	err := WithinTx(ctx, s, func(ctx context.Context, tx DataStore) error {
		id, err := Insert(ctx, tx, "Book", "", book{Title: "New"})
		if err != nil {
			return err
		}
		// Visible inside the unit, invisible outside until commit.
		if _, err := tx.Find(ctx, "Book", id); err != nil {
			return err
		}
		if _, err := s.Find(ctx, "Book", id); !IsNotFound(err) {
			return errors.New("write leaked before commit")
		}

		if err := Replace(ctx, tx, "Book", ids[0], book{Title: "Updated"}); err != nil {
			return err
		}
		all, err := List[book](ctx, tx, Query{Type: "Book"})
		if err != nil {
			return err
		}
		if len(all) != 2 {
			return errors.New("unit of work should see two books")
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 2, s.Len("Book"))
	b, err := Get[book](ctx, s, "Book", ids[0])
	require.NoError(t, err)
	assert.Equal(t, "Updated", b.Title)
}

func TestWithinTx_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	ids := seed(t, s, book{Title: "Keep"})
	rejected := errors.New("cannot create book")

	err := WithinTx(ctx, s, func(ctx context.Context, tx DataStore) error {
		if _, err := Insert(ctx, tx, "Book", "", book{Title: "Book 1 Title"}); err != nil {
			return err
		}
		if err := tx.Delete(ctx, "Book", ids[0]); err != nil {
			return err
		}
		return rejected
	})
	assert.ErrorIs(t, err, rejected)
	assert.Equal(t, 1, s.Len("Book"))

	_, err = s.Find(ctx, "Book", ids[0])
	assert.NoError(t, err)
}

func TestWithinTx_DeleteThenFind(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	ids := seed(t, s, book{Title: "Gone"})

	err := WithinTx(ctx, s, func(ctx context.Context, tx DataStore) error {
		require.NoError(t, tx.Delete(ctx, "Book", ids[0]))
		_, err := tx.Find(ctx, "Book", ids[0])
		assert.True(t, IsNotFound(err))
		all, err := tx.FindAll(ctx, Query{Type: "Book"})
		require.NoError(t, err)
		assert.Empty(t, all)
		assert.ErrorIs(t, tx.Delete(ctx, "Book", ids[0]), cerrors.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len("Book"))
}

func TestWithinTx_AtomicCommitConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	err := WithinTx(ctx, s, func(ctx context.Context, tx DataStore) error {
		if _, err := tx.Save(ctx, Record{Type: "Book", ID: "a", Data: json.RawMessage(`{}`)}); err != nil {
			return err
		}
		if _, err := tx.Save(ctx, Record{Type: "Book", ID: "b", Data: json.RawMessage(`{}`)}); err != nil {
			return err
		}
		// A concurrent writer takes "b" before the unit commits.
		_, err := s.Save(ctx, Record{Type: "Book", ID: "b", Data: json.RawMessage(`{}`)})
		return err
	})
	assert.ErrorIs(t, err, cerrors.ErrDataStore)

	_, err = s.Find(ctx, "Book", "a")
	assert.True(t, IsNotFound(err), "failed commit must not apply partially")
}
