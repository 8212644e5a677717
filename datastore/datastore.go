// Package datastore is the persistence collaborator used by components.
//
// The container treats the store as opaque: records are typed JSON documents
// addressed by (type, id). Backends are an in-memory map and a NATS JetStream
// key-value bucket. Every backend failure wraps errors.ErrDataStore; a missing
// record additionally wraps errors.ErrNotFound.
package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/c360/beancontainer/errors"
)

// Record is one stored document
type Record struct {
	Type string          `json:"type"`
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Query selects records of one type whose top-level JSON fields equal Where.
// Name identifies the query in logs and metrics, e.g. "findAllBooks".
type Query struct {
	Name  string
	Type  string
	Where map[string]any
	Limit int
}

// DataStore is the find/findAll/save/update/delete surface components persist through.
type DataStore interface {
	Find(ctx context.Context, typ, id string) (Record, error)
	FindAll(ctx context.Context, q Query) ([]Record, error)
	// Save inserts rec, assigning an ID when empty, and returns the stored record.
	Save(ctx context.Context, rec Record) (Record, error)
	Update(ctx context.Context, rec Record) error
	Delete(ctx context.Context, typ, id string) error
}

func notFound(typ, id string) error {
	return fmt.Errorf("%w: %w: %s/%s", errors.ErrDataStore, errors.ErrNotFound, typ, id)
}

// IsNotFound reports whether err means the record does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, errors.ErrNotFound)
}

func storeError(format string, args ...any) error {
	return errors.Newf(errors.ErrDataStore, format, args...)
}

func validKey(typ, id string) error {
	if typ == "" || id == "" {
		return storeError("record type and id are required")
	}
	if strings.ContainsAny(typ, ".*> ") || strings.ContainsAny(id, ".*> ") {
		return storeError("record key %s/%s contains reserved characters", typ, id)
	}
	return nil
}

// matches reports whether rec satisfies q
func (q Query) matches(rec Record) bool {
	if rec.Type != q.Type {
		return false
	}
	if len(q.Where) == 0 {
		return true
	}

	var doc map[string]any
	if err := json.Unmarshal(rec.Data, &doc); err != nil {
		return false
	}
	for field, want := range q.Where {
		got, ok := doc[field]
		if !ok || !reflect.DeepEqual(got, normalize(want)) {
			return false
		}
	}
	return true
}

// normalize converts v into the shape encoding/json produces when decoding into any.
func normalize(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

// finish sorts by ID and applies the query limit
func (q Query) finish(recs []Record) []Record {
	slices.SortFunc(recs, func(a, b Record) int { return strings.Compare(a.ID, b.ID) })
	if q.Limit > 0 && len(recs) > q.Limit {
		recs = recs[:q.Limit]
	}
	return recs
}
