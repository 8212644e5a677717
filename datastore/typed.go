package datastore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/c360/beancontainer/errors"
)

// Get loads typ/id and decodes it into T
func Get[T any](ctx context.Context, s DataStore, typ, id string) (T, error) {
	var out T
	rec, err := s.Find(ctx, typ, id)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(rec.Data, &out); err != nil {
		return out, fmt.Errorf("%w: decode %s/%s: %w", errors.ErrDataStore, typ, id, err)
	}
	return out, nil
}

// Insert encodes v and saves it as a new record of typ. An empty id is assigned by the store.
func Insert[T any](ctx context.Context, s DataStore, typ, id string, v T) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: encode %s: %w", errors.ErrDataStore, typ, err)
	}
	rec, err := s.Save(ctx, Record{Type: typ, ID: id, Data: data})
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Replace encodes v over the existing record typ/id
func Replace[T any](ctx context.Context, s DataStore, typ, id string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s/%s: %w", errors.ErrDataStore, typ, id, err)
	}
	return s.Update(ctx, Record{Type: typ, ID: id, Data: data})
}

// List runs q and decodes every match into T
func List[T any](ctx context.Context, s DataStore, q Query) ([]T, error) {
	recs, err := s.FindAll(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		var v T
		if err := json.Unmarshal(rec.Data, &v); err != nil {
			return nil, fmt.Errorf("%w: decode %s/%s: %w", errors.ErrDataStore, rec.Type, rec.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}
