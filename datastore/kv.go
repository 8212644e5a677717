package datastore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/c360/beancontainer/errors"
	"github.com/c360/beancontainer/natsclient"
	"github.com/c360/beancontainer/pkg/retry"
)

// KV stores records in a JetStream key-value bucket under keys "<type>.<id>".
// Reads are retried while NATS is unavailable; writes are not, since a
// create or delete that timed out may already have been applied.
type KV struct {
	kv     *natsclient.KVStore
	logger *slog.Logger
	retry  retry.Config
}

// NewKV wraps a KV bucket as a DataStore
func NewKV(kv *natsclient.KVStore, logger *slog.Logger) *KV {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := retry.DefaultConfig()
	cfg.Retryable = func(err error) bool {
		return errors.Is(err, errors.ErrNoConnection) || errors.Is(err, context.DeadlineExceeded)
	}
	return &KV{kv: kv, logger: logger.With("component", "datastore", "bucket", kv.Bucket()), retry: cfg}
}

func kvKey(typ, id string) string { return typ + "." + id }

func wrapKV(err error, op, typ, id string) error {
	if natsclient.IsKVNotFoundError(err) {
		return notFound(typ, id)
	}
	return fmt.Errorf("%w: %s %s/%s: %w", errors.ErrDataStore, op, typ, id, err)
}

// Find returns the record stored under typ/id
func (s *KV) Find(ctx context.Context, typ, id string) (Record, error) {
	if err := validKey(typ, id); err != nil {
		return Record{}, err
	}
	entry, err := retry.DoWithResult(ctx, s.retry, func() (*natsclient.KVEntry, error) {
		return s.kv.Get(ctx, kvKey(typ, id))
	})
	if err != nil {
		return Record{}, wrapKV(err, "find", typ, id)
	}
	return Record{Type: typ, ID: id, Data: entry.Value}, nil
}

// FindAll lists the keys of q.Type and returns the matching records
func (s *KV) FindAll(ctx context.Context, q Query) ([]Record, error) {
	prefix := q.Type + "."
	keys, err := retry.DoWithResult(ctx, s.retry, func() ([]string, error) {
		return s.kv.Keys(ctx, prefix)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: findAll %s: %w", errors.ErrDataStore, q.Name, err)
	}

	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		rec, err := s.Find(ctx, q.Type, strings.TrimPrefix(k, prefix))
		if IsNotFound(err) {
			// deleted between listing and reading
			continue
		}
		if err != nil {
			return nil, err
		}
		if q.matches(rec) {
			out = append(out, rec)
		}
	}

	s.logger.Debug("query executed", "query", q.Name, "type", q.Type, "matched", len(out))
	return q.finish(out), nil
}

// Save inserts rec; it fails if the key already exists
func (s *KV) Save(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := validKey(rec.Type, rec.ID); err != nil {
		return Record{}, err
	}
	if _, err := s.kv.Create(ctx, kvKey(rec.Type, rec.ID), rec.Data); err != nil {
		if errors.Is(err, natsclient.ErrKVKeyExists) {
			return Record{}, storeError("record %s/%s already exists", rec.Type, rec.ID)
		}
		return Record{}, wrapKV(err, "save", rec.Type, rec.ID)
	}
	return rec, nil
}

// Update replaces an existing record using compare-and-swap
func (s *KV) Update(ctx context.Context, rec Record) error {
	if err := validKey(rec.Type, rec.ID); err != nil {
		return err
	}
	if err := s.kv.UpdateExisting(ctx, kvKey(rec.Type, rec.ID), rec.Data); err != nil {
		return wrapKV(err, "update", rec.Type, rec.ID)
	}
	return nil
}

// Delete removes an existing record
func (s *KV) Delete(ctx context.Context, typ, id string) error {
	if err := validKey(typ, id); err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, kvKey(typ, id)); err != nil {
		return wrapKV(err, "delete", typ, id)
	}
	return nil
}
