package datastore

import (
	"context"

	"github.com/google/uuid"
)

type opKind int

const (
	opSave opKind = iota
	opUpdate
	opDelete
)

type mutation struct {
	op  opKind
	rec Record
}

// batchApplier is implemented by stores that can commit a whole unit atomically.
type batchApplier interface {
	apply(ctx context.Context, muts []mutation) error
}

// WithinTx runs fn against a unit of work layered over store. Writes made
// through tx are visible to reads through tx and reach store only when fn
// returns nil. Any error from fn discards them.
func WithinTx(ctx context.Context, store DataStore, fn func(ctx context.Context, tx DataStore) error) error {
	tx := &unitOfWork{base: store, pending: make(map[string]int)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit(ctx)
}

type unitOfWork struct {
	base    DataStore
	log     []mutation
	pending map[string]int // index into log of the latest mutation per key
}

func key(typ, id string) string { return typ + "/" + id }

func (u *unitOfWork) record(m mutation) {
	u.pending[key(m.rec.Type, m.rec.ID)] = len(u.log)
	u.log = append(u.log, m)
}

func (u *unitOfWork) Find(ctx context.Context, typ, id string) (Record, error) {
	if i, ok := u.pending[key(typ, id)]; ok {
		m := u.log[i]
		if m.op == opDelete {
			return Record{}, notFound(typ, id)
		}
		return clone(m.rec), nil
	}
	return u.base.Find(ctx, typ, id)
}

func (u *unitOfWork) FindAll(ctx context.Context, q Query) ([]Record, error) {
	baseQuery := q
	baseQuery.Limit = 0
	recs, err := u.base.FindAll(ctx, baseQuery)
	if err != nil {
		return nil, err
	}

	out := recs[:0]
	for _, rec := range recs {
		if _, shadowed := u.pending[key(rec.Type, rec.ID)]; !shadowed {
			out = append(out, rec)
		}
	}
	for _, i := range u.pending {
		if m := u.log[i]; m.op != opDelete && q.matches(m.rec) {
			out = append(out, clone(m.rec))
		}
	}
	return q.finish(out), nil
}

func (u *unitOfWork) exists(ctx context.Context, typ, id string) (bool, error) {
	_, err := u.Find(ctx, typ, id)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}

func (u *unitOfWork) Save(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := validKey(rec.Type, rec.ID); err != nil {
		return Record{}, err
	}
	found, err := u.exists(ctx, rec.Type, rec.ID)
	if err != nil {
		return Record{}, err
	}
	if found {
		return Record{}, storeError("record %s/%s already exists", rec.Type, rec.ID)
	}
	u.record(mutation{op: opSave, rec: clone(rec)})
	return clone(rec), nil
}

func (u *unitOfWork) Update(ctx context.Context, rec Record) error {
	found, err := u.exists(ctx, rec.Type, rec.ID)
	if err != nil {
		return err
	}
	if !found {
		return notFound(rec.Type, rec.ID)
	}
	u.record(mutation{op: opUpdate, rec: clone(rec)})
	return nil
}

func (u *unitOfWork) Delete(ctx context.Context, typ, id string) error {
	found, err := u.exists(ctx, typ, id)
	if err != nil {
		return err
	}
	if !found {
		return notFound(typ, id)
	}
	u.record(mutation{op: opDelete, rec: Record{Type: typ, ID: id}})
	return nil
}

func (u *unitOfWork) commit(ctx context.Context) error {
	if len(u.log) == 0 {
		return nil
	}
	if b, ok := u.base.(batchApplier); ok {
		return b.apply(ctx, u.log)
	}

	for _, m := range u.log {
		var err error
		switch m.op {
		case opSave:
			_, err = u.base.Save(ctx, m.rec)
		case opUpdate:
			err = u.base.Update(ctx, m.rec)
		case opDelete:
			err = u.base.Delete(ctx, m.rec.Type, m.rec.ID)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
