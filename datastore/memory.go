package datastore

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Memory is a process-local DataStore. Transactions committed against it are atomic.
type Memory struct {
	mu      sync.RWMutex
	records map[string]map[string]Record
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{records: make(map[string]map[string]Record)}
}

// Find returns the record stored under typ/id
func (m *Memory) Find(_ context.Context, typ, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[typ][id]
	if !ok {
		return Record{}, notFound(typ, id)
	}
	return clone(rec), nil
}

// FindAll returns every record matching q, ordered by ID
func (m *Memory) FindAll(_ context.Context, q Query) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for _, rec := range m.records[q.Type] {
		if q.matches(rec) {
			out = append(out, clone(rec))
		}
	}
	return q.finish(out), nil
}

// Save inserts rec
func (m *Memory) Save(_ context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := validKey(rec.Type, rec.ID); err != nil {
		return Record{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[rec.Type][rec.ID]; exists {
		return Record{}, storeError("record %s/%s already exists", rec.Type, rec.ID)
	}
	m.put(rec)
	return clone(rec), nil
}

// Update replaces an existing record
func (m *Memory) Update(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[rec.Type][rec.ID]; !exists {
		return notFound(rec.Type, rec.ID)
	}
	m.put(rec)
	return nil
}

// Delete removes an existing record
func (m *Memory) Delete(_ context.Context, typ, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[typ][id]; !exists {
		return notFound(typ, id)
	}
	delete(m.records[typ], id)
	return nil
}

// Len returns the number of records of typ
func (m *Memory) Len(typ string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records[typ])
}

func (m *Memory) put(rec Record) {
	byID, ok := m.records[rec.Type]
	if !ok {
		byID = make(map[string]Record)
		m.records[rec.Type] = byID
	}
	byID[rec.ID] = clone(rec)
}

// apply commits a transaction's mutations all-or-nothing
func (m *Memory) apply(_ context.Context, muts []mutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate against a scratch view first so a failure leaves the store untouched.
	exists := func(typ, id string) bool {
		_, ok := m.records[typ][id]
		return ok
	}
	staged := make(map[string]bool)
	for _, mt := range muts {
		k := key(mt.rec.Type, mt.rec.ID)
		present, seen := staged[k]
		if !seen {
			present = exists(mt.rec.Type, mt.rec.ID)
		}
		switch mt.op {
		case opSave:
			if present {
				return storeError("record %s already exists", k)
			}
			staged[k] = true
		case opUpdate, opDelete:
			if !present {
				return notFound(mt.rec.Type, mt.rec.ID)
			}
			staged[k] = mt.op == opUpdate
		}
	}

	for _, mt := range muts {
		if mt.op == opDelete {
			delete(m.records[mt.rec.Type], mt.rec.ID)
			continue
		}
		m.put(mt.rec)
	}
	return nil
}

func clone(rec Record) Record {
	rec.Data = slices.Clone(rec.Data)
	return rec
}
