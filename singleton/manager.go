// Package singleton hosts the process-wide instances of singleton components.
package singleton

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/c360/beancontainer/component"
	"github.com/c360/beancontainer/errors"
	"github.com/c360/beancontainer/metric"
)

type entry struct {
	def  *component.Definition
	inst component.Instance
	lock *LockState
}

// Manager constructs singletons in dependency order, dispatches calls under
// the configured concurrency policy and destroys them in reverse order.
type Manager struct {
	registry *component.Registry
	deps     component.DependencyFunc
	logger   *slog.Logger
	metrics  *metric.Metrics

	mu      sync.RWMutex
	order   []string // initialization order of live singletons
	entries map[string]*entry
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics records lock waits and singleton counts
func WithMetrics(mt *metric.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithDependencies sets the factory dependency provider
func WithDependencies(fn component.DependencyFunc) Option {
	return func(m *Manager) { m.deps = fn }
}

// NewManager creates a manager for the singletons in registry
func NewManager(registry *component.Registry, opts ...Option) *Manager {
	m := &Manager{
		registry: registry,
		logger:   slog.Default(),
		entries:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "SingletonManager")
	return m
}

// InitializeAll builds every singleton after its dependencies. A singleton is
// published only after its post-construction hook returns, so its hook may call
// any singleton earlier in the order. On failure, the singletons already built
// are destroyed in reverse order.
func (m *Manager) InitializeAll(ctx context.Context) error {
	order, err := m.registry.ResolveStartupOrder()
	if err != nil {
		return err
	}

	for _, def := range order {
		deps := component.Dependencies{}
		if m.deps != nil {
			deps = m.deps(def)
		}
		if deps.Logger == nil {
			deps.Logger = m.logger.With("singleton", def.Name)
		}
		deps.Singletons = m

		inst, err := component.Construct(ctx, def, deps)
		if err != nil {
			m.logger.Error("singleton initialization failed", "singleton", def.Name, "error", err)
			m.Shutdown(ctx)
			return errors.WrapFatal(err, "SingletonManager", "InitializeAll", "initialize "+def.Name)
		}

		m.mu.Lock()
		m.entries[def.Name] = &entry{def: def, inst: inst, lock: NewLockState()}
		m.order = append(m.order, def.Name)
		n := len(m.order)
		m.mu.Unlock()

		m.metrics.SetSingletons(n)
		m.logger.Debug("singleton initialized", "singleton", def.Name, "concurrency", def.Concurrency)
	}

	m.logger.Info("singletons initialized", "count", len(order))
	return nil
}

func (m *Manager) lookup(name string) (*entry, error) {
	m.mu.RLock()
	e, ok := m.entries[name]
	m.mu.RUnlock()
	if ok {
		return e, nil
	}

	def, err := m.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	if def.Kind != component.Singleton {
		return nil, errors.Newf(errors.ErrWrongKind, "%s is %s, not a singleton", name, def.Kind)
	}
	return nil, errors.Newf(errors.ErrNotStarted, "singleton %s is not initialized", name)
}

// Invoke runs op on the named singleton under its concurrency policy.
// For container-managed singletons the operation's lock is held for the whole
// call and released on every exit path; a lock timeout fails before the
// operation body runs.
func (m *Manager) Invoke(ctx context.Context, name, op string, args component.Args) (any, error) {
	e, err := m.lookup(name)
	if err != nil {
		return nil, err
	}

	if e.def.Concurrency == component.ContainerManaged {
		ml := e.def.LockFor(op)
		start := time.Now()
		release, err := e.lock.Acquire(ctx, ml.Type, ml.AccessTimeout)
		m.metrics.RecordLockWait(name, ml.Type.String(), time.Since(start), errors.Is(err, errors.ErrConcurrentAccessTimeout))
		if err != nil {
			return nil, errors.Wrap(err, name, op, "acquire "+ml.Type.String()+" lock")
		}
		defer release()
	}

	return component.Call(ctx, name, e.inst, op, args)
}

// Lock returns the lock state of a live singleton, for diagnostics
func (m *Manager) Lock(name string) (*LockState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[name]
	if !ok {
		return nil, false
	}
	return e.lock, true
}

// Names returns the live singletons in initialization order
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order)
}

// Shutdown destroys live singletons in reverse initialization order.
// Calling it again is a no-op.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	order := m.order
	entries := m.entries
	m.order = nil
	m.entries = make(map[string]*entry)
	m.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		e := entries[order[i]]
		if e.def.Concurrency == component.ContainerManaged {
			// Let in-flight calls finish; destroy regardless once ctx ends.
			if release, err := e.lock.Acquire(ctx, component.Exclusive, 0); err == nil {
				defer release()
			}
		}
		component.Destroy(ctx, m.logger, e.def.Name, e.inst)
		m.logger.Debug("singleton destroyed", "singleton", e.def.Name)
	}
	m.metrics.SetSingletons(0)
}
