// Package pool hosts stateless component instances.
//
// Instances are interchangeable: a call leases any idle instance, or a new one
// when none is idle, and returns it afterwards. A leased instance is never
// handed to a second caller, so calls never wait on each other beyond the
// bookkeeping under the pool mutex. The pool grows without bound; MaxIdle only
// caps how many released instances are kept for reuse.
package pool

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/c360/beancontainer/component"
	"github.com/c360/beancontainer/errors"
	"github.com/c360/beancontainer/metric"
)

type bucket struct {
	def   *component.Definition
	idle  []component.Instance // LIFO, so warm instances are reused first
	inUse int

	// Statistics (atomic)
	created   atomic.Int64
	destroyed atomic.Int64
	leases    atomic.Int64
}

// Stats is a point-in-time view of one component's instances
type Stats struct {
	Component string `json:"component"`
	Idle      int    `json:"idle"`
	InUse     int    `json:"in_use"`
	Created   int64  `json:"created"`
	Destroyed int64  `json:"destroyed"`
	Leases    int64  `json:"leases"`
}

// Pool manages the instances of every stateless component in a registry
type Pool struct {
	registry *component.Registry
	deps     component.DependencyFunc
	logger   *slog.Logger
	metrics  *metric.Metrics
	maxIdle  int

	mu      sync.Mutex
	buckets map[string]*bucket
	closed  bool
}

// Option configures a Pool
type Option func(*Pool)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// WithMetrics publishes instance counts
func WithMetrics(m *metric.Metrics) Option {
	return func(p *Pool) { p.metrics = m }
}

// WithDependencies sets the factory dependency provider
func WithDependencies(fn component.DependencyFunc) Option {
	return func(p *Pool) { p.deps = fn }
}

// WithMaxIdle caps the idle instances kept per component. Zero keeps all of them.
func WithMaxIdle(n int) Option {
	return func(p *Pool) { p.maxIdle = n }
}

// New creates an empty pool for the stateless components of registry
func New(registry *component.Registry, opts ...Option) *Pool {
	p := &Pool{
		registry: registry,
		logger:   slog.Default(),
		buckets:  make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "InstancePool")
	return p
}

func (p *Pool) bucketFor(name string) (*bucket, error) {
	p.mu.Lock()
	b, ok := p.buckets[name]
	p.mu.Unlock()
	if ok {
		return b, nil
	}

	def, err := p.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	if def.Kind != component.Stateless {
		return nil, errors.Newf(errors.ErrWrongKind, "%s is %s, not stateless", name, def.Kind)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.buckets[name]; ok {
		return b, nil
	}
	b = &bucket{def: def}
	p.buckets[name] = b
	return b, nil
}

// Lease is exclusive use of one pooled instance until Release
type Lease struct {
	pool    *Pool
	bucket  *bucket
	inst    component.Instance
	once    sync.Once
	discard bool
}

// Instance returns the leased instance
func (l *Lease) Instance() component.Instance {
	return l.inst
}

// Invoke runs op on the leased instance. An operation that panics marks the
// instance for disposal instead of reuse.
func (l *Lease) Invoke(ctx context.Context, op string, args component.Args) (any, error) {
	out, err := component.Call(ctx, l.bucket.def.Name, l.inst, op, args)
	if errors.Is(err, errors.ErrComponentPanic) {
		l.discard = true
	}
	return out, err
}

// Release returns the instance to the pool. Calling it more than once is a no-op.
func (l *Lease) Release() {
	l.once.Do(func() { l.pool.release(l) })
}

// Acquire leases an instance of the named stateless component, building a new
// one when none is idle.
func (p *Pool) Acquire(ctx context.Context, name string) (*Lease, error) {
	b, err := p.bucketFor(name)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errors.Newf(errors.ErrShuttingDown, "instance pool closed")
	}
	var inst component.Instance
	if n := len(b.idle); n > 0 {
		inst = b.idle[n-1]
		b.idle[n-1] = nil
		b.idle = b.idle[:n-1]
	}
	b.inUse++
	p.publish(b)
	p.mu.Unlock()

	if inst == nil {
		inst, err = p.construct(ctx, b)
		if err != nil {
			p.mu.Lock()
			b.inUse--
			p.publish(b)
			p.mu.Unlock()
			return nil, err
		}
	}

	b.leases.Add(1)
	return &Lease{pool: p, bucket: b, inst: inst}, nil
}

func (p *Pool) construct(ctx context.Context, b *bucket) (component.Instance, error) {
	deps := component.Dependencies{}
	if p.deps != nil {
		deps = p.deps(b.def)
	}
	if deps.Logger == nil {
		deps.Logger = p.logger.With("stateless", b.def.Name)
	}

	inst, err := component.Construct(ctx, b.def, deps)
	if err != nil {
		return nil, err
	}
	b.created.Add(1)
	return inst, nil
}

func (p *Pool) release(l *Lease) {
	b := l.bucket

	p.mu.Lock()
	b.inUse--
	keep := !p.closed && !l.discard && (p.maxIdle <= 0 || len(b.idle) < p.maxIdle)
	if keep {
		b.idle = append(b.idle, l.inst)
	}
	p.publish(b)
	p.mu.Unlock()

	if !keep {
		p.destroy(b, l.inst)
	}
	l.inst = nil
}

func (p *Pool) destroy(b *bucket, inst component.Instance) {
	component.Destroy(context.Background(), p.logger, b.def.Name, inst)
	b.destroyed.Add(1)
}

// publish updates the instance gauges. The caller holds p.mu.
func (p *Pool) publish(b *bucket) {
	p.metrics.SetPoolInstances(b.def.Name, len(b.idle), b.inUse)
}

// Invoke leases an instance, runs op on it and releases it
func (p *Pool) Invoke(ctx context.Context, name, op string, args component.Args) (any, error) {
	lease, err := p.Acquire(ctx, name)
	if err != nil {
		return nil, err
	}
	defer lease.Release()
	return lease.Invoke(ctx, op, args)
}

// Stats returns the statistics of one component. A component that was never
// leased reports zeroes.
func (p *Pool) Stats(name string) Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.buckets[name]
	if !ok {
		return Stats{Component: name}
	}
	return statsOf(b)
}

// AllStats returns the statistics of every component leased so far, by name
func (p *Pool) AllStats() []Stats {
	p.mu.Lock()
	out := make([]Stats, 0, len(p.buckets))
	for _, b := range p.buckets {
		out = append(out, statsOf(b))
	}
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Component < out[j].Component })
	return out
}

func statsOf(b *bucket) Stats {
	return Stats{
		Component: b.def.Name,
		Idle:      len(b.idle),
		InUse:     b.inUse,
		Created:   b.created.Load(),
		Destroyed: b.destroyed.Load(),
		Leases:    b.leases.Load(),
	}
}

// Close destroys every idle instance. Leased instances are destroyed when released.
func (p *Pool) Close(ctx context.Context) {
	p.mu.Lock()
	p.closed = true
	idle := make(map[*bucket][]component.Instance, len(p.buckets))
	for _, b := range p.buckets {
		idle[b] = b.idle
		b.idle = nil
		p.publish(b)
	}
	p.mu.Unlock()

	for b, instances := range idle {
		for _, inst := range instances {
			component.Destroy(ctx, p.logger, b.def.Name, inst)
			b.destroyed.Add(1)
		}
	}
}
