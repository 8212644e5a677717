// Package container wires the component runtime together.
//
// A Container owns the registry, the singleton manager, the stateful session
// table, the stateless instance pool, the expiry scheduler and the naming
// directory. Every client call goes through Invoke, which routes it by the
// target component's kind:
//
//	stateless  -> pool lease for the duration of the call
//	stateful   -> session identified by Call.SessionKey
//	singleton  -> the process-wide instance under its concurrency policy
//
// Lifecycle is Start, any number of calls, then Stop. Stop refuses new work,
// ends every session, drains the pool and destroys singletons in reverse
// initialization order.
package container

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/c360/beancontainer/component"
	"github.com/c360/beancontainer/config"
	"github.com/c360/beancontainer/datastore"
	"github.com/c360/beancontainer/directory"
	"github.com/c360/beancontainer/errors"
	"github.com/c360/beancontainer/health"
	"github.com/c360/beancontainer/metric"
	"github.com/c360/beancontainer/pool"
	"github.com/c360/beancontainer/scheduler"
	"github.com/c360/beancontainer/session"
	"github.com/c360/beancontainer/singleton"
)

// Call is one client request, independent of the transport it arrived on
type Call struct {
	Component  string         `json:"component"`
	SessionKey session.Key    `json:"session_key,omitempty"`
	Operation  string         `json:"operation"`
	Args       component.Args `json:"args,omitempty"`
}

type lifecycle int

const (
	created lifecycle = iota
	running
	stopped
)

// Probe reports the health of an external dependency such as the NATS connection
type Probe func(ctx context.Context) error

// Container hosts registered components
type Container struct {
	cfg      *config.Config
	registry *component.Registry
	store    datastore.DataStore
	logger   *slog.Logger
	metrics  *metric.MetricsRegistry
	clock    clock.PassiveClock

	singletons *singleton.Manager
	sessions   *session.Table
	pool       *pool.Pool
	scheduler  *scheduler.Scheduler
	directory  *directory.Directory
	probes     map[string]Probe

	mu      sync.RWMutex
	state   lifecycle
	started time.Time
}

// Option configures a Container
type Option func(*Container)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Container) { c.logger = l }
}

// WithMetricsRegistry records container metrics in r
func WithMetricsRegistry(r *metric.MetricsRegistry) Option {
	return func(c *Container) { c.metrics = r }
}

// WithClock replaces the clock used for session idle timeouts
func WithClock(clk clock.PassiveClock) Option {
	return func(c *Container) { c.clock = clk }
}

// WithProbe adds an external dependency to the health report
func WithProbe(name string, p Probe) Option {
	return func(c *Container) { c.probes[name] = p }
}

// New creates a container for the components in registry. A nil cfg uses
// config.Default and a nil store uses an in-memory store.
func New(cfg *config.Config, registry *component.Registry, store datastore.DataStore, opts ...Option) (*Container, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if registry == nil {
		return nil, errors.WrapInvalid(errors.Newf(errors.ErrInvalidArgument, "registry is nil"),
			"Container", "New", "check arguments")
	}
	if store == nil {
		store = datastore.NewMemory()
	}

	access, err := session.ParseAccessMode(cfg.Container.SessionAccess)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Container", "New", "parse session access mode")
	}

	c := &Container{
		cfg:      cfg,
		registry: registry,
		store:    store,
		logger:   slog.Default(),
		clock:    clock.RealClock{},
		probes:   make(map[string]Probe),
	}
	for _, opt := range opts {
		opt(c)
	}
	core := c.metrics.CoreMetrics()

	c.scheduler = scheduler.New(
		scheduler.WithLogger(c.logger),
		scheduler.WithMetrics(core),
		scheduler.WithInterval(cfg.Container.SweepInterval.Std()),
	)
	c.singletons = singleton.NewManager(registry,
		singleton.WithLogger(c.logger),
		singleton.WithMetrics(core),
		singleton.WithDependencies(c.dependencies),
	)
	c.sessions = session.NewTable(registry,
		session.WithLogger(c.logger),
		session.WithMetrics(core),
		session.WithDependencies(c.dependencies),
		session.WithClock(c.clock),
		session.WithTracker(c.scheduler),
		session.WithAccessMode(access),
		session.WithDefaultIdleTimeout(cfg.Container.DefaultIdleTimeout.Std()),
		session.WithIdleTimeouts(cfg.IdleTimeouts()),
		session.WithTombstoneGrace(cfg.Container.TombstoneGrace.Std()),
	)
	c.pool = pool.New(registry,
		pool.WithLogger(c.logger),
		pool.WithMetrics(core),
		pool.WithDependencies(c.dependencies),
		pool.WithMaxIdle(cfg.Container.Pool.MaxIdle),
	)
	c.directory = directory.New(cfg.Container.App, cfg.Container.Module, backend{c})
	c.scheduler.AddSweeper("sessions", c.sessions)

	c.logger = c.logger.With("component", "Container")
	return c, nil
}

func (c *Container) dependencies(def *component.Definition) component.Dependencies {
	return component.Dependencies{
		Logger:     c.logger,
		Store:      c.store,
		Env:        component.Env(c.cfg.Env(def.Name)),
		Singletons: c.singletons,
	}
}

// Start seals the registry, initializes every singleton in dependency order,
// publishes all components in the directory and starts the expiry sweep.
// A failed start leaves no singleton alive.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != created {
		return errors.WrapInvalid(errors.Newf(errors.ErrInvalidArgument, "container already started"),
			"Container", "Start", "state check")
	}

	c.registry.Seal()
	if err := c.singletons.InitializeAll(ctx); err != nil {
		return errors.Wrap(err, "Container", "Start", "initialize singletons")
	}

	for _, def := range c.registry.List() {
		c.directory.Bind(def)
	}

	if err := c.scheduler.Start(ctx); err != nil {
		c.singletons.Shutdown(ctx)
		return errors.Wrap(err, "Container", "Start", "start scheduler")
	}

	c.state = running
	c.started = time.Now()
	c.logger.Info("container started",
		"app", c.cfg.Container.App,
		"module", c.cfg.Container.Module,
		"components", len(c.registry.List()),
		"singletons", len(c.singletons.Names()))
	return nil
}

func (c *Container) checkRunning(method string) error {
	c.mu.RLock()
	state := c.state
	c.mu.RUnlock()

	switch state {
	case running:
		return nil
	case stopped:
		return errors.Wrap(errors.ErrShuttingDown, "Container", method, "state check")
	default:
		return errors.Wrap(errors.ErrNotStarted, "Container", method, "state check")
	}
}

// Invoke routes call to the target component by its kind
func (c *Container) Invoke(ctx context.Context, call Call) (any, error) {
	if err := c.checkRunning("Invoke"); err != nil {
		return nil, err
	}

	def, err := c.registry.Lookup(call.Component)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var result any
	switch def.Kind {
	case component.Stateless:
		result, err = c.pool.Invoke(ctx, def.Name, call.Operation, call.Args)
	case component.Stateful:
		if call.SessionKey == "" {
			err = errors.Newf(errors.ErrInvalidArgument, "%s is stateful, a session key is required", def.Name)
			break
		}
		result, err = c.sessions.Invoke(ctx, def.Name, call.SessionKey, call.Operation, call.Args)
	case component.Singleton:
		result, err = c.singletons.Invoke(ctx, def.Name, call.Operation, call.Args)
	}
	c.metrics.CoreMetrics().RecordInvocation(def.Name, def.Kind.String(), err, time.Since(start))

	if err != nil {
		c.logger.Debug("invocation failed",
			"bean", def.Name, "operation", call.Operation, "session", call.SessionKey, "error", err)
		return nil, err
	}
	return result, nil
}

// backend lets directory references call back into the container
type backend struct{ c *Container }

func (b backend) Invoke(ctx context.Context, name string, key session.Key, op string, args component.Args) (any, error) {
	return b.c.Invoke(ctx, Call{Component: name, SessionKey: key, Operation: op, Args: args})
}

func (b backend) CreateSession(ctx context.Context, name string) (session.Key, error) {
	return b.c.CreateSession(ctx, name)
}

func (b backend) SessionStatus(key session.Key) session.Status {
	return b.c.SessionStatus(key)
}

// CreateSession starts a session of the named stateful component
func (c *Container) CreateSession(ctx context.Context, name string) (session.Key, error) {
	if err := c.checkRunning("CreateSession"); err != nil {
		return "", err
	}
	return c.sessions.Create(ctx, name)
}

// SessionState returns the conversational state of a session
func (c *Container) SessionState(ctx context.Context, key session.Key) (any, error) {
	if err := c.checkRunning("SessionState"); err != nil {
		return nil, err
	}
	return c.sessions.State(ctx, key)
}

// SessionStatus reports whether a session is active, recently removed or unknown
func (c *Container) SessionStatus(key session.Key) session.Status {
	return c.sessions.Status(key)
}

// Lookup resolves a directory name to a component reference
func (c *Container) Lookup(name string) (*directory.Reference, error) {
	if err := c.checkRunning("Lookup"); err != nil {
		return nil, err
	}
	return c.directory.Lookup(name)
}

// Names lists every name bound in the directory
func (c *Container) Names() []string { return c.directory.List() }

// Directory returns the naming directory
func (c *Container) Directory() *directory.Directory { return c.directory }

// Registry returns the component registry
func (c *Container) Registry() *component.Registry { return c.registry }

// Store returns the data store handed to components
func (c *Container) Store() datastore.DataStore { return c.store }

// PoolStats returns the instance pool statistics per stateless component
func (c *Container) PoolStats() []pool.Stats { return c.pool.AllStats() }

// Sweep runs one expiry sweep immediately and returns how many sessions it ended
func (c *Container) Sweep(ctx context.Context) int { return c.scheduler.RunOnce(ctx) }

// Health reports the state of every part of the container
func (c *Container) Health(ctx context.Context) health.Status {
	c.mu.RLock()
	state, started := c.state, c.started
	c.mu.RUnlock()

	var subs []health.Status

	singletons := health.NewHealthy("singletons", "initialized").
		WithDetail("names", c.singletons.Names())
	if state != running {
		singletons = health.NewUnhealthy("singletons", "not initialized")
	}
	subs = append(subs, singletons)

	subs = append(subs, health.NewHealthy("sessions", "ok").
		WithDetail("active", c.sessions.Len()))

	idle, inUse := 0, 0
	for _, st := range c.pool.AllStats() {
		idle += st.Idle
		inUse += st.InUse
	}
	subs = append(subs, health.NewHealthy("pool", "ok").
		WithDetail("idle", idle).
		WithDetail("in_use", inUse))

	sched := health.NewHealthy("scheduler", "running").
		WithDetail("interval", c.scheduler.Interval().String()).
		WithDetail("tracked", c.scheduler.Tracked())
	if c.scheduler.Interval() == 0 {
		sched = health.NewDegraded("scheduler", "idle sessions are not being swept")
	}
	subs = append(subs, sched)

	for name, probe := range c.probes {
		subs = append(subs, health.FromError(name, probe(ctx)))
	}

	st := health.Aggregate("container", subs)
	if state == running {
		st = st.WithDetail("uptime", time.Since(started).Round(time.Second).String())
	}
	return st
}

// Stop ends the container. Sessions and pooled instances are torn down in
// parallel, singletons last. Stop is idempotent.
func (c *Container) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state == stopped {
		c.mu.Unlock()
		return nil
	}
	wasRunning := c.state == running
	c.state = stopped
	c.mu.Unlock()

	if !wasRunning {
		return nil
	}

	c.logger.Info("container stopping")
	schedErr := c.scheduler.Stop(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.sessions.Close(gctx)
		return nil
	})
	g.Go(func() error {
		c.pool.Close(gctx)
		return nil
	})
	_ = g.Wait()

	c.singletons.Shutdown(ctx)
	c.logger.Info("container stopped")

	if schedErr != nil {
		return errors.Wrap(schedErr, "Container", "Stop", "stop scheduler")
	}
	return nil
}
