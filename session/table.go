package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/semaphore"
	"k8s.io/utils/clock"

	"github.com/c360/beancontainer/component"
	"github.com/c360/beancontainer/errors"
	"github.com/c360/beancontainer/metric"
)

// DefaultTombstoneGrace is how long a removed session's status stays queryable
const DefaultTombstoneGrace = 5 * time.Minute

type session struct {
	key     Key
	def     *component.Definition
	inst    component.Instance
	timeout time.Duration

	// guard is the per-session mutex. lastAccess and removed are only touched while holding it.
	guard      *semaphore.Weighted
	lastAccess time.Time
	removed    bool
}

func (s *session) expired(now time.Time) bool {
	return s.timeout > 0 && now.Sub(s.lastAccess) > s.timeout
}

// Table owns every live stateful session.
//
// Locking is two-level: mu guards which sessions exist, and each session's guard
// serializes the work done inside it. A goroutine holding a guard may take mu,
// never the other way round.
type Table struct {
	registry *component.Registry
	deps     component.DependencyFunc
	clock    clock.PassiveClock
	tracker  Tracker
	logger   *slog.Logger
	metrics  *metric.Metrics

	access         AccessMode
	defaultTimeout time.Duration
	timeouts       map[string]time.Duration
	grace          time.Duration

	mu         sync.RWMutex
	sessions   map[Key]*session
	closed     bool
	tombstones *gocache.Cache
}

// Option configures a Table
type Option func(*Table)

// WithClock replaces the wall clock, for tests
func WithClock(c clock.PassiveClock) Option {
	return func(t *Table) { t.clock = c }
}

// WithTracker registers sessions with a sweep scheduler
func WithTracker(tr Tracker) Option {
	return func(t *Table) { t.tracker = tr }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(t *Table) { t.logger = l }
}

// WithMetrics records session counts
func WithMetrics(m *metric.Metrics) Option {
	return func(t *Table) { t.metrics = m }
}

// WithDependencies sets the factory dependency provider
func WithDependencies(fn component.DependencyFunc) Option {
	return func(t *Table) { t.deps = fn }
}

// WithAccessMode sets the concurrent-call policy
func WithAccessMode(m AccessMode) Option {
	return func(t *Table) { t.access = m }
}

// WithDefaultIdleTimeout applies to components that declare no idle timeout.
// Zero keeps such sessions until they are removed explicitly.
func WithDefaultIdleTimeout(d time.Duration) Option {
	return func(t *Table) { t.defaultTimeout = d }
}

// WithIdleTimeouts overrides the declared idle timeout per component name
func WithIdleTimeouts(m map[string]time.Duration) Option {
	return func(t *Table) {
		for name, d := range m {
			t.timeouts[name] = d
		}
	}
}

// WithTombstoneGrace sets how long removed sessions remain visible to Status.
// Zero disables tombstones.
func WithTombstoneGrace(d time.Duration) Option {
	return func(t *Table) { t.grace = d }
}

// NewTable creates an empty session table for the stateful components of registry
func NewTable(registry *component.Registry, opts ...Option) *Table {
	t := &Table{
		registry: registry,
		clock:    clock.RealClock{},
		tracker:  nopTracker{},
		logger:   slog.Default(),
		timeouts: make(map[string]time.Duration),
		grace:    DefaultTombstoneGrace,
		sessions: make(map[Key]*session),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("component", "SessionTable")
	if t.grace > 0 {
		t.tombstones = gocache.New(t.grace, t.grace)
	}
	return t
}

func (t *Table) idleTimeout(def *component.Definition) time.Duration {
	if d, ok := t.timeouts[def.Name]; ok {
		return d
	}
	if def.IdleTimeout > 0 {
		return def.IdleTimeout
	}
	return t.defaultTimeout
}

// Create starts a new session of the named stateful component and returns its key.
func (t *Table) Create(ctx context.Context, name string) (Key, error) {
	def, err := t.registry.Lookup(name)
	if err != nil {
		return "", err
	}
	if def.Kind != component.Stateful {
		return "", errors.Newf(errors.ErrWrongKind, "%s is %s, sessions need a stateful component", name, def.Kind)
	}

	deps := component.Dependencies{}
	if t.deps != nil {
		deps = t.deps(def)
	}
	if deps.Logger == nil {
		deps.Logger = t.logger.With("stateful", name)
	}

	inst, err := component.Construct(ctx, def, deps)
	if err != nil {
		return "", err
	}

	s := &session{
		key:        Key(uuid.NewString()),
		def:        def,
		inst:       inst,
		timeout:    t.idleTimeout(def),
		guard:      semaphore.NewWeighted(1),
		lastAccess: t.clock.Now(),
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		component.Destroy(ctx, t.logger, name, inst)
		return "", errors.Newf(errors.ErrShuttingDown, "session table closed")
	}
	t.sessions[s.key] = s
	// tracked before the session becomes reachable, so Untrack always comes second
	t.tracker.Track(string(s.key), s.timeout)
	t.mu.Unlock()

	t.metrics.SessionCreated(name)
	t.logger.Debug("session created", "session", s.key, "stateful", name, "idle_timeout", s.timeout)
	return s.key, nil
}

func (t *Table) get(key Key) (*session, error) {
	t.mu.RLock()
	s, ok := t.sessions[key]
	t.mu.RUnlock()
	if !ok {
		return nil, t.noSuchSession(key)
	}
	return s, nil
}

func (t *Table) noSuchSession(key Key) error {
	if st, ok := t.tombstone(key); ok {
		return errors.Newf(errors.ErrNoSuchSession, "%s (%s %s)", key, st.Component, st.Reason)
	}
	return errors.Newf(errors.ErrNoSuchSession, "%s", key)
}

func (t *Table) tombstone(key Key) (Status, bool) {
	if t.tombstones == nil {
		return Status{}, false
	}
	v, ok := t.tombstones.Get(string(key))
	if !ok {
		return Status{}, false
	}
	st, ok := v.(Status)
	return st, ok
}

// enter takes the session's guard according to the access mode and verifies the
// session is still live. On success the caller must call s.guard.Release(1).
func (t *Table) enter(ctx context.Context, s *session) error {
	if t.access == Reject {
		if !s.guard.TryAcquire(1) {
			return errors.Newf(errors.ErrConcurrentSessionAccess, "%s is serving another call", s.key)
		}
	} else if err := s.guard.Acquire(ctx, 1); err != nil {
		return errors.WrapTransient(err, "SessionTable", "Invoke", "wait for session "+string(s.key))
	}

	if s.removed {
		s.guard.Release(1)
		return t.noSuchSession(s.key)
	}
	if s.expired(t.clock.Now()) {
		t.remove(ctx, s, ReasonExpired)
		s.guard.Release(1)
		return t.noSuchSession(s.key)
	}
	return nil
}

// Invoke runs op on the session's instance. The session must belong to the
// named component; a key of another component is reported as ErrNoSuchSession.
// A removal operation that returns without error ends the session before the
// guard is released, so no other call can run between the operation and the
// state change. Only successful calls refresh the idle timer.
func (t *Table) Invoke(ctx context.Context, name string, key Key, op string, args component.Args) (any, error) {
	s, err := t.get(key)
	if err != nil {
		return nil, err
	}
	if s.def.Name != name {
		return nil, errors.Newf(errors.ErrNoSuchSession, "%s has no session %s", name, key)
	}
	if err := t.enter(ctx, s); err != nil {
		return nil, err
	}
	defer s.guard.Release(1)

	result, err := component.Call(ctx, s.def.Name, s.inst, op, args)
	if err == nil {
		s.lastAccess = t.clock.Now()
	}

	switch {
	case errors.Is(err, errors.ErrComponentPanic):
		t.logger.Error("discarding session after panic", "session", key, "operation", op, "error", err)
		t.remove(ctx, s, ReasonDiscarded)
	case err == nil && s.def.IsRemoveOperation(op):
		t.remove(ctx, s, ReasonRemoved)
	}
	return result, err
}

// State returns a snapshot of the session's conversational state.
// Reading the state does not count as access for the idle timeout.
func (t *Table) State(ctx context.Context, key Key) (any, error) {
	s, err := t.get(key)
	if err != nil {
		return nil, err
	}
	if err := t.enter(ctx, s); err != nil {
		return nil, err
	}
	defer s.guard.Release(1)

	snap, ok := s.inst.(component.Snapshotter)
	if !ok {
		return nil, errors.Newf(errors.ErrUnknownOperation, "%s exposes no state", s.def.Name)
	}
	return snap.Snapshot(), nil
}

// Status reports what the table knows about key, including recently removed sessions
func (t *Table) Status(key Key) Status {
	t.mu.RLock()
	s, ok := t.sessions[key]
	t.mu.RUnlock()
	if ok {
		return Status{Key: key, Component: s.def.Name, State: Active.String()}
	}
	if st, ok := t.tombstone(key); ok {
		return st
	}
	return Status{Key: key, State: Unknown.String()}
}

// remove ends s. The caller holds s.guard.
func (t *Table) remove(ctx context.Context, s *session, reason string) {
	s.removed = true

	t.mu.Lock()
	delete(t.sessions, s.key)
	t.mu.Unlock()

	if t.tombstones != nil {
		t.tombstones.SetDefault(string(s.key), Status{
			Key:       s.key,
			Component: s.def.Name,
			State:     Removed.String(),
			Reason:    reason,
			EndedAt:   t.clock.Now(),
		})
	}
	t.tracker.Untrack(string(s.key))
	t.metrics.SessionEnded(s.def.Name, reason)

	component.Destroy(ctx, t.logger, s.def.Name, s.inst)
	s.inst = nil
	t.logger.Debug("session ended", "session", s.key, "stateful", s.def.Name, "reason", reason)
}

func (t *Table) snapshot() []*session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	return out
}

// Sweep removes every idle session whose timeout has elapsed and returns how
// many it removed. No business operation runs on the swept sessions. A session
// busy with a call is skipped; that call refreshes its access time anyway.
func (t *Table) Sweep(ctx context.Context) int {
	now := t.clock.Now()
	removed := 0
	for _, s := range t.snapshot() {
		if !s.guard.TryAcquire(1) {
			continue
		}
		if !s.removed && s.expired(now) {
			t.remove(ctx, s, ReasonExpired)
			removed++
		}
		s.guard.Release(1)
	}
	if removed > 0 {
		t.logger.Info("expired idle sessions", "count", removed)
	}
	return removed
}

// Len returns the number of active sessions
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// Close refuses new sessions and ends all active ones, waiting for in-flight
// calls until ctx ends.
func (t *Table) Close(ctx context.Context) {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	for _, s := range t.snapshot() {
		if err := s.guard.Acquire(ctx, 1); err != nil {
			t.logger.Warn("session still busy at shutdown", "session", s.key, "error", err)
			continue
		}
		if !s.removed {
			t.remove(ctx, s, ReasonShutdown)
		}
		s.guard.Release(1)
	}
}
