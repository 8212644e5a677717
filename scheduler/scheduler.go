// Package scheduler runs the periodic expiry sweep over stateful sessions.
//
// The sweep interval follows the smallest idle timeout tracked so far, capped
// by the configured interval, so an idle session is never observed alive much
// past its timeout. cron cannot tick faster than once a second; sessions with
// shorter timeouts still expire on their next access.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/c360/beancontainer/errors"
	"github.com/c360/beancontainer/metric"
)

// DefaultInterval is used when no interval is configured
const DefaultInterval = 30 * time.Second

// minInterval is the finest resolution of cron.Every
const minInterval = time.Second

// Sweeper removes whatever has expired and reports how many entries it removed
type Sweeper interface {
	Sweep(ctx context.Context) int
}

// SweeperFunc adapts a function to Sweeper
type SweeperFunc func(ctx context.Context) int

// Sweep calls f
func (f SweeperFunc) Sweep(ctx context.Context) int { return f(ctx) }

type namedSweeper struct {
	name string
	s    Sweeper
}

// Scheduler tracks idle timeouts and periodically runs its sweepers
type Scheduler struct {
	logger  *slog.Logger
	metrics *metric.Metrics
	base    time.Duration

	mu       sync.Mutex
	tracked  map[string]time.Duration
	timeouts map[time.Duration]int // distinct timeouts and how many keys use each
	sweepers []namedSweeper

	cron     *cron.Cron
	entry    cron.EntryID
	interval time.Duration
	runCtx   context.Context
	cancel   context.CancelFunc
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithMetrics counts sweep runs
func WithMetrics(m *metric.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithInterval sets the upper bound of the sweep interval
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.base = d
		}
	}
}

// New creates a stopped scheduler
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:   slog.Default(),
		base:     DefaultInterval,
		tracked:  make(map[string]time.Duration),
		timeouts: make(map[time.Duration]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "Scheduler")
	return s
}

// AddSweeper registers a sweeper. Sweepers run in registration order.
func (s *Scheduler) AddSweeper(name string, sw Sweeper) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepers = append(s.sweepers, namedSweeper{name: name, s: sw})
}

// Track records key's idle timeout, tightening the sweep interval when needed.
// A non-positive timeout is ignored since such a key never expires.
func (s *Scheduler) Track(key string, timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.tracked[key]; ok {
		s.forget(old)
	}
	s.tracked[key] = timeout
	s.timeouts[timeout]++

	if s.cron != nil && s.desiredInterval() < s.interval {
		s.reschedule()
	}
}

// Untrack forgets key
func (s *Scheduler) Untrack(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.tracked[key]; ok {
		delete(s.tracked, key)
		s.forget(old)
	}
}

func (s *Scheduler) forget(timeout time.Duration) {
	if s.timeouts[timeout]--; s.timeouts[timeout] <= 0 {
		delete(s.timeouts, timeout)
	}
}

// Tracked returns the number of tracked keys
func (s *Scheduler) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tracked)
}

// Interval returns the current sweep interval, or zero when stopped
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return 0
	}
	return s.interval
}

// desiredInterval is min(base, smallest tracked timeout), floored at cron's
// resolution. The caller holds s.mu.
func (s *Scheduler) desiredInterval() time.Duration {
	d := s.base
	for t := range s.timeouts {
		d = min(d, t)
	}
	return max(d, minInterval)
}

// reschedule replaces the sweep job. The caller holds s.mu.
func (s *Scheduler) reschedule() {
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.interval = s.desiredInterval()
	ctx := s.runCtx
	s.entry = s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(func() { s.RunOnce(ctx) }))
	s.logger.Debug("sweep scheduled", "interval", s.interval)
}

// RunOnce runs every sweeper once and returns the total number of removals.
// It is safe to call concurrently with a scheduled run.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	s.mu.Lock()
	sweepers := append([]namedSweeper(nil), s.sweepers...)
	s.mu.Unlock()

	total := 0
	for _, ns := range sweepers {
		if ctx.Err() != nil {
			break
		}
		n := ns.s.Sweep(ctx)
		if n > 0 {
			s.logger.Debug("sweeper removed entries", "sweeper", ns.name, "count", n)
		}
		total += n
	}
	s.metrics.RecordSweep()
	return total
}

// Start begins periodic sweeping. Sweeps keep ctx's values but not its
// cancellation; they run until Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return errors.WrapInvalid(errors.New("already started"), "Scheduler", "Start", "start cron")
	}

	cl := cronLogger{s.logger}
	s.cron = cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	s.runCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.reschedule()
	s.cron.Start()
	s.logger.Info("scheduler started", "interval", s.interval, "sweepers", len(s.sweepers))
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to end
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.entry = 0
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	defer cancel()

	select {
	case <-c.Stop().Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return errors.WrapTransient(ctx.Err(), "Scheduler", "Stop", "wait for running sweep")
	}
}

// cronLogger routes cron's logging into slog
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
