package testutil

import (
	"context"
	"testing"
	"time"

	testclock "k8s.io/utils/clock/testing"

	"github.com/c360/beancontainer/component"
	"github.com/c360/beancontainer/componentregistry"
	"github.com/c360/beancontainer/config"
	"github.com/c360/beancontainer/container"
	"github.com/c360/beancontainer/datastore"
	"github.com/c360/beancontainer/metric"
)

// Env is a started container and the collaborators tests inspect
type Env struct {
	Container *container.Container
	Registry  *component.Registry
	Store     *datastore.Memory
	Clock     *testclock.FakeClock
	Metrics   *metric.MetricsRegistry
	Config    *config.Config
}

type envConfig struct {
	cfg  *config.Config
	defs []component.Definition
}

// Option adjusts StartContainer
type Option func(*envConfig)

// WithConfig replaces the default configuration
func WithConfig(cfg *config.Config) Option {
	return func(c *envConfig) { c.cfg = cfg }
}

// WithDefinitions registers extra definitions next to the bundled ones
func WithDefinitions(defs ...component.Definition) Option {
	return func(c *envConfig) { c.defs = append(c.defs, defs...) }
}

// StartContainer builds and starts a container, failing t on any error.
// The container is stopped during t's cleanup.
func StartContainer(t testing.TB, opts ...Option) *Env {
	t.Helper()

	ec := envConfig{cfg: config.Default()}
	for _, opt := range opts {
		opt(&ec)
	}

	reg := component.NewRegistry()
	if err := componentregistry.Register(reg); err != nil {
		t.Fatalf("register components: %v", err)
	}
	for _, def := range ec.defs {
		if err := reg.Register(def); err != nil {
			t.Fatalf("register %s: %v", def.Name, err)
		}
	}

	env := &Env{
		Registry: reg,
		Store:    datastore.NewMemory(),
		Clock:    testclock.NewFakeClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)),
		Metrics:  metric.NewMetricsRegistry(),
		Config:   ec.cfg,
	}

	c, err := container.New(ec.cfg, reg, env.Store,
		container.WithClock(env.Clock),
		container.WithMetricsRegistry(env.Metrics))
	if err != nil {
		t.Fatalf("create container: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start container: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Stop(context.Background()); err != nil {
			t.Errorf("stop container: %v", err)
		}
	})
	env.Container = c
	return env
}

// Ops is a component.Instance backed by a fixed operation table
type Ops map[string]component.Operation

// Operations implements component.Instance
func (o Ops) Operations() map[string]component.Operation { return o }

// Factory returns a factory that hands out a fresh copy of o's table each time
func (o Ops) Factory() component.Factory {
	return func(component.Dependencies) (component.Instance, error) {
		out := make(Ops, len(o))
		for k, v := range o {
			out[k] = v
		}
		return out, nil
	}
}
