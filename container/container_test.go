package container

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	testclock "k8s.io/utils/clock/testing"

	"github.com/c360/beancontainer/beans/cache"
	"github.com/c360/beancontainer/beans/cart"
	"github.com/c360/beancontainer/beans/catalog"
	"github.com/c360/beancontainer/beans/chain"
	"github.com/c360/beancontainer/component"
	"github.com/c360/beancontainer/componentregistry"
	"github.com/c360/beancontainer/config"
	"github.com/c360/beancontainer/datastore"
	"github.com/c360/beancontainer/errors"
	"github.com/c360/beancontainer/health"
	"github.com/c360/beancontainer/metric"
	"github.com/c360/beancontainer/session"
)

// ContainerSuite runs the bundled components inside a started container
type ContainerSuite struct {
	suite.Suite
	ctx     context.Context
	clock   *testclock.FakeClock
	store   *datastore.Memory
	metrics *metric.MetricsRegistry
	c       *Container
}

func TestContainerSuite(t *testing.T) {
	suite.Run(t, new(ContainerSuite))
}

func (s *ContainerSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = testclock.NewFakeClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	s.store = datastore.NewMemory()
	s.metrics = metric.NewMetricsRegistry()

	cfg := config.Default()
	cfg.Container.App = "shop"
	cfg.Components = map[string]config.ComponentConfig{
		catalog.Name: {Env: map[string]any{catalog.EnvCurrency: "Dollar", catalog.EnvChangeRate: 1.25}},
	}

	reg := component.NewRegistry()
	s.Require().NoError(componentregistry.Register(reg))

	c, err := New(cfg, reg, s.store,
		WithClock(s.clock),
		WithMetricsRegistry(s.metrics),
		WithProbe("datastore", func(context.Context) error { return nil }),
	)
	s.Require().NoError(err)
	s.Require().NoError(c.Start(s.ctx))
	s.c = c
}

func (s *ContainerSuite) TearDownTest() {
	s.NoError(s.c.Stop(s.ctx))
}

func (s *ContainerSuite) invoke(name string, key session.Key, op string, args ...any) any {
	out, err := s.c.Invoke(s.ctx, Call{Component: name, SessionKey: key, Operation: op, Args: args})
	s.Require().NoError(err, "%s.%s", name, op)
	return out
}

func (s *ContainerSuite) TestShoppingCartCheckout() {
	key, err := s.c.CreateSession(s.ctx, cart.Name)
	s.Require().NoError(err)

	s.invoke(cart.Name, key, "addItem", cart.Item{ID: "b1", Title: "Book", Price: 23})
	s.invoke(cart.Name, key, "addItem", cart.Item{ID: "c1", Title: "CD", Price: 12.5})
	s.Equal(35.5, s.invoke(cart.Name, key, "total"))

	state, err := s.c.SessionState(s.ctx, key)
	s.Require().NoError(err)
	s.Len(state.(cart.State).Items, 2)

	sale := s.invoke(cart.Name, key, "checkout", "Paul").(cart.Sale)
	s.Equal(35.5, sale.TotalAmount)
	s.Equal(1, s.store.Len(cart.TypeSale))

	_, err = s.c.Invoke(s.ctx, Call{Component: cart.Name, SessionKey: key, Operation: "checkout", Args: component.Args{"Paul"}})
	s.ErrorIs(err, errors.ErrNoSuchSession)
	s.Equal(1, s.store.Len(cart.TypeSale), "the second checkout persists nothing")

	st := s.c.SessionStatus(key)
	s.Equal(session.Removed.String(), st.State)
	s.Equal(session.ReasonRemoved, st.Reason)
}

func (s *ContainerSuite) TestShoppingCartIdleTimeout() {
	key, err := s.c.CreateSession(s.ctx, cart.Name)
	s.Require().NoError(err)
	s.invoke(cart.Name, key, "addItem", cart.Item{ID: "b1", Title: "Book", Price: 23})

	s.clock.Step(cart.IdleTimeout - time.Second)
	s.Equal(1, s.invoke(cart.Name, key, "numberOfItems"), "access refreshes the idle timer")

	s.clock.Step(cart.IdleTimeout + time.Second)
	s.Equal(1, s.c.Sweep(s.ctx))

	_, err = s.c.Invoke(s.ctx, Call{Component: cart.Name, SessionKey: key, Operation: "total"})
	s.ErrorIs(err, errors.ErrNoSuchSession)
	s.Equal(session.ReasonExpired, s.c.SessionStatus(key).Reason)
	s.Zero(s.store.Len(cart.TypeSale), "expiry never runs a business operation")
}

func (s *ContainerSuite) TestStatefulCallNeedsKey() {
	_, err := s.c.Invoke(s.ctx, Call{Component: cart.Name, Operation: "total"})
	s.ErrorIs(err, errors.ErrInvalidArgument)

	_, err = s.c.CreateSession(s.ctx, catalog.Name)
	s.ErrorIs(err, errors.ErrWrongKind)
}

func (s *ContainerSuite) TestSingletonChain() {
	s.Equal("ItemB", s.invoke(chain.SecondaryName, "", "getFromCache", "KeyB"))
	s.Equal("ItemC", s.invoke(chain.SecondaryName, "", "getFromPrimaryCache", 3))
}

func (s *ContainerSuite) TestItemCacheAddIgnoresExisting() {
	s.invoke(cache.Name, "", "addToCache", 7, "first")
	s.invoke(cache.Name, "", "addToCache", 7, "second")
	s.Equal("first", s.invoke(cache.Name, "", "getFromCache", 7))
	s.Equal(1, s.invoke(cache.Name, "", "numberOfItems"))
}

func (s *ContainerSuite) TestCatalogThroughDirectory() {
	local, err := s.c.Lookup("global:shop/beancontainer/ItemService!Local")
	s.Require().NoError(err)

	_, err = local.Invoke(s.ctx, "createBook", component.Args{catalog.Book{Title: "H2G2", Price: 12.5}})
	s.Require().NoError(err)

	_, err = local.Invoke(s.ctx, "createBook", component.Args{catalog.Book{Title: "Bad", Price: -1}})
	s.ErrorIs(err, catalog.ErrCannotCreateBook)
	s.Equal(1, s.store.Len(catalog.TypeBook))

	remote, err := s.c.Lookup("module:ItemService!Remote")
	s.Require().NoError(err)
	books, err := remote.Invoke(s.ctx, "findBooks", nil)
	s.Require().NoError(err)
	s.Len(books, 1)
	_, err = remote.Invoke(s.ctx, "createBook", component.Args{catalog.Book{Title: "x"}})
	s.ErrorIs(err, errors.ErrOperationNotInView)

	_, err = s.c.Lookup("module:Nope")
	s.ErrorIs(err, errors.ErrNameNotFound)
}

func (s *ContainerSuite) TestCatalogEnvEntries() {
	out := s.invoke(catalog.Name, "", "convertPrice", catalog.PricedItem{Title: "Item", Price: 10})
	item := out.(catalog.PricedItem)
	s.InDelta(12.5, item.Price, 1e-9)
	s.Equal("Dollar", item.Currency)
}

func (s *ContainerSuite) TestDirectoryCartReferenceOwnsSession() {
	ref, err := s.c.Lookup("app:beancontainer/ShoppingCart")
	s.Require().NoError(err)
	_, err = ref.Invoke(s.ctx, "addItem", component.Args{cart.Item{ID: "b1", Price: 2}})
	s.Require().NoError(err)
	s.NotEmpty(ref.SessionKey())

	other, err := s.c.Lookup("app:beancontainer/ShoppingCart")
	s.Require().NoError(err)
	n, err := other.Invoke(s.ctx, "numberOfItems", nil)
	s.Require().NoError(err)
	s.Equal(0, n)
}

func (s *ContainerSuite) TestMetricsAndHealth() {
	s.invoke(catalog.Name, "", "findBooks")
	_, _ = s.c.Invoke(s.ctx, Call{Component: catalog.Name, Operation: "nope"})

	m := s.metrics.CoreMetrics()
	s.Equal(1.0, testutil.ToFloat64(m.Invocations.WithLabelValues(catalog.Name, "stateless", "ok")))
	s.Equal(1.0, testutil.ToFloat64(m.Invocations.WithLabelValues(catalog.Name, "stateless", "invalid")))
	s.Equal(float64(len(s.c.singletons.Names())), testutil.ToFloat64(m.SingletonsActive))

	h := s.c.Health(s.ctx)
	s.True(h.IsHealthy(), "%+v", h)
	components := make(map[string]health.Status)
	for _, sub := range h.SubStatuses {
		components[sub.Component] = sub
	}
	s.Contains(components, "singletons")
	s.Contains(components, "sessions")
	s.Contains(components, "pool")
	s.Contains(components, "scheduler")
	s.Contains(components, "datastore")
}

func (s *ContainerSuite) TestUnknownComponent() {
	_, err := s.c.Invoke(s.ctx, Call{Component: "Missing", Operation: "x"})
	s.ErrorIs(err, errors.ErrUnknownComponent)
}

func (s *ContainerSuite) TestStopEndsEverything() {
	key, err := s.c.CreateSession(s.ctx, cart.Name)
	s.Require().NoError(err)

	s.Require().NoError(s.c.Stop(s.ctx))
	s.NoError(s.c.Stop(s.ctx), "stop is idempotent")

	_, err = s.c.Invoke(s.ctx, Call{Component: cart.Name, SessionKey: key, Operation: "total"})
	s.ErrorIs(err, errors.ErrShuttingDown)
	s.Equal(session.ReasonShutdown, s.c.SessionStatus(key).Reason)
	s.Empty(s.c.singletons.Names())
	s.False(s.c.Health(s.ctx).IsHealthy())
}

func TestContainer_Lifecycle(t *testing.T) {
	reg := component.NewRegistry()
	if err := componentregistry.Register(reg); err != nil {
		t.Fatal(err)
	}
	c, err := New(nil, reg, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := c.Invoke(ctx, Call{Component: catalog.Name, Operation: "findBooks"}); !errors.Is(err, errors.ErrNotStarted) {
		t.Fatalf("invoke before start: got %v", err)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(ctx); err == nil {
		t.Fatal("second start should fail")
	}
	if err := reg.Register(cart.Definition()); !errors.Is(err, errors.ErrRegistrySealed) {
		t.Fatalf("register after start: got %v", err)
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestContainer_StartFailsOnCycle(t *testing.T) {
	reg := component.NewRegistry()
	noop := func(component.Dependencies) (component.Instance, error) { return nil, nil }
	for _, def := range []component.Definition{
		{Name: "A", Kind: component.Singleton, DependsOn: []string{"B"}, Factory: noop},
		{Name: "B", Kind: component.Singleton, DependsOn: []string{"A"}, Factory: noop},
	} {
		if err := reg.Register(def); err != nil {
			t.Fatal(err)
		}
	}
	c, err := New(nil, reg, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = c.Start(context.Background())
	if !errors.Is(err, errors.ErrCyclicDependency) || !errors.IsFatal(err) {
		t.Fatalf("want fatal cyclic dependency, got %v", err)
	}
}

func TestNew_RejectsBadAccessMode(t *testing.T) {
	cfg := config.Default()
	cfg.Container.SessionAccess = "sometimes"
	_, err := New(cfg, component.NewRegistry(), nil)
	if !errors.IsInvalid(err) {
		t.Fatalf("want invalid error, got %v", err)
	}
}

type wallet struct{ drained bool }

func (w *wallet) Operations() map[string]component.Operation {
	return map[string]component.Operation{
		"drain": func(context.Context, component.Args) (any, error) {
			w.drained = true
			return "drained", nil
		},
	}
}

func TestContainer_SessionKeyBelongsToComponent(t *testing.T) {
	reg := component.NewRegistry()
	if err := componentregistry.Register(reg); err != nil {
		t.Fatal(err)
	}
	w := &wallet{}
	if err := reg.Register(component.Definition{
		Name: "Wallet", Kind: component.Stateful,
		Factory: func(component.Dependencies) (component.Instance, error) { return w, nil },
	}); err != nil {
		t.Fatal(err)
	}
	metrics := metric.NewMetricsRegistry()
	c, err := New(nil, reg, datastore.NewMemory(), WithMetricsRegistry(metrics))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Stop(ctx) }()

	walletKey, err := c.CreateSession(ctx, "Wallet")
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Invoke(ctx, Call{Component: cart.Name, SessionKey: walletKey, Operation: "drain"})
	if !errors.Is(err, errors.ErrNoSuchSession) {
		t.Fatalf("cart call on a wallet key: got %v", err)
	}

	ref, err := c.Lookup("module:" + cart.Name)
	if err != nil {
		t.Fatal(err)
	}
	if err := ref.Attach(walletKey); !errors.Is(err, errors.ErrNoSuchSession) {
		t.Fatalf("attach cart reference to a wallet key: got %v", err)
	}

	if w.drained {
		t.Fatal("wallet operation ran through the cart")
	}
	if got := testutil.ToFloat64(metrics.CoreMetrics().Invocations.WithLabelValues("Wallet", "stateful", "ok")); got != 0 {
		t.Fatalf("wallet invocations recorded: %v", got)
	}
	if st := c.SessionStatus(walletKey); st.State != session.Active.String() || st.Component != "Wallet" {
		t.Fatalf("wallet session disturbed: %+v", st)
	}
}
