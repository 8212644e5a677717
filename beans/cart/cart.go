// Package cart provides ShoppingCart, a stateful component holding the items
// one client has picked until it checks out.
package cart

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/c360/beancontainer/component"
	"github.com/c360/beancontainer/datastore"
	"github.com/c360/beancontainer/errors"
)

// Name is the registered component name
const Name = "ShoppingCart"

// IdleTimeout ends a cart nobody has touched for this long
const IdleTimeout = 20 * time.Second

// Record types written by checkout
const (
	TypeItem = "item"
	TypeSale = "sale"
)

// Item is a product placed in the cart. Two items are the same item when all
// their fields are equal.
type Item struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
}

// Sale is persisted by checkout
type Sale struct {
	ID           string    `json:"id,omitempty"`
	CustomerName string    `json:"customer_name"`
	Date         time.Time `json:"date"`
	TotalAmount  float64   `json:"total_amount"`
	Items        []Item    `json:"items"`
}

// State is the snapshot of a cart
type State struct {
	Items []Item  `json:"items"`
	Total float64 `json:"total"`
}

// Cart implements the ShoppingCart operations.
// The container serializes calls into one session; mu only guards Snapshot
// against the sweeper and diagnostics.
type Cart struct {
	store  datastore.DataStore
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	items []Item
}

// New builds an empty cart
func New(deps component.Dependencies) (component.Instance, error) {
	if deps.Store == nil {
		return nil, errors.Newf(errors.ErrInvalidArgument, "%s requires a data store", Name)
	}
	logger := deps.GetLoggerWithComponent(Name)
	return &Cart{store: deps.Store, logger: logger, now: time.Now}, nil
}

// Operations implements component.Instance
func (c *Cart) Operations() map[string]component.Operation {
	return map[string]component.Operation{
		"addItem":       c.addItem,
		"removeItem":    c.removeItem,
		"numberOfItems": c.numberOfItems,
		"total":         c.total,
		"empty":         c.empty,
		"checkout":      c.checkout,
	}
}

// Snapshot implements component.Snapshotter
func (c *Cart) Snapshot() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Items: slices.Clone(c.items), Total: c.sum()}
}

// PreDestroy implements component.PreDestroyer
func (c *Cart) PreDestroy(context.Context) error {
	c.mu.Lock()
	n := len(c.items)
	c.items = nil
	c.mu.Unlock()
	if n > 0 {
		c.logger.Debug("cart discarded with items", "items", n)
	}
	return nil
}

func (c *Cart) sum() float64 {
	var total float64
	for _, it := range c.items {
		total += it.Price
	}
	return total
}

// addItem ignores an item already in the cart
func (c *Cart) addItem(_ context.Context, args component.Args) (any, error) {
	item, err := component.Arg[Item](args, 0)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !slices.Contains(c.items, item) {
		c.items = append(c.items, item)
	}
	return nil, nil
}

func (c *Cart) removeItem(_ context.Context, args component.Args) (any, error) {
	item, err := component.Arg[Item](args, 0)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := slices.Index(c.items, item); i >= 0 {
		c.items = slices.Delete(c.items, i, i+1)
	}
	return nil, nil
}

func (c *Cart) numberOfItems(context.Context, component.Args) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items), nil
}

func (c *Cart) total(context.Context, component.Args) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sum(), nil
}

func (c *Cart) empty(context.Context, component.Args) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	return nil, nil
}

// checkout persists every item and the sale in one unit of work. On success
// the container ends the session.
func (c *Cart) checkout(ctx context.Context, args component.Args) (any, error) {
	customer, err := component.Arg[string](args, 0)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	sale := Sale{
		CustomerName: customer,
		Date:         c.now().UTC(),
		TotalAmount:  c.sum(),
		Items:        slices.Clone(c.items),
	}
	c.mu.Unlock()

	err = datastore.WithinTx(ctx, c.store, func(ctx context.Context, tx datastore.DataStore) error {
		for _, it := range sale.Items {
			if _, err := tx.Find(ctx, TypeItem, it.ID); err == nil {
				if err := datastore.Replace(ctx, tx, TypeItem, it.ID, it); err != nil {
					return err
				}
				continue
			} else if !datastore.IsNotFound(err) {
				return err
			}
			if _, err := datastore.Insert(ctx, tx, TypeItem, it.ID, it); err != nil {
				return err
			}
		}
		id, err := datastore.Insert(ctx, tx, TypeSale, "", sale)
		if err != nil {
			return err
		}
		sale.ID = id
		return datastore.Replace(ctx, tx, TypeSale, id, sale)
	})
	if err != nil {
		return nil, errors.Wrap(err, Name, "checkout", "persist sale")
	}

	c.logger.Info("checked out", "customer", customer, "items", len(sale.Items), "total", sale.TotalAmount)
	return sale, nil
}

// Definition describes ShoppingCart
func Definition() component.Definition {
	return component.Definition{
		Name:             Name,
		Description:      "Per-client shopping cart, ended by checkout",
		Kind:             component.Stateful,
		IdleTimeout:      IdleTimeout,
		RemoveOperations: []string{"checkout"},
		Factory:          New,
	}
}

// Register adds ShoppingCart to registry
func Register(registry *component.Registry) error {
	return registry.Register(Definition())
}
