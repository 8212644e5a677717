// Package cache provides two singleton item caches with the same operations.
//
// ItemCache leaves synchronization to the container: reads share the lock,
// while addToCache, removeFromCache and clearCache take it exclusively and give
// up after AccessTimeout. ItemCacheBMC is bean-managed and guards its map with
// its own mutex.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/c360/beancontainer/component"
)

// Registered component names
const (
	Name    = "ItemCache"
	NameBMC = "ItemCacheBMC"
)

// AccessTimeout bounds how long a writer waits for the container-managed lock
const AccessTimeout = 20 * time.Second

// Cache maps item IDs to arbitrary values. addToCache keeps the first value
// stored under an ID.
type Cache struct {
	// guard is set for the bean-managed variant only
	guard   bool
	mu      sync.RWMutex
	entries map[int64]any
}

func newCache(guard bool) component.Factory {
	return func(component.Dependencies) (component.Instance, error) {
		return &Cache{guard: guard, entries: make(map[int64]any)}, nil
	}
}

func (c *Cache) lock() func() {
	if !c.guard {
		return func() {}
	}
	c.mu.Lock()
	return c.mu.Unlock
}

func (c *Cache) rlock() func() {
	if !c.guard {
		return func() {}
	}
	c.mu.RLock()
	return c.mu.RUnlock
}

// Operations implements component.Instance
func (c *Cache) Operations() map[string]component.Operation {
	return map[string]component.Operation{
		"addToCache":      c.add,
		"removeFromCache": c.remove,
		"clearCache":      c.clear,
		"getFromCache":    c.get,
		"numberOfItems":   c.size,
	}
}

func (c *Cache) add(_ context.Context, args component.Args) (any, error) {
	id, err := component.Arg[int64](args, 0)
	if err != nil {
		return nil, err
	}
	var value any
	if len(args) > 1 {
		value = args[1]
	}

	defer c.lock()()
	if _, exists := c.entries[id]; !exists {
		c.entries[id] = value
	}
	return nil, nil
}

func (c *Cache) remove(_ context.Context, args component.Args) (any, error) {
	id, err := component.Arg[int64](args, 0)
	if err != nil {
		return nil, err
	}
	defer c.lock()()
	delete(c.entries, id)
	return nil, nil
}

func (c *Cache) clear(context.Context, component.Args) (any, error) {
	defer c.lock()()
	clear(c.entries)
	return nil, nil
}

// get returns nil for an unknown ID
func (c *Cache) get(_ context.Context, args component.Args) (any, error) {
	id, err := component.Arg[int64](args, 0)
	if err != nil {
		return nil, err
	}
	defer c.rlock()()
	return c.entries[id], nil
}

func (c *Cache) size(context.Context, component.Args) (any, error) {
	defer c.rlock()()
	return len(c.entries), nil
}

var writeLock = component.MethodLock{Type: component.Exclusive, AccessTimeout: AccessTimeout}

// Definition describes the container-managed ItemCache
func Definition() component.Definition {
	return component.Definition{
		Name:        Name,
		Description: "Item cache synchronized by the container",
		Kind:        component.Singleton,
		Concurrency: component.ContainerManaged,
		DefaultLock: component.MethodLock{Type: component.Shared},
		MethodLocks: map[string]component.MethodLock{
			"addToCache":      writeLock,
			"removeFromCache": writeLock,
			"clearCache":      writeLock,
		},
		Factory: newCache(false),
	}
}

// DefinitionBMC describes the bean-managed ItemCacheBMC
func DefinitionBMC() component.Definition {
	return component.Definition{
		Name:        NameBMC,
		Description: "Item cache synchronized by its own mutex",
		Kind:        component.Singleton,
		Concurrency: component.BeanManaged,
		Factory:     newCache(true),
	}
}

// Register adds both caches to registry
func Register(registry *component.Registry) error {
	if err := registry.Register(Definition()); err != nil {
		return err
	}
	return registry.Register(DefinitionBMC())
}
