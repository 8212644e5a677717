// Package chain provides two singletons initialized in dependency order.
// SecondaryCache fills itself from PrimaryCache while it is being constructed,
// so PrimaryCache must be ready first.
package chain

import (
	"context"
	"fmt"

	"github.com/c360/beancontainer/component"
	"github.com/c360/beancontainer/errors"
)

// Registered component names
const (
	PrimaryName   = "PrimaryCache"
	SecondaryName = "SecondaryCache"
)

// Primary holds the seed entries
type Primary struct {
	entries map[int64]string
}

// NewPrimary builds an unseeded Primary
func NewPrimary(component.Dependencies) (component.Instance, error) {
	return &Primary{entries: make(map[int64]string)}, nil
}

// PostConstruct seeds the cache
func (p *Primary) PostConstruct(context.Context) error {
	p.entries[1] = "ItemA"
	p.entries[2] = "ItemB"
	p.entries[3] = "ItemC"
	return nil
}

// Operations implements component.Instance
func (p *Primary) Operations() map[string]component.Operation {
	return map[string]component.Operation{
		"getFromCache": func(_ context.Context, args component.Args) (any, error) {
			id, err := component.Arg[int64](args, 0)
			if err != nil {
				return nil, err
			}
			if v, ok := p.entries[id]; ok {
				return v, nil
			}
			return nil, nil
		},
	}
}

// Secondary maps KeyA, KeyB and KeyC to Primary's entries 1, 2 and 3
type Secondary struct {
	primary component.Invoker
	entries map[string]any
}

// NewSecondary builds a Secondary bound to the singleton invoker
func NewSecondary(deps component.Dependencies) (component.Instance, error) {
	if deps.Singletons == nil {
		return nil, errors.Newf(errors.ErrInvalidArgument, "%s needs access to %s", SecondaryName, PrimaryName)
	}
	return &Secondary{primary: deps.Singletons, entries: make(map[string]any)}, nil
}

// PostConstruct copies the seed entries from Primary
func (s *Secondary) PostConstruct(ctx context.Context) error {
	for i, key := range []string{"KeyA", "KeyB", "KeyC"} {
		v, err := s.primary.Invoke(ctx, PrimaryName, "getFromCache", component.Args{int64(i + 1)})
		if err != nil {
			return fmt.Errorf("read %s entry %d: %w", PrimaryName, i+1, err)
		}
		s.entries[key] = v
	}
	return nil
}

// Operations implements component.Instance
func (s *Secondary) Operations() map[string]component.Operation {
	return map[string]component.Operation{
		"getFromCache": func(_ context.Context, args component.Args) (any, error) {
			key, err := component.Arg[string](args, 0)
			if err != nil {
				return nil, err
			}
			return s.entries[key], nil
		},
		"getFromPrimaryCache": func(ctx context.Context, args component.Args) (any, error) {
			return s.primary.Invoke(ctx, PrimaryName, "getFromCache", args)
		},
	}
}

// PrimaryDefinition describes PrimaryCache
func PrimaryDefinition() component.Definition {
	return component.Definition{
		Name:        PrimaryName,
		Description: "Seed cache read by SecondaryCache at startup",
		Kind:        component.Singleton,
		Factory:     NewPrimary,
	}
}

// SecondaryDefinition describes SecondaryCache
func SecondaryDefinition() component.Definition {
	return component.Definition{
		Name:        SecondaryName,
		Description: "Cache initialized from PrimaryCache",
		Kind:        component.Singleton,
		DependsOn:   []string{PrimaryName},
		Factory:     NewSecondary,
	}
}

// Register adds both singletons. Registration order does not matter: the
// dependency decides initialization order.
func Register(registry *component.Registry) error {
	if err := registry.Register(SecondaryDefinition()); err != nil {
		return err
	}
	return registry.Register(PrimaryDefinition())
}
