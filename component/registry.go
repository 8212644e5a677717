package component

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/c360/beancontainer/errors"
)

// Registry holds component definitions and resolves singleton startup order.
// It is safe for concurrent use; once sealed it rejects further registrations.
type Registry struct {
	mu     sync.RWMutex
	defs   map[string]*Definition
	order  []string // registration order, used as the topological tie-break
	sealed bool
}

// NewRegistry creates a new empty component registry
func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[string]*Definition),
	}
}

// Register adds a definition. The registry keeps its own copy.
func (r *Registry) Register(def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return errors.WrapInvalid(fmt.Errorf("%w: cannot register %s", errors.ErrRegistrySealed, def.Name),
			"Registry", "Register", "sealed check")
	}
	if _, exists := r.defs[def.Name]; exists {
		return errors.WrapFatal(fmt.Errorf("%w: %s", errors.ErrDuplicateDefinition, def.Name),
			"Registry", "Register", "duplicate check")
	}

	cp := def
	cp.DependsOn = slices.Clone(def.DependsOn)
	cp.RemoveOperations = slices.Clone(def.RemoveOperations)
	cp.Views = slices.Clone(def.Views)
	if def.MethodLocks != nil {
		cp.MethodLocks = make(map[string]MethodLock, len(def.MethodLocks))
		for op, l := range def.MethodLocks {
			cp.MethodLocks[op] = l
		}
	}

	r.defs[def.Name] = &cp
	r.order = append(r.order, def.Name)
	return nil
}

// Lookup returns the definition registered under name
func (r *Registry) Lookup(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	if !ok {
		return nil, errors.Newf(errors.ErrUnknownComponent, "%s", name)
	}
	return def, nil
}

// List returns all definitions in registration order
func (r *Registry) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name])
	}
	return out
}

// Seal stops further registrations
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// ResolveStartupOrder returns the singleton definitions so that every singleton
// follows all of its dependencies. Among singletons that are ready at the same
// time, the one registered first comes first.
func (r *Registry) ResolveStartupOrder() ([]*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	index := make(map[string]int)
	var singletons []*Definition
	for _, name := range r.order {
		def := r.defs[name]
		if def.Kind != Singleton {
			continue
		}
		index[name] = len(singletons)
		singletons = append(singletons, def)
	}

	// dependents[i] are the singletons waiting on singletons[i]
	inDegree := make([]int, len(singletons))
	dependents := make([][]int, len(singletons))
	for i, def := range singletons {
		for _, dep := range def.DependsOn {
			j, ok := index[dep]
			if !ok {
				reason := "unknown"
				if _, exists := r.defs[dep]; exists {
					reason = "non-singleton"
				}
				return nil, errors.WrapFatal(
					errors.Newf(errors.ErrInvalidDefinition, "%s depends on %s component %s", def.Name, reason, dep),
					"Registry", "ResolveStartupOrder", "dependency check")
			}
			inDegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	// ready holds indices with no pending dependencies, kept sorted so the
	// lowest registration index is always taken next.
	var ready []int
	for i, d := range inDegree {
		if d == 0 {
			ready = append(ready, i)
		}
	}

	result := make([]*Definition, 0, len(singletons))
	for len(ready) > 0 {
		u := ready[0]
		ready = ready[1:]
		result = append(result, singletons[u])

		for _, v := range dependents[u] {
			inDegree[v]--
			if inDegree[v] == 0 {
				pos, _ := slices.BinarySearch(ready, v)
				ready = slices.Insert(ready, pos, v)
			}
		}
	}

	if len(result) != len(singletons) {
		var stuck []string
		for i, d := range inDegree {
			if d > 0 {
				stuck = append(stuck, singletons[i].Name)
			}
		}
		return nil, errors.WrapFatal(
			fmt.Errorf("%w among [%s]", errors.ErrCyclicDependency, strings.Join(stuck, ", ")),
			"Registry", "ResolveStartupOrder", "topological sort")
	}
	return result, nil
}
