package component

import (
	"fmt"
	"slices"
	"time"

	"github.com/c360/beancontainer/errors"
)

// Kind selects the lifecycle discipline a component is hosted under
type Kind int

const (
	// Stateless instances are pooled and interchangeable between calls
	Stateless Kind = iota
	// Stateful instances are bound to one client session
	Stateful
	// Singleton components have exactly one process-wide instance
	Singleton
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case Stateless:
		return "stateless"
	case Stateful:
		return "stateful"
	case Singleton:
		return "singleton"
	default:
		return "unknown"
	}
}

// ConcurrencyPolicy selects who synchronizes calls into a singleton
type ConcurrencyPolicy int

const (
	// ConcurrencyNone performs no synchronization at all
	ConcurrencyNone ConcurrencyPolicy = iota
	// ContainerManaged takes the per-operation lock from the definition's lock table
	ContainerManaged
	// BeanManaged leaves synchronization to the component itself
	BeanManaged
)

// String returns the string representation of the policy
func (p ConcurrencyPolicy) String() string {
	switch p {
	case ConcurrencyNone:
		return "none"
	case ContainerManaged:
		return "container"
	case BeanManaged:
		return "bean"
	default:
		return "unknown"
	}
}

// LockType is the mode a container-managed operation holds the singleton lock in
type LockType int

const (
	// Exclusive excludes every other holder
	Exclusive LockType = iota
	// Shared coexists with other shared holders
	Shared
)

// String returns the string representation of the lock type
func (l LockType) String() string {
	if l == Shared {
		return "shared"
	}
	return "exclusive"
}

// NoWait as an access timeout makes lock acquisition fail immediately when contended.
const NoWait time.Duration = -1

// MethodLock is one entry of a container-managed lock table.
// AccessTimeout of zero waits until the caller's context ends.
type MethodLock struct {
	Type          LockType
	AccessTimeout time.Duration
}

// View is a named subset of a component's operations exposed through the directory.
// An empty Operations list exposes every operation.
type View struct {
	Name       string
	Operations []string
}

// Allows reports whether op is reachable through this view
func (v View) Allows(op string) bool {
	return len(v.Operations) == 0 || slices.Contains(v.Operations, op)
}

// Definition describes a component. It is immutable once registered.
type Definition struct {
	Name        string
	Description string
	Kind        Kind
	Concurrency ConcurrencyPolicy

	// DependsOn lists singletons that must be constructed before this one.
	DependsOn []string

	// IdleTimeout evicts a stateful session that has not been accessed for this long.
	// Zero means the container default.
	IdleTimeout time.Duration

	// DefaultLock applies to container-managed operations missing from MethodLocks.
	DefaultLock MethodLock
	MethodLocks map[string]MethodLock

	// RemoveOperations end a stateful session when they return without error.
	RemoveOperations []string

	Views   []View
	Factory Factory
}

// LockFor returns the lock an operation runs under
func (d *Definition) LockFor(op string) MethodLock {
	if l, ok := d.MethodLocks[op]; ok {
		return l
	}
	return d.DefaultLock
}

// IsRemoveOperation reports whether op ends the session
func (d *Definition) IsRemoveOperation(op string) bool {
	return slices.Contains(d.RemoveOperations, op)
}

// View returns the named view. The empty name resolves to the first declared view,
// or to an unrestricted view when none are declared.
func (d *Definition) View(name string) (View, bool) {
	if name == "" {
		if len(d.Views) == 0 {
			return View{}, true
		}
		return d.Views[0], true
	}
	for _, v := range d.Views {
		if v.Name == name {
			return v, true
		}
	}
	return View{}, false
}

// Validate checks internal consistency of the definition
func (d *Definition) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.WrapFatal(errors.Newf(errors.ErrInvalidDefinition, format, args...),
			"Registry", "Register", "definition validation")
	}

	if d.Name == "" {
		return invalid("name is empty")
	}
	if d.Factory == nil {
		return invalid("%s: factory is nil", d.Name)
	}
	if d.Kind < Stateless || d.Kind > Singleton {
		return invalid("%s: unknown kind %d", d.Name, d.Kind)
	}
	if d.Concurrency < ConcurrencyNone || d.Concurrency > BeanManaged {
		return invalid("%s: unknown concurrency policy %d", d.Name, d.Concurrency)
	}
	if d.IdleTimeout < 0 {
		return invalid("%s: negative idle timeout", d.Name)
	}
	if d.Kind != Stateful {
		if d.IdleTimeout != 0 {
			return invalid("%s: idle timeout on %s component", d.Name, d.Kind)
		}
		if len(d.RemoveOperations) > 0 {
			return invalid("%s: removal operations on %s component", d.Name, d.Kind)
		}
	}
	if d.Kind != Singleton {
		if len(d.DependsOn) > 0 {
			return invalid("%s: dependsOn on %s component", d.Name, d.Kind)
		}
		if d.Concurrency != ConcurrencyNone {
			return invalid("%s: concurrency policy on %s component", d.Name, d.Kind)
		}
	}
	if slices.Contains(d.DependsOn, d.Name) {
		return errors.WrapFatal(fmt.Errorf("%w: %s depends on itself", errors.ErrCyclicDependency, d.Name),
			"Registry", "Register", "definition validation")
	}

	seen := make(map[string]bool, len(d.Views))
	for _, v := range d.Views {
		if v.Name == "" || seen[v.Name] {
			return invalid("%s: view names must be unique and non-empty", d.Name)
		}
		seen[v.Name] = true
	}
	return nil
}
