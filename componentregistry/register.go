// Package componentregistry registers the demonstration components shipped
// with the container.
package componentregistry

import (
	"errors"

	"github.com/c360/beancontainer/beans/cache"
	"github.com/c360/beancontainer/beans/cart"
	"github.com/c360/beancontainer/beans/catalog"
	"github.com/c360/beancontainer/beans/chain"
	"github.com/c360/beancontainer/component"
	pkgerrors "github.com/c360/beancontainer/errors"
)

// Register registers every bundled component with the provided registry:
//   - ItemService (stateless catalog)
//   - ShoppingCart (stateful cart)
//   - ItemCache and ItemCacheBMC (singleton caches)
//   - PrimaryCache and SecondaryCache (dependent singletons)
func Register(registry *component.Registry) error {
	// Nil registry is a programming error (fatal), not invalid input
	if registry == nil {
		return pkgerrors.WrapFatal(
			errors.New("registry cannot be nil"),
			"ComponentRegistry", "Register", "registry validation")
	}

	if err := catalog.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "ItemService registration")
	}

	if err := cart.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "ShoppingCart registration")
	}

	if err := cache.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "item cache registration")
	}

	if err := chain.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "singleton chain registration")
	}

	return nil
}
