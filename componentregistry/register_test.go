package componentregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/beancontainer/component"
	"github.com/c360/beancontainer/errors"
)

func TestRegister(t *testing.T) {
	reg := component.NewRegistry()
	require.NoError(t, Register(reg))

	var names []string
	for _, def := range reg.List() {
		names = append(names, def.Name)
	}
	assert.ElementsMatch(t, []string{
		"ItemService", "ShoppingCart", "ItemCache", "ItemCacheBMC", "PrimaryCache", "SecondaryCache",
	}, names)

	order, err := reg.ResolveStartupOrder()
	require.NoError(t, err)
	var singletons []string
	for _, def := range order {
		singletons = append(singletons, def.Name)
	}
	assert.Less(t, indexOf(singletons, "PrimaryCache"), indexOf(singletons, "SecondaryCache"))
}

func TestRegister_Twice(t *testing.T) {
	reg := component.NewRegistry()
	require.NoError(t, Register(reg))
	err := Register(reg)
	assert.ErrorIs(t, err, errors.ErrDuplicateDefinition)
}

func TestRegister_NilRegistry(t *testing.T) {
	assert.True(t, errors.IsFatal(Register(nil)))
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
