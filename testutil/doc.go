// Package testutil starts containers for tests of the layers above the container.
//
// StartContainer registers the bundled components, starts a container on a
// fake clock and an in-memory data store, and stops it when the test ends:
//
//	env := testutil.StartContainer(t)
//	key, err := env.Container.CreateSession(ctx, cart.Name)
//	...
//	env.Clock.Step(cart.IdleTimeout + time.Second)
//	env.Container.Sweep(ctx)
//
// Ops adapts a map of functions into a component.Instance for ad hoc
// definitions.
package testutil
