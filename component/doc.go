// Package component defines managed components and the registry that holds them.
//
// # Overview
//
// A component is described by a Definition: its name, lifecycle Kind
// (Stateless, Stateful or Singleton), concurrency policy, singleton
// dependencies, idle timeout, lock table, removal operations and views.
// Definitions carry a Factory instead of relying on injection; the factory
// receives Dependencies (logger, data store, environment entries and an
// Invoker for calling singletons) and returns an Instance.
//
// An Instance exposes its business methods through Operations. Optional
// lifecycle hooks are discovered by interface:
//
//   - PostConstructor: runs once after the factory, before the first call
//   - PreDestroyer: runs once before the instance is discarded
//   - Snapshotter: exposes stateful conversational state for inspection
//
// # Registration
//
// Definitions are registered explicitly, usually from componentregistry:
//
//	registry := component.NewRegistry()
//	if err := registry.Register(component.Definition{
//	    Name:    "ItemService",
//	    Kind:    component.Stateless,
//	    Factory: newItemService,
//	}); err != nil {
//	    return err
//	}
//
// Register rejects duplicate names with errors.ErrDuplicateDefinition.
// ResolveStartupOrder sorts singletons so each follows its DependsOn list and
// fails with errors.ErrCyclicDependency when that is impossible.
//
// # Dispatch
//
// Call runs one operation and turns panics into errors.ErrComponentPanic so
// the pool, session table and singleton manager can always release what they
// hold. Construct and Destroy run the factory and lifecycle hooks.
package component
