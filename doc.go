// Package beancontainer is a runtime for managed business components.
//
// Components are registered with a lifecycle kind and the container manages
// their instances:
//
//   - Stateless components are pooled; any idle instance serves a call.
//   - Stateful components hold one instance per client session, identified by
//     a session key, ended by a removal operation or an idle timeout.
//   - Singletons have one instance per process, initialized in dependency
//     order, with container-managed read/write locks or bean-managed
//     concurrency.
//
// # Packages
//
//	component/          definitions, instances and the registry
//	componentregistry/  registers the bundled components
//	pool/               stateless instance pool
//	session/            stateful session table with expiry and tombstones
//	singleton/          singleton manager and lock policies
//	scheduler/          periodic expiry sweep
//	directory/          global, app and module names with views
//	datastore/          record storage with unit-of-work transactions
//	container/          wires everything together behind Invoke
//	gateway/            HTTP and NATS transports
//	beans/              bundled sample components
//	cmd/beancontainer/  the server binary
//
// # Quick start
//
//	registry := component.NewRegistry()
//	if err := componentregistry.Register(registry); err != nil {
//	    return err
//	}
//	c, err := container.New(config.Default(), registry, datastore.NewMemory())
//	if err != nil {
//	    return err
//	}
//	if err := c.Start(ctx); err != nil {
//	    return err
//	}
//	defer c.Stop(ctx)
//
//	key, _ := c.CreateSession(ctx, cart.Name)
//	_, err = c.Invoke(ctx, container.Call{
//	    Component:  cart.Name,
//	    SessionKey: key,
//	    Operation:  "addItem",
//	    Args:       component.Args{cart.Item{ID: "b1", Title: "Book", Price: 23}},
//	})
package beancontainer
