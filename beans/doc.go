// Package beans groups the demonstration components hosted by the container.
//
//	catalog  stateless item service with views, env entries and rollback
//	cart     stateful shopping cart ended by checkout
//	cache    container-managed and bean-managed singleton caches
//	chain    two singletons where the second depends on the first
//
// Each subpackage exposes a Register function; componentregistry.Register
// registers all of them.
package beans
