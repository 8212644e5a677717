// Package natsclient wraps the NATS connection used by the container.
//
// Two parts of the container talk to NATS: the KV data store backend, which
// keeps records in a JetStream key-value bucket, and the request/reply
// gateway, which answers invocation requests on a subject.
//
// # Connection
//
// Client adds a circuit breaker around connection attempts. After a
// configurable number of consecutive failures (default 5) the circuit opens
// and Connect fails fast with ErrCircuitOpen until the backoff elapses. The
// backoff doubles each time the circuit opens, capped by WithMaxBackoff.
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("beancontainer"),
//	    natsclient.WithLogger(natsclient.NewSlogLogger(logger)),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
// # Request/Reply
//
// Serve registers a queue-group handler so several containers can share one
// subject; Request sends one request and waits for the reply.
//
// # Key-Value
//
// CreateKeyValueBucket gets or creates a bucket; NewKVStore wraps it with
// create-only, compare-and-swap update and prefix listing. Errors are mapped
// to ErrKVKeyNotFound, ErrKVKeyExists and ErrKVRevisionMismatch.
//
// # Testing
//
// NewTestClient starts a NATS server with testcontainers for tests built with
// the integration tag.
package natsclient
