// Package config loads the container configuration.
//
// Configuration is assembled in layers. Built-in defaults come first, then each
// file added with AddLayer (JSON, or YAML for .yaml/.yml files), then
// environment variables prefixed with BEANCONTAINER_. Later layers override
// earlier ones key by key, so a layer only needs the settings it changes.
//
//	loader := config.NewLoader()
//	loader.AddLayer("configs/base.yaml")
//	loader.AddLayer("configs/production.json")
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// With validation enabled the merged document is checked against the embedded
// JSON Schema before decoding, and the decoded Config against Validate.
//
// Durations accept Go syntax ("20s", "1h30m"), a day suffix ("14d") or integer
// nanoseconds.
//
// # Sections
//
//	container   app/module names, sweep interval, tombstone grace, session access mode, pool
//	datastore   memory or kv backend and its bucket
//	nats        connection settings and request/reply subject prefix
//	http        gateway address and rate limit
//	components  per-component idle_timeout and env entries
package config
