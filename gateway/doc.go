// Package gateway exposes the container to remote clients.
//
// Both transports speak the same request and response envelopes:
//
//	┌─────────────────┐   POST /v1/components/ShoppingCart/invoke/addItem
//	│  HTTP client    │──────────────────────────────┐
//	└─────────────────┘                              ↓
//	┌─────────────────┐   beancontainer.rpc   ┌──────────────┐   ┌───────────┐
//	│  NATS client    │──────────────────────→│   Dispatch   │──→│ Container │
//	└─────────────────┘   (request/reply)     └──────────────┘   └───────────┘
//
// Dispatch turns a Request into a container call and the result or error into
// a Response. Errors carry a stable code such as "no_such_session" plus the
// error class, and HTTPStatus maps them to status codes. Internal detail never
// reaches the client: only the sentinel's own message is returned.
//
// Transports:
//
//   - HTTP: chi router with rate limiting, /health and /metrics (gateway/http/)
//   - NATS: queue-group request/reply on one subject (gateway/nats/)
package gateway
