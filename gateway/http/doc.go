// Package http serves the container over HTTP.
//
// Routes:
//
//	GET  /health                                       aggregated container health
//	GET  /metrics                                      Prometheus exposition
//	GET  /v1/directory                                 every bound directory name
//	POST /v1/components/{component}/sessions           create a session
//	POST /v1/components/{component}/invoke/{operation} invoke by component name
//	GET  /v1/sessions/{key}                            session status
//	GET  /v1/sessions/{key}/state                      conversational state
//	POST /v1/lookup                                    resolve a name and call through its view
//
// Every response is a gateway.Response encoded as JSON. Each request gets an
// X-Request-ID (propagated when the client sends one) and is rate limited per
// remote address when http.rate_limit is set.
package http
