// Package httpserver wraps net/http's server with environment-driven
// configuration, signal-aware graceful shutdown and a health endpoint
// handler that doubles as liveness and readiness probe.
package httpserver
