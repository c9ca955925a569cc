// Package redis connects the shared Redis instance used by the checkout
// throttle. Connection setup retries until the server is reachable and a
// health check closure is exposed for the liveness endpoint.
package redis
