// Package throttle provides a fixed-window attempt counter used to cap how
// often a single user can start checkout sessions. Checkout creation hits
// the payment provider's API, so an unthrottled retry loop on the client
// turns into provider traffic; the counter cuts that off per user without
// affecting anyone else.
//
// Two stores are provided: an in-memory one for tests and single-node
// deployments, and a Redis one that shares the window across replicas.
package throttle
