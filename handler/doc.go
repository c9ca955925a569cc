// Package handler exposes the billing engine over HTTP: the payment
// provider's webhook endpoint, the cron-triggered reconciliation endpoint,
// checkout initiation, the admin lifetime override and the capability
// lookup used by the product UI.
//
// Handlers stay thin. All state changes go through the billing state
// machine inside Store.Update; the handlers only translate transport
// concerns (decoding, auth, status codes) and classify sentinel errors
// into the response taxonomy.
package handler
