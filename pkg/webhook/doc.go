// Package webhook ingests payment-provider events: it verifies the
// provider's HMAC signature over the raw request body, parses the event,
// and applies the matching subscription transition through the billing
// store.
//
// Delivery from the provider is at-least-once, so every handler is written
// to converge: replaying the same event produces the same end state because
// each transition is a no-op once the target state is reached. There is no
// event-id deduplication; if a future event type ever needs a
// non-idempotent side effect (a counter, an email), a dedup layer must be
// added first.
//
// Notification emails are never sent from this path - provider retries
// would duplicate them. The reconciliation sweeps own all notifications.
package webhook
