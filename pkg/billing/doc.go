// Package billing holds the subscription state model for Sproutbook paid
// access: the per-user Subscriber record, the explicit status state machine,
// the feature gate consumed by the request layer, and the store contract
// used by the webhook ingestor and the reconciliation sweeps.
//
// # State model
//
// Each user has exactly one Subscriber record keyed by user ID. The record
// moves between statuses only through the transition methods on Subscriber
// (StartTrial, Activate, ExtendRenewal, Expire, ...). Every transition
// checks its precondition against the current record and returns ErrNoChange
// when the target state is already reached, which makes webhook replays and
// overlapping sweep runs converge to the same end state without event-id
// deduplication.
//
// # Concurrency
//
// Store.Update applies a transition as a single atomic read-modify-write of
// one record. A webhook and a sweep racing on the same user serialize on the
// record, and the later writer re-evaluates its precondition against the
// freshest state. Two different users never contend.
//
// # Feature gate
//
// Features is a pure function from a Subscriber and the current time to the
// set of unlocked capabilities. It performs no I/O and is safe to call on
// every request.
package billing
