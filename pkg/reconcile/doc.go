// Package reconcile implements the scheduled lifecycle sweeps that keep
// subscriber records aligned with wall-clock time: converting ended trials
// into paid subscriptions, renewing expired paid periods, and sending
// renewal reminders ahead of the next charge.
//
// A run is triggered externally (cron hitting the internal HTTP endpoint)
// and is safe to repeat: every mutation goes through a state-machine
// transition inside Store.Update, so a record that was already processed
// by a previous run, or concurrently by a webhook, collapses to a no-op.
// Charges against stored instruments are never executed while holding the
// record lock; each attempt carries a fresh idempotency key generated after
// re-reading the record, and the post-charge transition re-checks the
// record's status so a charge that raced with a webhook never double-applies.
//
// Failures are isolated per subscriber. One declined card, one provider
// timeout or one unreachable mailbox is recorded in the run report and the
// sweep moves on to the next record.
package reconcile
