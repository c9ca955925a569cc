// Package notifier is the transactional-email capability of the billing
// engine. Messages are addressed by template ID and recipient; rendering
// happens on the delivery provider's side, so the engine carries no HTML.
package notifier

import "context"

// TemplateID identifies a provider-side email template.
type TemplateID string

const (
	TemplateTrialConverted   TemplateID = "billing-trial-converted"
	TemplateTrialExpired     TemplateID = "billing-trial-expired"
	TemplateRenewalSucceeded TemplateID = "billing-renewal-succeeded"
	TemplateRenewalFailed    TemplateID = "billing-renewal-failed"
	TemplateRenewalReminder  TemplateID = "billing-renewal-reminder"
)

// Notification is a single transactional email to send.
type Notification struct {
	Recipient string            // email address
	Template  TemplateID
	Model     map[string]string // template variables (tier, end date, ...)
}

// Notifier delivers transactional notifications. Implementations must be
// safe for concurrent use - the reconciliation sweeps call Send from a
// worker pool.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}
