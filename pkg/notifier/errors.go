package notifier

import "errors"

var (
	ErrInvalidConfig    = errors.New("notifier: invalid configuration")
	ErrMissingRecipient = errors.New("notifier: recipient is required")
	ErrMissingTemplate  = errors.New("notifier: template ID is required")
	ErrFailedToSend     = errors.New("notifier: failed to send notification")
)
