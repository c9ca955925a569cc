package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

// Config holds Postmark delivery configuration.
type Config struct {
	ServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	AccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail  string `env:"BILLING_SENDER_EMAIL" envDefault:"billing@sproutbook.app"`
}

// PostmarkNotifier sends notifications through Postmark's templated email
// API. Template IDs map to Postmark template aliases one-to-one.
type PostmarkNotifier struct {
	client *postmark.Client
	config Config
}

// NewPostmarkNotifier creates a Postmark-backed notifier. Both tokens are
// required - misconfiguration fails at startup, not on the first send.
func NewPostmarkNotifier(cfg Config) (*PostmarkNotifier, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: ServerToken is required", ErrInvalidConfig)
	}
	if cfg.AccountToken == "" {
		return nil, fmt.Errorf("%w: AccountToken is required", ErrInvalidConfig)
	}
	if cfg.SenderEmail == "" {
		return nil, fmt.Errorf("%w: SenderEmail is required", ErrInvalidConfig)
	}

	return &PostmarkNotifier{
		client: postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		config: cfg,
	}, nil
}

// Send implements Notifier.
func (p *PostmarkNotifier) Send(ctx context.Context, n Notification) error {
	if n.Recipient == "" {
		return ErrMissingRecipient
	}
	if n.Template == "" {
		return ErrMissingTemplate
	}

	model := make(map[string]any, len(n.Model))
	for k, v := range n.Model {
		model[k] = v
	}

	resp, err := p.client.SendTemplatedEmail(ctx, postmark.TemplatedEmail{
		TemplateAlias: string(n.Template),
		TemplateModel: model,
		From:          p.config.SenderEmail,
		To:            n.Recipient,
		Tag:           "billing",
		TrackOpens:    true,
	})
	if err != nil {
		return errors.Join(ErrFailedToSend, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrFailedToSend,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}
