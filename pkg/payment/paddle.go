package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v3"
	paddleerr "github.com/PaddleHQ/paddle-go-sdk/v3/pkg/paddleerr"
)

// PaddleConfig holds configuration for the Paddle payment gateway.
type PaddleConfig struct {
	APIKey      string `env:"PADDLE_API_KEY,required"`
	Environment string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddleGateway implements Gateway on the official Paddle SDK. Charges
// against stored instruments are automatic-collection transactions; the
// caller's idempotency key travels in transaction custom data so replays
// can be traced on the provider side.
type PaddleGateway struct {
	client *paddle.SDK
	config PaddleConfig
}

// NewPaddleGateway creates a gateway for the configured Paddle environment.
func NewPaddleGateway(cfg PaddleConfig) (*PaddleGateway, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	var client *paddle.SDK
	var err error

	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidEnvironment, cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("create paddle client: %w", err)
	}

	return &PaddleGateway{client: client, config: cfg}, nil
}

// CreateCustomer registers the user with Paddle.
func (g *PaddleGateway) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	customer, err := g.client.CustomersClient.CreateCustomer(ctx, &paddle.CreateCustomerRequest{
		Email: email,
		CustomData: paddle.CustomData{
			"user_id": userID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("create paddle customer: %w", err)
	}
	return customer.ID, nil
}

// CreateCheckout creates a hosted checkout session. The internal user ID is
// round-tripped through transaction custom data so the webhook can attribute
// the completed order.
func (g *PaddleGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.PriceRef == "" {
		return nil, ErrMissingPrice
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.PriceRef,
		Quantity: 1,
	})

	transactionReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			"user_id": req.UserID,
			"kind":    string(req.Kind),
		},
	}
	if req.Email != "" {
		transactionReq.CustomData["email"] = req.Email
	}
	if req.SuccessURL != "" {
		transactionReq.Checkout = &paddle.TransactionCheckout{
			URL: paddle.PtrTo(req.SuccessURL),
		}
	}

	transaction, err := g.client.TransactionsClient.CreateTransaction(ctx, transactionReq)
	if err != nil {
		return nil, fmt.Errorf("create paddle checkout transaction: %w", err)
	}

	if transaction.Checkout == nil || transaction.Checkout.URL == nil {
		return nil, ErrNoCheckoutURL
	}

	return &CheckoutSession{
		URL:       *transaction.Checkout.URL,
		SessionID: transaction.ID,
		// Paddle checkout links expire after 24 hours
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}, nil
}

// ChargeStoredInstrument charges the customer's stored payment method by
// creating an automatically collected transaction. The provider refusing
// the charge surfaces as ErrChargeDeclined; transport failures are returned
// as-is for the caller to classify.
func (g *PaddleGateway) ChargeStoredInstrument(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if err := validateChargeRequest(req); err != nil {
		return nil, err
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.PriceRef,
		Quantity: 1,
	})

	transaction, err := g.client.TransactionsClient.CreateTransaction(ctx, &paddle.CreateTransactionRequest{
		Items:          []paddle.CreateTransactionItems{*item},
		CustomerID:     paddle.PtrTo(req.CustomerRef),
		CollectionMode: paddle.PtrTo(paddle.CollectionModeAutomatic),
		CustomData: paddle.CustomData{
			"idempotency_key": req.IdempotencyKey,
			"description":     req.Description,
		},
	})
	if err != nil {
		var apiErr *paddleerr.Error
		if errors.As(err, &apiErr) && strings.HasPrefix(apiErr.Code, "transaction_payment") {
			return nil, fmt.Errorf("%w: %s", ErrChargeDeclined, apiErr.Detail)
		}
		return nil, fmt.Errorf("create paddle charge transaction: %w", err)
	}

	switch transaction.Status {
	case paddle.TransactionStatusCompleted, paddle.TransactionStatusPaid:
	default:
		return nil, fmt.Errorf("%w: transaction status %s", ErrChargeDeclined, transaction.Status)
	}

	return &ChargeResult{
		TransactionRef: transaction.ID,
		Amount:         req.Amount,
		ChargedAt:      time.Now().UTC(),
	}, nil
}

func validateChargeRequest(req ChargeRequest) error {
	if req.IdempotencyKey == "" {
		return ErrMissingIdempotencyKey
	}
	if req.CustomerRef == "" {
		return ErrMissingCustomer
	}
	if req.InstrumentRef == "" {
		return ErrMissingInstrument
	}
	if req.Amount <= 0 {
		return ErrInvalidAmount
	}
	if req.PriceRef == "" {
		return ErrMissingPrice
	}
	return nil
}
