package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sproutbook/billing/pkg/billing"
	"github.com/sproutbook/billing/pkg/payment"
	"github.com/sproutbook/billing/pkg/reconcile"
	"github.com/sproutbook/billing/pkg/throttle"
	"github.com/sproutbook/billing/pkg/webhook"
)

// Config holds handler-level settings loaded from the environment.
type Config struct {
	// ReconcileSecret authenticates the cron trigger. An empty value
	// disables the endpoint entirely (fail closed).
	ReconcileSecret string `env:"RECONCILE_SHARED_SECRET"`

	CheckoutSuccessURL string `env:"CHECKOUT_SUCCESS_URL" envDefault:"https://sproutbook.app/billing/success"`
	CheckoutCancelURL  string `env:"CHECKOUT_CANCEL_URL" envDefault:"https://sproutbook.app/billing/cancelled"`
}

// Ingestor handles a raw webhook delivery.
type Ingestor interface {
	Handle(ctx context.Context, body []byte, signature string) (webhook.Outcome, error)
}

// Runner executes one reconciliation pass.
type Runner interface {
	Run(ctx context.Context) (*reconcile.Report, error)
}

// Handler wires the billing engine's HTTP surface.
type Handler struct {
	store      billing.Store
	gateway    payment.Gateway
	ingestor   Ingestor
	reconciler Runner
	limiter    *throttle.Limiter
	catalog    *billing.Catalog
	cfg        Config
	log        *slog.Logger
	health     http.HandlerFunc
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithHealthHandler sets the /healthz handler, typically one that pings
// the backing stores.
func WithHealthHandler(fn http.HandlerFunc) Option {
	return func(h *Handler) {
		if fn != nil {
			h.health = fn
		}
	}
}

// New creates the handler set.
func New(store billing.Store, gateway payment.Gateway, ingestor Ingestor, reconciler Runner, limiter *throttle.Limiter, catalog *billing.Catalog, cfg Config, opts ...Option) *Handler {
	h := &Handler{
		store:      store,
		gateway:    gateway,
		ingestor:   ingestor,
		reconciler: reconciler,
		limiter:    limiter,
		catalog:    catalog,
		cfg:        cfg,
		log:        slog.Default(),
	}
	h.health = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ALIVE"))
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router builds the chi route tree.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)

	r.Post("/webhooks/payment", h.handleWebhook)
	r.Post("/internal/reconcile", h.handleReconcile)

	r.Route("/billing", func(r chi.Router) {
		r.Post("/checkout", h.handleCheckout)
		r.Get("/features", h.handleFeatures)
	})

	r.Route("/admin/lifetime", func(r chi.Router) {
		r.Post("/grant", h.handleGrantLifetime)
		r.Post("/revoke", h.handleRevokeLifetime)
	})

	return r
}
