package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sproutbook/billing/handler"
	"github.com/sproutbook/billing/pkg/billing"
	"github.com/sproutbook/billing/pkg/config"
	"github.com/sproutbook/billing/pkg/httpserver"
	"github.com/sproutbook/billing/pkg/logger"
	"github.com/sproutbook/billing/pkg/notifier"
	"github.com/sproutbook/billing/pkg/payment"
	"github.com/sproutbook/billing/pkg/pg"
	"github.com/sproutbook/billing/pkg/reconcile"
	"github.com/sproutbook/billing/pkg/redis"
	"github.com/sproutbook/billing/pkg/throttle"
	"github.com/sproutbook/billing/pkg/webhook"
)

type appConfig struct {
	Log     logger.Config
	Server  httpserver.Config
	PG      pg.Config
	Redis   redis.Config
	Paddle  payment.PaddleConfig
	Mailer  notifier.Config
	Sweep   reconcile.Config
	Limiter throttle.Config
	API     handler.Config

	WebhookSecret  string `env:"PAYMENT_WEBHOOK_SECRET"`
	TierCatalog    string `env:"TIER_CATALOG_PATH" envDefault:"tiers.yaml"`
	NotifierDriver string `env:"NOTIFIER_DRIVER" envDefault:"log"`
	ThrottleDriver string `env:"THROTTLE_DRIVER" envDefault:"memory"`
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.NewFromConfig(cfg.Log, "billingd")
	logger.SetAsDefault(log)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("billingd exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	catalog, err := billing.LoadCatalog(cfg.TierCatalog)
	if err != nil {
		return err
	}

	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.PG, log); err != nil {
		return err
	}
	store := billing.NewPostgresStore(pool)

	healthChecks := []func(context.Context) error{pg.Healthcheck(pool)}

	var throttleStore throttle.Store
	if cfg.ThrottleDriver == "redis" {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		throttleStore = throttle.NewRedisStore(client)
		healthChecks = append(healthChecks, redis.Healthcheck(client))
	} else {
		throttleStore = throttle.NewMemoryStore()
	}
	limiter, err := throttle.New(throttleStore, cfg.Limiter)
	if err != nil {
		return err
	}

	gateway, err := payment.NewPaddleGateway(cfg.Paddle)
	if err != nil {
		return err
	}

	var mail notifier.Notifier
	if cfg.NotifierDriver == "postmark" {
		mail, err = notifier.NewPostmarkNotifier(cfg.Mailer)
		if err != nil {
			return err
		}
	} else {
		mail = notifier.NewLogNotifier(log)
	}

	ingestor, err := webhook.NewIngestor(cfg.WebhookSecret, store, catalog.TrialDays,
		webhook.WithLogger(log))
	if err != nil {
		return err
	}

	reconciler, err := reconcile.New(store, gateway, mail, catalog, cfg.Sweep,
		reconcile.WithLogger(log))
	if err != nil {
		return err
	}

	api := handler.New(store, gateway, ingestor, reconciler, limiter, catalog, cfg.API,
		handler.WithLogger(log),
		handler.WithHealthHandler(httpserver.HealthCheckHandler(log, healthChecks...)))

	srv := httpserver.New(cfg.Server, log)
	return srv.Run(ctx, api.Router())
}
