package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/acaifrutal/storefront-backend/internal/cron"
	"github.com/acaifrutal/storefront-backend/internal/docstore"
	"github.com/acaifrutal/storefront-backend/internal/orders"
	"github.com/acaifrutal/storefront-backend/pkg/config"
	"github.com/acaifrutal/storefront-backend/pkg/db"
	"github.com/acaifrutal/storefront-backend/pkg/instance"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
	"github.com/acaifrutal/storefront-backend/pkg/mercadopago"
	"github.com/acaifrutal/storefront-backend/pkg/metrics"
	"github.com/acaifrutal/storefront-backend/pkg/migrate"
	"github.com/acaifrutal/storefront-backend/pkg/outbox"
	"github.com/acaifrutal/storefront-backend/pkg/pubsub"
	"github.com/acaifrutal/storefront-backend/pkg/redis"
)

const lockKeyFormat = "acai:cron-worker:lock:%s:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Caller:      cfg.App.LogCaller,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
	})
	ctx = logg.WithScope(ctx, cfg.Store.Scope)

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	// Writes are announced on the change channel so API listeners refresh.
	notifier, err := docstore.NewRedisNotifier(redisClient, cfg.Store.ChangeChannel, logg)
	if err != nil {
		logg.Error(ctx, "failed to create change notifier", err)
		os.Exit(1)
	}
	store, err := docstore.NewSQLStore(dbClient.DB(), notifier, logg)
	if err != nil {
		logg.Error(ctx, "failed to create document store", err)
		os.Exit(1)
	}

	var events orders.EventPublisher
	if cfg.PubSub.Enabled() {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		publisher, err := outbox.NewPublisher(pubsubClient, pubsubClient.OrdersTopic())
		if err != nil {
			logg.Error(ctx, "failed to create order event publisher", err)
			os.Exit(1)
		}
		events = publisher
	}

	orderService, err := orders.NewService(orders.NewRepository(store, cfg.Store.Scope), events, logg)
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	params := cron.PixReconcileJobParams{
		Logger:  logg,
		Orders:  orderService,
		Grace:   cfg.Cron.PixGrace,
		Expiry:  cfg.MercadoPago.PixExpiry,
		Metrics: metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
	}
	if cfg.MercadoPago.AccessToken != "" {
		gateway, err := mercadopago.NewClient(ctx, cfg.MercadoPago, logg)
		if err != nil {
			logg.Error(ctx, "failed to create mercadopago client", err)
			os.Exit(1)
		}
		params.Gateway = gateway
	} else {
		logg.Warn(ctx, "mercadopago access token missing, only expiring stale PIX orders")
	}
	pixJob, err := cron.NewPixReconcileJob(params)
	if err != nil {
		logg.Error(ctx, "failed to create pix reconcile job", err)
		os.Exit(1)
	}

	registry, err := cron.NewRegistry(pixJob)
	if err != nil {
		logg.Error(ctx, "failed to build cron registry", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env, cfg.Store.Scope), 0)
	if err != nil {
		logg.Error(ctx, "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  params.Metrics,
		Interval: cfg.Cron.Interval,
		// Jobs must finish well before another replica could take the lease.
		JobTimeout: lock.TTL() / 2,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env, scope string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env, scope)
}
