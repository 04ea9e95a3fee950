package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/acaifrutal/storefront-backend/api"
	"github.com/acaifrutal/storefront-backend/api/controllers"
	"github.com/acaifrutal/storefront-backend/api/routes"
	"github.com/acaifrutal/storefront-backend/internal/cart"
	"github.com/acaifrutal/storefront-backend/internal/catalog"
	"github.com/acaifrutal/storefront-backend/internal/checkout"
	"github.com/acaifrutal/storefront-backend/internal/docstore"
	"github.com/acaifrutal/storefront-backend/internal/identity"
	"github.com/acaifrutal/storefront-backend/internal/orders"
	"github.com/acaifrutal/storefront-backend/internal/profile"
	"github.com/acaifrutal/storefront-backend/internal/session"
	authsession "github.com/acaifrutal/storefront-backend/pkg/auth/session"
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

const storeDriverMemory = "memory"

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	err = migrate.MaybeRunDev(ctx, cfg, logg, dbClient)
	requireResource(ctx, logg, "dev migrations", err)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	storefrontMetrics := metrics.NewStorefrontMetrics(registry)

	store, err := newDocumentStore(ctx, cfg, logg, dbClient, redisClient)
	requireResource(ctx, logg, "document store", err)

	sessionManager, err := authsession.NewManager(redisClient)
	requireResource(ctx, logg, "session manager", err)

	stream := identity.NewStream(logg)
	identityService, err := identity.NewService(identity.ServiceParams{
		Accounts:   identity.NewAccountRepository(dbClient.DB()),
		Sessions:   sessionManager,
		Stream:     stream,
		JWT:        cfg.JWT,
		Password:   cfg.Password,
		AdminEmail: cfg.Store.AdminEmail,
		Scope:      cfg.Store.Scope,
		Logger:     logg,
	})
	requireResource(ctx, logg, "identity service", err)

	catalogService, err := catalog.NewService(catalog.NewRepository(store, cfg.Store.Scope), logg)
	requireResource(ctx, logg, "catalog service", err)

	cartRepo := cart.NewRepository(store, cfg.Store.Scope)
	cartService, err := cart.NewService(cartRepo, catalogService, logg)
	requireResource(ctx, logg, "cart service", err)
	reconciler := cart.NewReconciler(cartRepo, logg,
		cart.WithLease(redisClient, 0),
		cart.WithMetrics(storefrontMetrics),
	)

	profileService, err := profile.NewService(store, cfg.Store.Scope)
	requireResource(ctx, logg, "profile service", err)

	ready := map[string]controllers.Pinger{
		"database": dbClient,
		"redis":    redisClient,
	}

	var events orders.EventPublisher
	if cfg.PubSub.Enabled() {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub, logg)
		requireResource(ctx, logg, "pubsub", err)
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		publisher, err := outbox.NewPublisher(pubsubClient, pubsubClient.OrdersTopic())
		requireResource(ctx, logg, "order event publisher", err)
		events = publisher
		ready["pubsub"] = pubsubClient
	} else {
		logg.Info(ctx, "pubsub not configured, order events disabled")
	}

	orderService, err := orders.NewService(orders.NewRepository(store, cfg.Store.Scope), events, logg)
	requireResource(ctx, logg, "orders service", err)

	fee, err := cfg.Store.Fee()
	requireResource(ctx, logg, "delivery fee", err)
	drafts, err := checkout.NewDraftStore(redisClient, cfg.Store.Scope, cfg.Store.DraftTTL, fee, cartService, profileService)
	requireResource(ctx, logg, "draft store", err)

	var gateway checkout.PaymentGateway
	if cfg.MercadoPago.AccessToken != "" {
		mp, err := mercadopago.NewClient(ctx, cfg.MercadoPago, logg)
		requireResource(ctx, logg, "mercadopago client", err)
		gateway = mp
	} else {
		logg.Warn(ctx, "mercadopago access token missing, PIX checkout disabled")
	}

	pix := checkout.NewPixTracker()
	defer pix.Close()
	sequencer, err := checkout.NewSequencer(profileService, orderService, cartService, gateway, logg,
		checkout.WithPixTracker(pix),
		checkout.WithCheckoutMetrics(storefrontMetrics),
		checkout.WithPixExpiry(cfg.MercadoPago.PixExpiry),
	)
	requireResource(ctx, logg, "checkout sequencer", err)

	state, err := session.NewState(reconciler, cfg.Store.Scope, logg)
	requireResource(ctx, logg, "session state", err)
	go state.Run(ctx, stream.Subscribe(ctx), catalogService)

	server := api.NewServer(cfg, routes.NewRouter(routes.Deps{
		Config:    cfg,
		Logger:    logg,
		Redis:     redisClient,
		Registry:  registry,
		Metrics:   storefrontMetrics,
		Ready:     ready,
		Identity:  identityService,
		State:     state,
		Catalog:   catalogService,
		Cart:      cartService,
		Profiles:  profileService,
		Orders:    orderService,
		Drafts:    drafts,
		Sequencer: sequencer,
	}))

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "addr", server.Addr), "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "api server shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), api.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}

// newDocumentStore returns the SQL-backed store with cross-instance change
// notification, or an in-process store when ACAI_STORE_DRIVER=memory.
func newDocumentStore(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (docstore.Store, error) {
	if cfg.Store.Driver == storeDriverMemory {
		logg.Warn(ctx, "using in-memory document store")
		return docstore.NewMemoryStore(), nil
	}
	notifier, err := docstore.NewRedisNotifier(redisClient, cfg.Store.ChangeChannel, logg)
	if err != nil {
		return nil, err
	}
	store, err := docstore.NewSQLStore(dbClient.DB(), notifier, logg)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := notifier.Listen(ctx, store.Changed); err != nil {
			logg.Error(ctx, "docstore change listener stopped", err)
		}
	}()
	return store, nil
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}
