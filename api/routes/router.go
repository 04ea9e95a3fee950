package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/acaifrutal/storefront-backend/api/controllers"
	"github.com/acaifrutal/storefront-backend/api/middleware"
	"github.com/acaifrutal/storefront-backend/internal/cart"
	"github.com/acaifrutal/storefront-backend/internal/catalog"
	"github.com/acaifrutal/storefront-backend/internal/checkout"
	"github.com/acaifrutal/storefront-backend/internal/identity"
	"github.com/acaifrutal/storefront-backend/internal/orders"
	"github.com/acaifrutal/storefront-backend/internal/profile"
	"github.com/acaifrutal/storefront-backend/internal/session"
	"github.com/acaifrutal/storefront-backend/pkg/config"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
	"github.com/acaifrutal/storefront-backend/pkg/metrics"
	"github.com/acaifrutal/storefront-backend/pkg/redis"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Redis    *redis.Client
	Registry *prometheus.Registry
	Metrics  *metrics.StorefrontMetrics
	// Ready lists the dependencies probed by /health/ready.
	Ready map[string]controllers.Pinger

	Identity  identity.Service
	State     *session.State
	Catalog   catalog.Service
	Cart      cart.Service
	Profiles  profile.Store
	Orders    orders.Service
	Drafts    *checkout.DraftStore
	Sequencer *checkout.Sequencer
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger
	pix := d.Sequencer.Pix()

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)
	anonymousPolicy := middleware.NewAuthRateLimitPolicy(
		"anonymous",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		0,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Ready))
	})
	if d.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(anonymousPolicy, d.Redis, logg)).Post("/anonymous", controllers.AuthAnonymous(d.Identity, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, d.Redis, logg)).Post("/register", controllers.AuthRegister(d.Identity, d.State, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, d.Redis, logg)).Post("/login", controllers.AuthLogin(d.Identity, d.State, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(d.Identity, logg))
			r.Get("/me", controllers.AuthMe(logg))
			r.With(middleware.RequireAuthenticated(logg)).Post("/logout", controllers.AuthLogout(d.Identity, logg))
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(d.Identity, logg))
		r.Use(middleware.RateLimit(d.Redis, cfg.AuthRateLimit.APIRequestLimit, cfg.AuthRateLimit.APIWindow, logg))
		r.Use(middleware.Idempotency(d.Redis, logg))

		r.Route("/v1/catalog", func(r chi.Router) {
			r.Get("/products", controllers.CatalogProducts(d.Catalog, d.State, logg))
			r.Get("/products/{productId}", controllers.CatalogProduct(d.Catalog, logg))
			r.Get("/toppings", controllers.CatalogToppings(d.Catalog, d.State, logg))
			r.Get("/recommendations", controllers.CatalogRecommendations(d.Catalog, d.Cart, d.State, logg))
		})

		r.Route("/v1/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(d.Cart, logg))
			r.Delete("/", controllers.CartClear(d.Cart, logg))
			r.Post("/items", controllers.CartAddItem(d.Cart, logg))
			r.Patch("/items/{variantKey}", controllers.CartUpdateItem(d.Cart, logg))
			r.Delete("/items/{variantKey}", controllers.CartRemoveItem(d.Cart, logg))
		})

		r.Route("/v1/profile", func(r chi.Router) {
			r.Get("/", controllers.ProfileFetch(d.Profiles, logg))
			r.Put("/", controllers.ProfileSave(d.Profiles, logg))
		})

		r.Route("/v1/checkout", func(r chi.Router) {
			r.Post("/", controllers.CheckoutSubmit(d.Drafts, d.Sequencer, logg))
			r.Post("/draft", controllers.CheckoutDraftStart(d.Drafts, logg))
			r.Get("/draft", controllers.CheckoutDraftFetch(d.Drafts, logg))
			r.Patch("/draft", controllers.CheckoutDraftUpdate(d.Drafts, logg))
			r.Get("/pix", controllers.CheckoutPixStatus(pix, logg))
		})

		r.Route("/v1/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(d.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(d.Orders, logg))
			r.Get("/{orderId}/whatsapp", controllers.OrderWhatsApp(d.Orders, cfg.Store.WhatsAppNumber, logg))
		})

		r.Route("/v1/live", func(r chi.Router) {
			r.Get("/cart", controllers.LiveCart(d.Cart, d.Metrics, logg))
			r.Get("/orders", controllers.LiveOrders(d.Orders, d.Metrics, logg))
			r.Get("/pix", controllers.LivePix(pix, d.Metrics, logg))
		})

		r.Route("/v1/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logg))
			r.Get("/orders", controllers.AdminOrders(d.Orders, logg))
			r.Patch("/orders/{orderId}/status", controllers.AdminOrderStatus(d.Orders, logg))
			r.Put("/products/{productId}", controllers.AdminUpsertProduct(d.Catalog, logg))
			r.Put("/toppings/{toppingId}", controllers.AdminUpsertTopping(d.Catalog, logg))
		})
	})

	return r
}
