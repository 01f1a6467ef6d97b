package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/mapfinderz-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/mapfinderz-backend/api/controllers/orders"
	"github.com/angelmondragon/mapfinderz-backend/api/middleware"
	"github.com/angelmondragon/mapfinderz-backend/internal/auth"
	"github.com/angelmondragon/mapfinderz-backend/internal/catalog"
	"github.com/angelmondragon/mapfinderz-backend/internal/orders"
	"github.com/angelmondragon/mapfinderz-backend/pkg/config"
	"github.com/angelmondragon/mapfinderz-backend/pkg/logger"
	"github.com/angelmondragon/mapfinderz-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/mapfinderz-backend/pkg/redis"
)

// Store backs idempotency replay and rate limiting.
type Store interface {
	pkgredis.IdempotencyStore
	IncrByWithTTL(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
}

// QuotaService answers quota checks and tells which tier list a buyer sees.
type QuotaService interface {
	controllers.QuotaChecker
	controllers.TierKindSource
}

// Dependencies bundles everything the HTTP surface is wired to. A nil Store
// disables idempotency replay and rate limiting.
type Dependencies struct {
	Config      *config.Config
	Logger      *logger.Logger
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics
	Ready       map[string]controllers.Pinger
	Store       Store
	Auth        auth.Service
	Catalog     catalog.Service
	Quoter      controllers.Quoter
	Quota       QuotaService
	Orders      orders.Service
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.CORS),
	)

	loginPolicy := middleware.NewRateLimitPolicy(
		"login",
		cfg.RateLimit.LoginWindow,
		cfg.RateLimit.LoginIPLimit,
		cfg.RateLimit.LoginEmailLimit,
	)
	orderPolicy := middleware.NewRateLimitPolicy(
		"orders",
		cfg.RateLimit.OrderWindow,
		cfg.RateLimit.OrderIPLimit,
		cfg.RateLimit.OrderEmailLimit,
	)

	var verifier middleware.BuyerVerifier = deps.Auth

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Ready))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.RateLimit(loginPolicy, deps.Store, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
			r.With(middleware.Auth(cfg.JWT, verifier, logg)).Get("/me", controllers.AuthMe(deps.Auth, logg))
		})

		r.Route("/pricing", func(r chi.Router) {
			r.Get("/tiers", controllers.PackageTiers(deps.Catalog, logg))
			r.Get("/survey", controllers.SurveyPrice(deps.Catalog, logg))
			r.With(middleware.OptionalAuth(cfg.JWT, verifier, logg)).Post("/quote", controllers.Quote(deps.Quoter, deps.Quota, logg))
		})

		r.Get("/extra-features", controllers.ExtraFeatures(deps.Catalog, logg))

		r.With(middleware.Auth(cfg.JWT, verifier, logg)).Post("/quota/validate", controllers.ValidateQuota(deps.Quota, logg))

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.Auth(cfg.JWT, verifier, logg)).Get("/", ordercontrollers.List(deps.Orders, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.OptionalAuth(cfg.JWT, verifier, logg))
				r.Use(middleware.RateLimit(orderPolicy, deps.Store, logg))
				r.Use(middleware.Idempotency(deps.Store, logg))
				r.Post("/free", ordercontrollers.Free(deps.Orders, logg))
				r.Post("/paid", ordercontrollers.Paid(deps.Orders, logg))
			})
		})
	})

	return r
}
