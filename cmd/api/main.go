package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/mapfinderz-backend/api/controllers"
	"github.com/angelmondragon/mapfinderz-backend/api/routes"
	"github.com/angelmondragon/mapfinderz-backend/internal/auth"
	"github.com/angelmondragon/mapfinderz-backend/internal/catalog"
	"github.com/angelmondragon/mapfinderz-backend/internal/orders"
	"github.com/angelmondragon/mapfinderz-backend/internal/pricing"
	"github.com/angelmondragon/mapfinderz-backend/internal/quota"
	"github.com/angelmondragon/mapfinderz-backend/internal/users"
	"github.com/angelmondragon/mapfinderz-backend/pkg/config"
	"github.com/angelmondragon/mapfinderz-backend/pkg/db"
	"github.com/angelmondragon/mapfinderz-backend/pkg/enums"
	"github.com/angelmondragon/mapfinderz-backend/pkg/logger"
	"github.com/angelmondragon/mapfinderz-backend/pkg/metrics"
	"github.com/angelmondragon/mapfinderz-backend/pkg/migrate"
	"github.com/angelmondragon/mapfinderz-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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
		Format:      cfg.App.LogFormat,
	})

	if err := serve(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func serve(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return err
	}

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	if err != nil {
		return err
	}

	defaultKind, err := enums.ParseTierKind(cfg.Pricing.DefaultTierKind)
	if err != nil {
		defaultKind = enums.TierKindRegular
	}
	authority, err := quota.NewAuthority(quota.AuthorityParams{
		Counter:         redisClient,
		Entitlements:    quota.NewEntitlementRepository(dbClient.DB()),
		Config:          cfg.Quota,
		DefaultTierKind: defaultKind,
		Logger:          logg,
		Metrics:         checkoutMetrics,
	})
	if err != nil {
		return err
	}

	resolver, err := pricing.NewResolver(catalogService, catalogService, cfg.Pricing, logg, checkoutMetrics)
	if err != nil {
		return err
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:     orders.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Buyers:   authService,
		Quota:    authority,
		Pricer:   resolver,
		Features: catalogService,
		Payment:  cfg.Payment,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	handler := routes.NewRouter(routes.Dependencies{
		Config:      cfg,
		Logger:      logg,
		Gatherer:    registry,
		HTTPMetrics: metrics.NewHTTPMetrics(registry),
		Ready: map[string]controllers.Pinger{
			"db":    dbClient,
			"redis": redisClient,
		},
		Store:   redisClient,
		Auth:    authService,
		Catalog: catalogService,
		Quoter:  resolver,
		Quota:   authority,
		Orders:  ordersService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
