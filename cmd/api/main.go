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

	"github.com/successplus/membership-backend/api/controllers"
	webhookcontrollers "github.com/successplus/membership-backend/api/controllers/webhooks"
	"github.com/successplus/membership-backend/api/routes"
	"github.com/successplus/membership-backend/internal/activity"
	"github.com/successplus/membership-backend/internal/entitlements"
	"github.com/successplus/membership-backend/internal/members"
	"github.com/successplus/membership-backend/internal/reconcile"
	"github.com/successplus/membership-backend/internal/subscriptions"
	"github.com/successplus/membership-backend/internal/users"
	"github.com/successplus/membership-backend/internal/webhooks"
	stripewebhook "github.com/successplus/membership-backend/internal/webhooks/stripe"
	"github.com/successplus/membership-backend/pkg/config"
	"github.com/successplus/membership-backend/pkg/db"
	"github.com/successplus/membership-backend/pkg/enums"
	"github.com/successplus/membership-backend/pkg/instance"
	"github.com/successplus/membership-backend/pkg/logger"
	"github.com/successplus/membership-backend/pkg/metrics"
	"github.com/successplus/membership-backend/pkg/migrate"
	"github.com/successplus/membership-backend/pkg/pubsub"
	"github.com/successplus/membership-backend/pkg/redis"
	"github.com/successplus/membership-backend/pkg/stripe"
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
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
	}()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		return err
	}
	closers = append(closers, dbClient.Close)

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	readiness := []controllers.Dependency{{Name: "database", Pinger: dbClient}}

	var pkGuard, stripeGuard webhookcontrollers.DeliveryGuard
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		closers = append(closers, redisClient.Close)
		readiness = append(readiness, controllers.Dependency{Name: "redis", Pinger: redisClient})

		pk, err := webhooks.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL, enums.ProviderPaykickstart.String())
		if err != nil {
			return err
		}
		st, err := webhooks.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL, enums.ProviderStripe.String())
		if err != nil {
			return err
		}
		pkGuard, stripeGuard = pk, st
	} else {
		logg.Warn(bootCtx, "redis not configured; webhook redelivery dedupe relies on database idempotency only")
	}

	var auditPublisher activity.Publisher
	if cfg.PubSub.Enabled() {
		psClient, err := pubsub.NewClient(bootCtx, cfg.PubSub, logg)
		if err != nil {
			return err
		}
		closers = append(closers, psClient.Close)
		readiness = append(readiness, controllers.Dependency{Name: "pubsub", Pinger: psClient})
		if pub := psClient.AuditPublisher(); pub != nil {
			auditPublisher = pub
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	webhookMetrics := metrics.NewWebhookMetrics(registry)
	entitlementMetrics := metrics.NewEntitlementMetrics(registry)

	conn := dbClient.DB()
	usersRepo := users.NewRepository(conn)
	membersRepo := members.NewRepository(conn)
	subsRepo := subscriptions.NewRepository(conn)
	activityRepo := activity.NewRepository(conn)

	resolver, err := subscriptions.NewResolver(subscriptions.ResolverParams{
		Users:         usersRepo,
		Members:       membersRepo,
		Subscriptions: subsRepo,
		Logger:        logg,
	})
	if err != nil {
		return err
	}
	evaluator, err := entitlements.NewEvaluator(entitlements.EvaluatorParams{
		Resolver: resolver,
		Metrics:  entitlementMetrics,
		Logger:   logg,
	})
	if err != nil {
		return err
	}
	reconciler, err := reconcile.NewService(reconcile.ServiceParams{
		DB:            dbClient,
		Users:         usersRepo,
		Members:       membersRepo,
		Subscriptions: subsRepo,
		Audit:         activity.NewRecorder(activityRepo, auditPublisher, logg),
		Password:      cfg.Password,
		Logger:        logg,
	})
	if err != nil {
		return err
	}

	stripeClient, err := stripe.NewClient(bootCtx, cfg.Stripe, cfg.App.IsProd(), logg)
	if err != nil {
		return err
	}

	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled {
		gatherer = registry
	}

	handler := routes.NewRouter(routes.Deps{
		Config:         cfg,
		Logger:         logg,
		Readiness:      readiness,
		Resolver:       resolver,
		Gate:           evaluator,
		Reconciler:     reconciler,
		Activity:       activityRepo,
		Stripe:         stripeClient,
		Translator:     stripewebhook.NewTranslator(stripeClient),
		PKGuard:        pkGuard,
		StripeGuard:    stripeGuard,
		WebhookMetrics: webhookMetrics,
		Gatherer:       gatherer,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(bootCtx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       cfg.App.ReadTimeout,
		ReadHeaderTimeout: cfg.App.ReadTimeout,
		WriteTimeout:      cfg.App.WriteTimeout,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-sigCtx.Done():
	}

	logg.Info(ctx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
