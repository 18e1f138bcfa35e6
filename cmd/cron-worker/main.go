package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/successplus/membership-backend/internal/activity"
	"github.com/successplus/membership-backend/internal/cron"
	"github.com/successplus/membership-backend/internal/members"
	"github.com/successplus/membership-backend/internal/reconcile"
	"github.com/successplus/membership-backend/internal/subscriptions"
	"github.com/successplus/membership-backend/internal/users"
	"github.com/successplus/membership-backend/pkg/config"
	"github.com/successplus/membership-backend/pkg/db"
	"github.com/successplus/membership-backend/pkg/instance"
	"github.com/successplus/membership-backend/pkg/logger"
	"github.com/successplus/membership-backend/pkg/metrics"
	"github.com/successplus/membership-backend/pkg/migrate"
	"github.com/successplus/membership-backend/pkg/redis"
)

const lockKeyFormat = "sp:cron-worker:lock:%s"

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

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
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	var lock cron.Lock = &cron.LocalLock{}
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		redisLock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
		if err != nil {
			logg.Error(context.Background(), "failed to create cron lock", err)
			os.Exit(1)
		}
		lock = redisLock
	} else {
		logg.Warn(context.Background(), "redis not configured; cron lock is process-local")
	}

	conn := dbClient.DB()
	subsRepo := subscriptions.NewRepository(conn)
	reconciler, err := reconcile.NewService(reconcile.ServiceParams{
		DB:            dbClient,
		Users:         users.NewRepository(conn),
		Members:       members.NewRepository(conn),
		Subscriptions: subsRepo,
		Audit:         activity.NewRecorder(activity.NewRepository(conn), nil, logg),
		Password:      cfg.Password,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile service", err)
		os.Exit(1)
	}

	periodEnd, err := cron.NewPeriodEndJob(cron.PeriodEndJobParams{
		Logger:        logg,
		Subscriptions: subsRepo,
		Reconciler:    reconciler,
		Grace:         cfg.Cron.PeriodEndGrace,
		Limit:         cfg.Cron.BatchLimit,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create period end job", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(periodEnd),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.ID(),
		"interval": cfg.Cron.Interval.String(),
	})

	if *once {
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
