package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/farmloop-backend/internal/cron"
	"github.com/angelmondragon/farmloop-backend/internal/notifications"
	"github.com/angelmondragon/farmloop-backend/internal/points"
	"github.com/angelmondragon/farmloop-backend/internal/users"
	"github.com/angelmondragon/farmloop-backend/internal/waste"
	"github.com/angelmondragon/farmloop-backend/pkg/config"
	"github.com/angelmondragon/farmloop-backend/pkg/db"
	"github.com/angelmondragon/farmloop-backend/pkg/logger"
	"github.com/angelmondragon/farmloop-backend/pkg/metrics"
	"github.com/angelmondragon/farmloop-backend/pkg/migrate"
	"github.com/angelmondragon/farmloop-backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run every job a single time and exit")
	only := flag.String("jobs", "", "comma separated job names to run (default all)")
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

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
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

	registry, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}
	if *only != "" {
		if registry, err = registry.Only(strings.Split(*only, ",")...); err != nil {
			logg.Error(context.Background(), "invalid -jobs selection", err)
			os.Exit(1)
		}
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+envName(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"once":        *once,
	})
	logg.Info(ctx, "starting cron worker")

	if *once {
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	conn := dbClient.DB()

	notificationsService, err := notifications.NewService(notifications.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	pointsService, err := points.NewService(points.NewRepository(conn), dbClient, nil)
	if err != nil {
		return nil, err
	}
	wasteService, err := waste.NewService(waste.ServiceParams{
		Repo:   waste.NewRepository(conn),
		Tx:     dbClient,
		Users:  users.NewRepository(conn),
		Points: pointsService,
		Logger: logg,
	})
	if err != nil {
		return nil, err
	}

	cleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:        logg,
		Notifications: notificationsService,
		Retention:     cfg.Cron.NotificationRetention,
	})
	if err != nil {
		return nil, err
	}
	impact, err := cron.NewImpactRecalculationJob(cron.ImpactRecalculationJobParams{
		Logger:   logg,
		Waste:    wasteService,
		Lookback: cfg.Cron.ImpactLookback,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(impact, cleanup), nil
}

func envName(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
