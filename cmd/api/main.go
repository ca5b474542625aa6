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

	"github.com/angelmondragon/farmloop-backend/api/controllers"
	"github.com/angelmondragon/farmloop-backend/api/routes"
	"github.com/angelmondragon/farmloop-backend/internal/auth"
	"github.com/angelmondragon/farmloop-backend/internal/cart"
	"github.com/angelmondragon/farmloop-backend/internal/leaderboard"
	"github.com/angelmondragon/farmloop-backend/internal/notifications"
	"github.com/angelmondragon/farmloop-backend/internal/orders"
	"github.com/angelmondragon/farmloop-backend/internal/points"
	"github.com/angelmondragon/farmloop-backend/internal/products"
	"github.com/angelmondragon/farmloop-backend/internal/users"
	"github.com/angelmondragon/farmloop-backend/internal/waste"
	"github.com/angelmondragon/farmloop-backend/pkg/config"
	"github.com/angelmondragon/farmloop-backend/pkg/db"
	"github.com/angelmondragon/farmloop-backend/pkg/logger"
	"github.com/angelmondragon/farmloop-backend/pkg/metrics"
	"github.com/angelmondragon/farmloop-backend/pkg/migrate"
	"github.com/angelmondragon/farmloop-backend/pkg/pubsub"
	"github.com/angelmondragon/farmloop-backend/pkg/razorpay"
	"github.com/angelmondragon/farmloop-backend/pkg/redis"
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

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pingers := map[string]controllers.Pinger{
		"db":    dbClient,
		"redis": redisClient,
	}

	var publisher notifications.Publisher
	if cfg.PubSub.NotificationTopic != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return err
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		publisher, err = notifications.NewPubSubPublisher(pubsubClient.NotificationPublisher())
		if err != nil {
			return err
		}
		pingers["pubsub"] = pubsubClient
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	domainMetrics := metrics.NewDomainMetrics(registry)

	deps, dispatcher, err := buildServices(cfg, logg, dbClient, redisClient, publisher, domainMetrics)
	if err != nil {
		return err
	}
	defer dispatcher.Wait()
	deps.Store = redisClient
	deps.Pingers = pingers
	deps.Registry = registry

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildServices(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	publisher notifications.Publisher,
	domainMetrics *metrics.DomainMetrics,
) (routes.Dependencies, *notifications.Dispatcher, error) {
	conn := dbClient.DB()
	var deps routes.Dependencies

	usersRepo := users.NewRepository(conn)
	productsRepo := products.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	notificationsRepo := notifications.NewRepository(conn)

	authService, err := auth.NewService(auth.ServiceParams{UserRepo: usersRepo, JWTConfig: cfg.JWT, PasswordConfig: cfg.Password})
	if err != nil {
		return deps, nil, err
	}
	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{DB: dbClient, PasswordConfig: cfg.Password})
	if err != nil {
		return deps, nil, err
	}
	usersService, err := users.NewService(usersRepo)
	if err != nil {
		return deps, nil, err
	}
	productsService, err := products.NewService(productsRepo)
	if err != nil {
		return deps, nil, err
	}
	cartService, err := cart.NewService(cartRepo, dbClient, productsRepo)
	if err != nil {
		return deps, nil, err
	}
	pointsService, err := points.NewService(points.NewRepository(conn), dbClient, domainMetrics)
	if err != nil {
		return deps, nil, err
	}
	notificationsService, err := notifications.NewService(notificationsRepo)
	if err != nil {
		return deps, nil, err
	}
	dispatcher, err := notifications.NewDispatcher(notificationsRepo, publisher, logg)
	if err != nil {
		return deps, nil, err
	}

	gateway, err := razorpay.NewClient(cfg.Razorpay, logg)
	if err != nil {
		return deps, nil, err
	}
	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:        orders.NewRepository(conn),
		Tx:          dbClient,
		Products:    productsRepo,
		Cart:        cartRepo,
		Points:      pointsService,
		Gateway:     gateway,
		Notifier:    dispatcher,
		Logger:      logg,
		Metrics:     domainMetrics,
		EarnDivisor: cfg.Points.EarnDivisor,
	})
	if err != nil {
		return deps, nil, err
	}
	wasteService, err := waste.NewService(waste.ServiceParams{
		Repo:     waste.NewRepository(conn),
		Tx:       dbClient,
		Users:    usersRepo,
		Points:   pointsService,
		Notifier: dispatcher,
		Logger:   logg,
		Metrics:  domainMetrics,
	})
	if err != nil {
		return deps, nil, err
	}
	leaderboardService, err := leaderboard.NewService(leaderboard.ServiceParams{
		Repo:     leaderboard.NewRepository(conn),
		Cache:    redisClient,
		CacheTTL: cfg.Leaderboard.CacheTTL,
		Logger:   logg,
	})
	if err != nil {
		return deps, nil, err
	}

	deps = routes.Dependencies{
		Auth:          authService,
		Register:      registerService,
		Users:         usersService,
		Products:      productsService,
		Cart:          cartService,
		Orders:        ordersService,
		Points:        pointsService,
		Waste:         wasteService,
		Notifications: notificationsService,
		Leaderboard:   leaderboardService,
	}
	return deps, dispatcher, nil
}
