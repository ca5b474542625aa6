package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/farmloop-backend/api/controllers"
	"github.com/angelmondragon/farmloop-backend/api/middleware"
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
	"github.com/angelmondragon/farmloop-backend/pkg/enums"
	"github.com/angelmondragon/farmloop-backend/pkg/logger"
	"github.com/angelmondragon/farmloop-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/farmloop-backend/pkg/redis"
)

// Store is the Redis surface the HTTP layer needs for idempotency and auth throttling.
type Store interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// Dependencies carries everything the router wires into controllers.
// A nil Store disables idempotency and auth throttling.
type Dependencies struct {
	Store    Store
	Pingers  map[string]controllers.Pinger
	Registry *prometheus.Registry

	Auth          auth.Service
	Register      auth.RegisterService
	Users         users.Service
	Products      products.Service
	Cart          cart.Service
	Orders        orders.Service
	Points        points.Service
	Waste         waste.Service
	Notifications notifications.Service
	Leaderboard   leaderboard.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	var httpMetrics *metrics.HTTPMetrics
	if deps.Registry != nil {
		httpMetrics = metrics.NewHTTPMetrics(deps.Registry)
	}

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var limiter interface {
		IncrWithTTL(context.Context, string, time.Duration) (int64, error)
		RateLimitKey(scope string) string
	}
	var idempotency pkgredis.IdempotencyStore
	if deps.Store != nil {
		limiter = deps.Store
		idempotency = deps.Store
	}

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

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})
	if deps.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	leaderboardLimit := cfg.Leaderboard.DefaultLimit
	if leaderboardLimit <= 0 {
		leaderboardLimit = 10
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(loginPolicy, limiter, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
			r.With(
				middleware.AuthRateLimit(registerPolicy, limiter, logg),
				middleware.Idempotency(idempotency, logg),
			).Post("/register", controllers.AuthRegister(deps.Register, deps.Auth, logg))
		})

		// public catalogue and impact views
		r.Get("/products", controllers.ListProducts(deps.Products, logg))
		r.Get("/products/categories", controllers.ListProductCategories(deps.Products, logg))
		r.Get("/products/{productId}", controllers.GetProduct(deps.Products, logg))
		r.Get("/waste/categories", controllers.WasteCategories(deps.Waste, logg))
		r.Get("/leaderboard", controllers.LeaderboardTop(deps.Leaderboard, leaderboardLimit, logg))
		r.Get("/leaderboard/weekly", controllers.LeaderboardWeekly(deps.Leaderboard, leaderboardLimit, logg))
		r.Get("/leaderboard/impact", controllers.LeaderboardImpact(deps.Leaderboard, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(idempotency, logg))

			r.Get("/me", controllers.Me(deps.Users, logg))
			r.Patch("/me", controllers.UpdateMe(deps.Users, logg))
			r.Get("/leaderboard/me", controllers.LeaderboardMe(deps.Leaderboard, logg))
			r.Get("/deliveries/track/{trackingNumber}", controllers.TrackDelivery(deps.Orders, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserTypeFarmer, enums.UserTypeAdmin))
				r.Post("/products", controllers.CreateProduct(deps.Products, logg))
				r.Patch("/products/{productId}", controllers.UpdateProduct(deps.Products, logg))
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartList(deps.Cart, logg))
				r.Post("/", controllers.CartAdd(deps.Cart, logg))
				r.Delete("/", controllers.CartClear(deps.Cart, logg))
				r.Patch("/items/{itemId}", controllers.CartUpdateItem(deps.Cart, logg))
				r.Delete("/items/{itemId}", controllers.CartRemoveItem(deps.Cart, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.OrderList(deps.Orders, logg))
				r.Post("/", controllers.OrderCreate(deps.Orders, logg))
				r.Post("/checkout", controllers.OrderCheckout(deps.Orders, logg))
				r.Get("/stats", controllers.OrderStatistics(deps.Orders, logg))
				r.Get("/{orderId}", controllers.OrderDetail(deps.Orders, logg))
				r.Post("/{orderId}/apply-points", controllers.OrderApplyPoints(deps.Orders, logg))
				r.Post("/{orderId}/verify-payment", controllers.OrderVerifyPayment(deps.Orders, logg))
				r.Post("/{orderId}/retry-payment", controllers.OrderRetryPayment(deps.Orders, logg))

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(logg, enums.UserTypeAdmin))
					r.Patch("/{orderId}/status", controllers.AdminOrderStatus(deps.Orders, logg))
					r.Post("/{orderId}/delivery", controllers.AdminCreateDelivery(deps.Orders, logg))
				})
			})

			r.With(middleware.RequireRole(logg, enums.UserTypeAdmin)).
				Patch("/deliveries/{deliveryId}/status", controllers.AdminDeliveryStatus(deps.Orders, logg))

			r.Route("/points", func(r chi.Router) {
				r.Get("/", controllers.PointsBalance(deps.Points, logg))
				r.Get("/history", controllers.PointsHistory(deps.Points, logg))
			})

			r.Route("/waste", func(r chi.Router) {
				r.Get("/reports", controllers.WasteList(deps.Waste, logg))
				r.Post("/reports", controllers.WasteSubmit(deps.Waste, logg))
				r.Get("/reports/{reportId}", controllers.WasteDetail(deps.Waste, logg))
				r.Get("/stats", controllers.WasteStats(deps.Waste, logg))

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(logg, enums.UserTypeAdmin))
					r.Post("/reports/{reportId}/approve", controllers.WasteApprove(deps.Waste, logg))
					r.Post("/reports/{reportId}/reject", controllers.WasteReject(deps.Waste, logg))
					r.Post("/reports/{reportId}/collection", controllers.WasteScheduleCollection(deps.Waste, logg))
					r.Post("/collections/{collectionId}/collected", controllers.WasteMarkCollected(deps.Waste, logg))
				})
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.NotificationList(deps.Notifications, logg))
				r.Get("/unread-count", controllers.NotificationUnreadCount(deps.Notifications, logg))
				r.Post("/read-all", controllers.NotificationMarkAllRead(deps.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.NotificationMarkRead(deps.Notifications, logg))
				r.Get("/preferences", controllers.NotificationPreferences(deps.Notifications, logg))
				r.Put("/preferences", controllers.NotificationPreferences(deps.Notifications, logg))
			})
		})
	})

	return r
}
