package main

import (
	"database/sql"
	"net/http"

	"livraison-be/internal/config"
	"livraison-be/internal/db"
	"livraison-be/internal/graph"
	"livraison-be/internal/logger"
	"livraison-be/internal/metrics"
	"livraison-be/internal/middleware"
	"livraison-be/internal/notify"
	"livraison-be/internal/order"
	"livraison-be/internal/payment"
	"livraison-be/internal/payment/webhook"
	"livraison-be/internal/restaurant"
	"livraison-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	initDBFunc      = db.InitDB
	startServerFunc = http.ListenAndServe
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := initDBFunc(cfg)
	defer database.Close()

	router := newServer(cfg, database)

	addr := ":" + cfg.AppPort
	logger.L().Info("server listening", zap.String("addr", addr), zap.String("env", cfg.AppEnv))
	return startServerFunc(addr, router)
}

type routes struct {
	Order      *order.Handler
	Restaurant *restaurant.Handler
	Webhook    http.HandlerFunc
	GraphQL    http.Handler
}

func newServer(cfg *config.Config, database *sql.DB) http.Handler {
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
	}

	restaurantRepo := restaurant.NewCachedRepository(restaurant.NewRepository(database), rdb)
	restaurantSvc := restaurant.NewService(restaurantRepo)

	paymentRepo := payment.NewRepository(database)
	gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.IsDevelopment())

	notifiers := []notify.Notifier{notify.NewLogNotifier()}
	if cfg.NotifyWebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.NotifyWebhookURL))
	}

	orderRepo := order.NewRepository(database)
	orderSvc := order.NewService(orderRepo, paymentRepo, gateway, notify.Multi(notifiers...))

	schema, err := graph.NewSchema(&graph.Resolver{
		OrderSvc:      orderSvc,
		RestaurantSvc: restaurantSvc,
	})
	if err != nil {
		logger.L().Fatal("invalid GraphQL schema", zap.Error(err))
	}

	return setupRouter(cfg, routes{
		Order:      order.NewHandler(orderSvc),
		Restaurant: restaurant.NewHandler(restaurantSvc),
		Webhook:    webhook.NewWebhookHandler(orderSvc, gateway, paymentRepo).PaymentWebhookHandler,
		GraphQL:    graph.NewHandler(schema),
	})
}

func setupRouter(cfg *config.Config, h routes) http.Handler {
	r := chi.NewRouter()

	r.Use(logger.RequestIDMiddleware)
	r.Use(middleware.LoggingMiddleware)
	r.Use(metrics.Middleware)
	r.Use(middleware.CORS(cfg.AllowedOrigin))
	r.Use(middleware.AuthMiddleware([]byte(cfg.JWTSecret)))
	r.Use(middleware.RateLimitMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Post("/webhook/stripe", h.Webhook)
	r.Handle("/query", h.GraphQL)

	r.Route("/api", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.RequireRole(utils.RoleAdmin)).Post("/refund", h.Order.Refund)

			r.Get("/{id}", h.Order.GetOrder)
			r.Post("/{id}/status", h.Order.ChangeStatus)
			r.With(middleware.RequireRole(utils.RoleDriver)).Post("/{id}/driver", h.Order.AcceptDelivery)
			r.Get("/{id}/payout", h.Order.GetPayout)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(utils.RoleAdmin))
				r.Post("/{id}/settle", h.Order.Settle)
				r.Post("/{id}/restaurant-paid", h.Order.MarkRestaurantPaid)
			})
		})

		r.With(middleware.RequireRole(utils.RoleAdmin)).
			Put("/restaurants/{id}/commission-override", h.Restaurant.SetCommissionOverride)
	})

	return r
}
