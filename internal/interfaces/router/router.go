package router

import (
	"context"
	"net/http"
	"time"

	"video-learning-backend/internal/application/health"
	"video-learning-backend/internal/application/payments"
	purchasesvc "video-learning-backend/internal/application/purchases"
	subsvc "video-learning-backend/internal/application/subscriptions"
	videosvc "video-learning-backend/internal/application/videos"
	"video-learning-backend/internal/config"
	"video-learning-backend/internal/infrastructure/database"
	"video-learning-backend/internal/infrastructure/metrics"
	"video-learning-backend/internal/infrastructure/storage"
	"video-learning-backend/internal/infrastructure/stripeclient"
	healthhandler "video-learning-backend/internal/interfaces/handlers/health"
	payhandler "video-learning-backend/internal/interfaces/handlers/payments"
	purchasehandler "video-learning-backend/internal/interfaces/handlers/purchases"
	subhandler "video-learning-backend/internal/interfaces/handlers/subscriptions"
	videohandler "video-learning-backend/internal/interfaces/handlers/videos"
	"video-learning-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const stripeHealthURL = "https://api.stripe.com/healthcheck"

// CreateApp wires adapters, services and routes. Missing optional backends
// (database, Redis, Stripe, S3) leave their routes absent or answering 503.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	metrics.MustRegister()

	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		rdb = redis.NewClient(opts)
	}

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, nil, nil, err
		}
	}

	var gateway payments.Gateway
	if cfg.StripeConfigured() {
		gateway = stripeclient.New(cfg.StripeSecretKey, nil)
	} else {
		log.Warn().Msg("STRIPE_SECRET_KEY not set: payment routes will answer 503")
	}

	var objects videosvc.ObjectStore
	if cfg.S3Bucket != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		awsCfg, err := storage.LoadAWSConfig(ctx, cfg.AWSRegion)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("AWS config not loaded: uploads disabled")
		} else {
			objects = storage.NewS3Store(awsCfg, storage.S3Options{
				Bucket:           cfg.S3Bucket,
				Endpoint:         cfg.S3Endpoint,
				CloudFrontDomain: cfg.CloudFrontDomain,
			})
		}
	}

	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.Metrics())

	var purchases *purchasesvc.Service
	if db != nil {
		var cache purchasesvc.StatusCache
		if rdb != nil {
			cache = &purchasesvc.RedisStatusCache{RDB: rdb}
		}
		purchases = &purchasesvc.Service{
			Store:    &purchasesvc.GormStore{DB: db},
			Gateway:  gateway,
			Cache:    cache,
			Currency: cfg.PaymentCurrency,
		}
	}
	stripeWebhook := &payhandler.WebhookHandler{WebhookSecret: cfg.StripeWebhookSecret}
	if purchases != nil {
		stripeWebhook.Purchases = purchases
	}
	// Server-to-server; registered ahead of CORS and auth.
	app.Post("/api/v1/stripe/webhook", stripeWebhook.HandleWebhook)

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))

	collector := &health.Collector{Rdb: rdb}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			collector.DB = sqlDB
		}
	}
	if gateway != nil {
		collector.Probes = append(collector.Probes, health.Probe{Name: "stripe", URL: stripeHealthURL})
	}
	if cfg.FrontendURL != "" {
		collector.Probes = append(collector.Probes, health.Probe{Name: "frontend", URL: cfg.FrontendURL})
	}
	hh := &healthhandler.Handlers{Collector: collector, HealthAdminKey: cfg.HealthAdminKey}
	app.Get("/", func(c *fiber.Ctx) error { return c.Redirect("/health/json") })
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1", middleware.RequireAuth(cfg.SupabaseJWTSecret))

	sh := &subhandler.Handlers{Service: &subsvc.Service{Gateway: gateway}, FallbackOrigin: cfg.FrontendURL}
	api.Post("/subscriptions/create-checkout-session", sh.CreateCheckoutSession)
	api.Get("/subscriptions/check-subscription", sh.CheckSubscription)

	if db != nil {
		ph := &purchasehandler.Handlers{Service: purchases}
		api.Post("/payments/create-payment-intent", ph.CreatePaymentIntent)
		api.Post("/payments/confirm-payment", ph.ConfirmPayment)
		api.Get("/purchases/check-purchase", ph.CheckPurchase)

		vh := &videohandler.Handlers{Service: &videosvc.Service{DB: db, Storage: objects}}
		api.Post("/videos/upload-url", vh.UploadURL)
		api.Post("/videos", vh.Register)
		api.Get("/videos/:id", vh.GetVideo)
		api.Delete("/videos/:id", vh.DeleteVideo)
	}

	return app, db, rdb, nil
}

func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
