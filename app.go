package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"storefront/internal/cache"
	"storefront/internal/cart"
	"storefront/internal/clients"
	"storefront/internal/config"
	"storefront/internal/handlers"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/currency"
	"storefront/pkg/metrics"
	"storefront/pkg/rabbitmq"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// App is the assembled storefront: the HTTP app plus the resources it owns.
type App struct {
	Fiber    *fiber.App
	DB       *gorm.DB
	Metrics  *metrics.Metrics
	Resolver *currency.Resolver

	refresher *currency.Refresher
	mq        *rabbitmq.Client
	redis     *redis.Client
}

// Overrides replaces outbound dependencies; tests use it to point the
// service at stubs. Zero fields keep the configured clients.
type Overrides struct {
	Gateway    services.PaymentGateway
	Reviews    services.ReviewSource
	Geo        services.CountryLocator
	CartRepo   repositories.CartRepository
	Registry   *prometheus.Registry
	SkipLogger bool
}

// NewApp opens storage, builds services and registers every route.
func NewApp(cfg *config.Config, ov Overrides) (*App, error) {
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&models.Product{},
		&models.User{},
		&models.CartRecord{},
		&models.DiscountCode{},
		&models.CheckoutAttempt{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	a := &App{DB: db}

	reg := ov.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	a.Metrics = metrics.NewMetrics(reg)

	// --- Repositories ---
	productRepo := repositories.NewGORMProductRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)
	discountRepo := repositories.NewGORMDiscountRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	cartRepo := ov.CartRepo
	if cartRepo == nil {
		if cartRepo, err = a.openCartStore(cfg, db); err != nil {
			return nil, err
		}
	}

	// --- Events ---
	var events services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mq, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			log.Printf("Warning: RabbitMQ unavailable, events disabled: %v", err)
		} else {
			a.mq = mq
			events = mq
		}
	}

	// --- Currency ---
	a.Resolver = currency.NewResolver(cfg.CurrencyRates)
	if cfg.RateFeedURL != "" {
		source := &currency.HTTPRateSource{URL: cfg.RateFeedURL, Client: &http.Client{Timeout: cfg.OutboundTimeout}}
		a.refresher = currency.NewRefresher(a.Resolver, source, cfg.RateRefreshInterval)
	}

	// --- Outbound clients ---
	var gateway services.PaymentGateway = clients.NewPaymentGateway(cfg.PaymentAPIBaseURL, cfg.PaymentRequestTimeout)
	if ov.Gateway != nil {
		gateway = ov.Gateway
	}
	var reviewSource services.ReviewSource = clients.NewReviewsAPI(cfg.ReviewsAPIBaseURL, cfg.OutboundTimeout)
	if ov.Reviews != nil {
		reviewSource = ov.Reviews
	}
	var geo services.CountryLocator
	if cfg.GeolocationURL != "" {
		geo = clients.NewGeoLocator(cfg.GeolocationURL, cfg.OutboundTimeout)
	}
	if ov.Geo != nil {
		geo = ov.Geo
	}

	// --- Services ---
	productService := services.NewProductService(productRepo)
	discountService := services.NewDiscountService(discountRepo)
	policy := cart.Policy{
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		FlatShippingFee:       cfg.FlatShippingFee,
		VATRate:               cfg.VATRate,
	}
	cartService := services.NewCartService(cartRepo, productService, discountService, a.Resolver, policy, events, a.Metrics)
	checkoutService := services.NewCheckoutService(cartService, orderRepo, gateway, a.Resolver, services.PaymentConfig{
		PublicKey:           cfg.PaymentPublicKey,
		SourceCode:          cfg.PaymentSourceCode,
		ApplePayMerchantID:  cfg.ApplePayMerchantID,
		GooglePayMerchantID: cfg.GooglePayMerchantID,
		HostedCheckoutURL:   cfg.HostedCheckoutURL,
		FallbackCheckoutURL: cfg.FallbackCheckoutURL,
		SessionTTL:          cfg.PaymentSessionTTL,
		RequestTimeout:      cfg.PaymentRequestTimeout,
	}, events, a.Metrics)
	reviewService := services.NewReviewService(reviewSource, cfg.IsDevelopment(), cfg.ReviewsRevalidate, a.Metrics)
	localeService := services.NewLocaleService(geo, a.Metrics)
	authService := services.NewAuthService(userRepo, cfg.JWTSecret)

	ctx := context.Background()
	if err := productService.Seed(ctx, seedProducts()); err != nil {
		return nil, err
	}
	if err := seedDiscounts(ctx, discountRepo); err != nil {
		return nil, err
	}

	// --- Fiber ---
	secure := !cfg.IsDevelopment()
	a.Fiber = fiber.New(fiber.Config{
		AppName:                 "storefront",
		ReadTimeout:             15 * time.Second,
		WriteTimeout:            45 * time.Second,
		BodyLimit:               256 * 1024,
		EnableTrustedProxyCheck: len(cfg.TrustedProxies) > 0,
		TrustedProxies:          cfg.TrustedProxies,
		ProxyHeader:             proxyHeader(cfg),
		ErrorHandler:            errorHandler,
	})
	a.Fiber.Use(recover.New())
	if !ov.SkipLogger {
		a.Fiber.Use(logger.New())
	}
	a.Fiber.Use(a.Metrics.Middleware())

	a.Fiber.Get("/health", a.health)
	a.Fiber.Get("/metrics", a.Metrics.FiberHandler())

	api := a.Fiber.Group("/api", middleware.CartSession(secure), middleware.OptionalAuth(authService))
	handlers.NewProductHandler(productService).RegisterRoutes(api)
	handlers.NewCartHandler(cartService).RegisterRoutes(api)
	handlers.NewCheckoutHandler(checkoutService).RegisterRoutes(api)
	handlers.NewOrderHandler(checkoutService).RegisterRoutes(api, middleware.AuthRequired(authService))
	handlers.NewAuthHandler(authService, cartService, secure).RegisterRoutes(api)
	handlers.NewReviewHandler(reviewService).RegisterRoutes(api)
	handlers.NewLocaleHandler(localeService, secure).RegisterRoutes(api)
	handlers.NewCurrencyHandler(a.Resolver).RegisterRoutes(api)
	handlers.NewConsentHandler(secure).RegisterRoutes(api)

	return a, nil
}

// Start launches background work; it stops when ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	if a.refresher != nil {
		go a.refresher.Run(ctx)
	}
}

// Close releases the broker, cache and database connections.
func (a *App) Close() error {
	var errs []error
	if a.mq != nil {
		errs = append(errs, a.mq.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}

func (a *App) health(c *fiber.Ctx) error {
	status := fiber.Map{
		"status":   "healthy",
		"time":     time.Now().Format(time.RFC3339),
		"rabbitmq": a.mq != nil,
	}
	if sqlDB, err := a.DB.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
		status["status"] = "degraded"
		return c.Status(fiber.StatusServiceUnavailable).JSON(status)
	}
	if a.redis != nil {
		if err := a.redis.Ping(c.UserContext()).Err(); err != nil {
			status["status"] = "degraded"
			return c.Status(fiber.StatusServiceUnavailable).JSON(status)
		}
	}
	return c.JSON(status)
}

func (a *App) openCartStore(cfg *config.Config, db *gorm.DB) (repositories.CartRepository, error) {
	switch cfg.CartStore {
	case "redis":
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPass})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		return cache.NewRedisCartRepository(a.redis, cfg.CartTTL), nil
	case "memory":
		return repositories.NewMockCartRepository(), nil
	default:
		return repositories.NewGORMCartRepository(db), nil
	}
}

// proxyHeader is empty unless proxies are configured, so a client cannot
// spoof its IP by sending the header directly.
func proxyHeader(cfg *config.Config) string {
	if len(cfg.TrustedProxies) == 0 {
		return ""
	}
	return cfg.ProxyHeader
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DBDSN)
	default:
		dialector = sqlite.Open(cfg.DBDSN)
	}
	level := gormlogger.Warn
	if cfg.IsDevelopment() {
		level = gormlogger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(level)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.DBDriver, err)
	}
	return db, nil
}

// errorHandler keeps the response envelope for errors that escape handlers,
// such as unmatched routes.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	} else {
		log.Printf("Unhandled error on %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(code).JSON(handlers.Envelope{Success: false, Error: message})
}
