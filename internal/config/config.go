package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all runtime settings of the storefront service.
type Config struct {
	AppEnv  string
	AppPort string

	// ProxyHeader is only honoured for requests from TrustedProxies.
	TrustedProxies []string
	ProxyHeader    string

	DBDriver string // sqlite | postgres
	DBDSN    string

	CartStore string // db | redis | memory
	RedisAddr string
	RedisPass string
	CartTTL   time.Duration

	RabbitMQURL string
	JWTSecret   string

	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	VATRate               decimal.Decimal
	CurrencyRates         map[string]decimal.Decimal
	RateFeedURL           string
	RateRefreshInterval   time.Duration

	PaymentAPIBaseURL     string
	PaymentPublicKey      string
	PaymentSourceCode     string
	ApplePayMerchantID    string
	GooglePayMerchantID   string
	HostedCheckoutURL     string
	FallbackCheckoutURL   string
	PaymentSessionTTL     time.Duration
	PaymentRequestTimeout time.Duration

	ReviewsAPIBaseURL string
	ReviewsRevalidate time.Duration
	GeolocationURL    string
	OutboundTimeout   time.Duration
}

// IsDevelopment reports whether the service runs against local fallback data.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("PROXY_HEADER", "X-Forwarded-For")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "storefront.db")
	v.SetDefault("CART_STORE", "db")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("CART_TTL", "720h")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("JWT_SECRET", "")

	v.SetDefault("FREE_SHIPPING_THRESHOLD", "500")
	v.SetDefault("FLAT_SHIPPING_FEE", "49")
	v.SetDefault("VAT_RATE", "0.25")
	v.SetDefault("CURRENCY_RATES", "EUR=0.088,USD=0.095,GBP=0.075")
	v.SetDefault("RATE_FEED_URL", "")
	v.SetDefault("RATE_REFRESH_INTERVAL", "1h")

	v.SetDefault("PAYMENT_API_BASE_URL", "http://localhost:3001")
	v.SetDefault("PAYMENT_PUBLIC_KEY", "")
	v.SetDefault("PAYMENT_SOURCE_CODE", "")
	v.SetDefault("APPLE_PAY_MERCHANT_ID", "")
	v.SetDefault("GOOGLE_PAY_MERCHANT_ID", "")
	v.SetDefault("HOSTED_CHECKOUT_URL", "https://www.vivapayments.com/web/checkout")
	v.SetDefault("FALLBACK_CHECKOUT_URL", "https://www.vivapayments.com/web/checkout")
	v.SetDefault("PAYMENT_SESSION_TTL", "1800s")
	v.SetDefault("PAYMENT_REQUEST_TIMEOUT", "30s")

	v.SetDefault("REVIEWS_API_BASE_URL", "http://localhost:3001")
	v.SetDefault("REVIEWS_REVALIDATE", "10m")
	v.SetDefault("GEOLOCATION_URL", "http://localhost:3001/api/geolocation")
	v.SetDefault("OUTBOUND_TIMEOUT", "5s")
}

// Load reads configuration from defaults, an optional config.yaml in the
// working directory, and environment variables (highest precedence).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppEnv:                strings.ToLower(v.GetString("APP_ENV")),
		AppPort:               v.GetString("APP_PORT"),
		TrustedProxies:        splitList(v.GetString("TRUSTED_PROXIES")),
		ProxyHeader:           v.GetString("PROXY_HEADER"),
		DBDriver:              strings.ToLower(v.GetString("DB_DRIVER")),
		DBDSN:                 v.GetString("DATABASE_DSN"),
		CartStore:             strings.ToLower(v.GetString("CART_STORE")),
		RedisAddr:             v.GetString("REDIS_ADDR"),
		RedisPass:             v.GetString("REDIS_PASSWORD"),
		CartTTL:               v.GetDuration("CART_TTL"),
		RabbitMQURL:           v.GetString("RABBITMQ_URL"),
		JWTSecret:             v.GetString("JWT_SECRET"),
		RateFeedURL:           v.GetString("RATE_FEED_URL"),
		RateRefreshInterval:   v.GetDuration("RATE_REFRESH_INTERVAL"),
		PaymentAPIBaseURL:     strings.TrimRight(v.GetString("PAYMENT_API_BASE_URL"), "/"),
		PaymentPublicKey:      v.GetString("PAYMENT_PUBLIC_KEY"),
		PaymentSourceCode:     v.GetString("PAYMENT_SOURCE_CODE"),
		ApplePayMerchantID:    v.GetString("APPLE_PAY_MERCHANT_ID"),
		GooglePayMerchantID:   v.GetString("GOOGLE_PAY_MERCHANT_ID"),
		HostedCheckoutURL:     strings.TrimRight(v.GetString("HOSTED_CHECKOUT_URL"), "/"),
		FallbackCheckoutURL:   v.GetString("FALLBACK_CHECKOUT_URL"),
		PaymentSessionTTL:     v.GetDuration("PAYMENT_SESSION_TTL"),
		PaymentRequestTimeout: v.GetDuration("PAYMENT_REQUEST_TIMEOUT"),
		ReviewsAPIBaseURL:     strings.TrimRight(v.GetString("REVIEWS_API_BASE_URL"), "/"),
		ReviewsRevalidate:     v.GetDuration("REVIEWS_REVALIDATE"),
		GeolocationURL:        v.GetString("GEOLOCATION_URL"),
		OutboundTimeout:       v.GetDuration("OUTBOUND_TIMEOUT"),
	}

	var err error
	if cfg.FreeShippingThreshold, err = decimal.NewFromString(v.GetString("FREE_SHIPPING_THRESHOLD")); err != nil {
		return nil, fmt.Errorf("invalid FREE_SHIPPING_THRESHOLD: %w", err)
	}
	if cfg.FlatShippingFee, err = decimal.NewFromString(v.GetString("FLAT_SHIPPING_FEE")); err != nil {
		return nil, fmt.Errorf("invalid FLAT_SHIPPING_FEE: %w", err)
	}
	if cfg.VATRate, err = decimal.NewFromString(v.GetString("VAT_RATE")); err != nil {
		return nil, fmt.Errorf("invalid VAT_RATE: %w", err)
	}
	if cfg.CurrencyRates, err = ParseRates(v.GetString("CURRENCY_RATES")); err != nil {
		return nil, err
	}

	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	switch cfg.CartStore {
	case "db", "redis", "memory":
	default:
		return nil, fmt.Errorf("unsupported CART_STORE %q", cfg.CartStore)
	}
	if cfg.RateFeedURL != "" && cfg.RateRefreshInterval <= 0 {
		return nil, fmt.Errorf("RATE_REFRESH_INTERVAL must be positive when RATE_FEED_URL is set, got %s", cfg.RateRefreshInterval)
	}
	if cfg.JWTSecret == "" && !cfg.IsDevelopment() {
		return nil, errors.New("JWT_SECRET is required outside development")
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev_jwt_secret"
	}
	return cfg, nil
}

// ParseRates parses "EUR=0.088,USD=0.095" into a rate table.
func ParseRates(s string) (map[string]decimal.Decimal, error) {
	rates := make(map[string]decimal.Decimal)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		code, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid CURRENCY_RATES entry %q", pair)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid rate for %s: %w", code, err)
		}
		rates[strings.ToUpper(strings.TrimSpace(code))] = rate
	}
	return rates, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
