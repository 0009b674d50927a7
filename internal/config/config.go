package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	LogLevel            string
	DatabaseURL         string
	RedisURL            string
	StripeSecretKey     string
	StripeWebhookSecret string
	PaymentCurrency     string // ISO currency for video purchases, lower-case (default jpy)
	AWSRegion           string
	S3Bucket            string // empty disables uploads (503)
	S3Endpoint          string // LocalStack or other S3-compatible endpoint; empty = AWS
	CloudFrontDomain    string // public host for uploaded media; falls back to the S3 URL
	SupabaseJWTSecret   string // verifies Supabase Auth access tokens; empty disables the check
	FrontendURL         string // checkout return base when a request has no Origin; probed by /health/json
	FrontendURLEndsWith string
	DevPassword         string
	HealthAdminKey      string
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("PAYMENT_CURRENCY", "jpy")
	viper.SetDefault("AWS_REGION", "ap-northeast-1")
	viper.SetDefault("LOG_LEVEL", "info")

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL_DEV")
	if env == "production" {
		dbURL = viper.GetString("DATABASE_URL_PROD")
	} else if env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}

	return &Config{
		Env:                 env,
		Port:                viper.GetString("PORT"),
		LogLevel:            viper.GetString("LOG_LEVEL"),
		DatabaseURL:         dbURL,
		RedisURL:            viper.GetString("REDIS_URL"),
		StripeSecretKey:     stripeKey(viper.GetString("STRIPE_SECRET_KEY")),
		StripeWebhookSecret: viper.GetString("STRIPE_WEBHOOK_SECRET"),
		PaymentCurrency:     strings.ToLower(strings.TrimSpace(viper.GetString("PAYMENT_CURRENCY"))),
		AWSRegion:           viper.GetString("AWS_REGION"),
		S3Bucket:            viper.GetString("AWS_S3_BUCKET_NAME"),
		S3Endpoint:          viper.GetString("AWS_S3_ENDPOINT"),
		CloudFrontDomain:    strings.TrimSpace(viper.GetString("CLOUDFRONT_DOMAIN")),
		SupabaseJWTSecret:   viper.GetString("SUPABASE_JWT_SECRET"),
		FrontendURL:         strings.TrimRight(viper.GetString("FRONTEND_URL"), "/"),
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		HealthAdminKey:      viper.GetString("HEALTH_ADMIN_KEY"),
	}, nil
}

// StripeConfigured reports whether a usable Stripe secret key is present.
func (c *Config) StripeConfigured() bool {
	return c.StripeSecretKey != ""
}

// stripeKey drops the placeholder value shipped in .env templates.
func stripeKey(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "your-stripe") {
		return ""
	}
	return s
}
