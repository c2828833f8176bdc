package config

import (
	"time"

	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	PostgresDSN string
	MongoURI    string
	RedisAddr   string
	RabbitURL   string

	Environment string // "test" or "live"

	VNPayTmnCode    string
	VNPayHashSecret string
	VNPayPayURL     string

	PayPalClientID      string
	PayPalSecret        string
	PayPalWebhookID     string
	PayPalWebhookSecret string
	PayPalBaseURL       string

	GatewayTimeout time.Duration
	OTLPEndpoint   string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	gatewayTimeout, _ := time.ParseDuration(os.Getenv("GATEWAY_TIMEOUT"))
	if gatewayTimeout == 0 {
		gatewayTimeout = 15 * time.Second
	}

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "test"
	}

	return &Config{
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		MongoURI:    os.Getenv("MONGO_URI"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		RabbitURL:   os.Getenv("RABBIT_URL"),

		Environment: env,

		VNPayTmnCode:    os.Getenv("VNPAY_TMN_CODE"),
		VNPayHashSecret: os.Getenv("VNPAY_HASH_SECRET"),
		VNPayPayURL:     os.Getenv("VNPAY_PAY_URL"),

		PayPalClientID:      os.Getenv("PAYPAL_CLIENT_ID"),
		PayPalSecret:        os.Getenv("PAYPAL_SECRET"),
		PayPalWebhookID:     os.Getenv("PAYPAL_WEBHOOK_ID"),
		PayPalWebhookSecret: os.Getenv("PAYPAL_WEBHOOK_SECRET"),
		PayPalBaseURL:       os.Getenv("PAYPAL_BASE_URL"),

		GatewayTimeout: gatewayTimeout,
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}
