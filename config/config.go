package config

import (
	"sync"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Application struct {
		Name        string        `env:"APP_NAME" envDefault:"sp-ticketing"`
		Environment string        `env:"APP_ENVIRONMENT" envDefault:"development"`
		Port        int           `env:"APP_PORT" envDefault:"8080"`
		Debug       bool          `env:"APP_DEBUG" envDefault:"false"`
		Timeout     time.Duration `env:"APP_TIMEOUT" envDefault:"10s"`
		BaseURL     string        `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`
	}

	Order struct {
		ReservationTTL        time.Duration `env:"ORDER_RESERVATION_TTL" envDefault:"15m"`
		PlatformFeePercentage float64       `env:"ORDER_PLATFORM_FEE_PERCENTAGE" envDefault:"5"`
		TaxPercentage         float64       `env:"ORDER_TAX_PERCENTAGE" envDefault:"11"`
		Currency              string        `env:"ORDER_CURRENCY" envDefault:"IDR"`
	}

	Postgres struct {
		DSN             string        `env:"POSTGRES_DSN,required"`
		MaxOpenConns    int           `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"25"`
		MaxIdleConns    int           `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"5"`
		ConnMaxLifetime time.Duration `env:"POSTGRES_CONN_MAX_LIFETIME" envDefault:"30m"`
	}

	Redis struct {
		Address  string `env:"REDIS_ADDRESS" envDefault:"localhost:6379"`
		Password string `env:"REDIS_PASSWORD"`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Kafka struct {
		BootstrapServers string `env:"KAFKA_BOOTSTRAP_SERVERS" envDefault:"localhost:9092"`
		ClientID         string `env:"KAFKA_CLIENT_ID" envDefault:"sp-ticketing"`
	}

	Payvault struct {
		BaseURL       string `env:"PAYVAULT_BASE_URL,required"`
		APIKey        string `env:"PAYVAULT_API_KEY,required"`
		WebhookSecret string `env:"PAYVAULT_WEBHOOK_SECRET,required"`
		SuccessURL    string `env:"PAYVAULT_SUCCESS_URL" envDefault:"http://localhost:3000/checkout/success"`
		CancelURL     string `env:"PAYVAULT_CANCEL_URL" envDefault:"http://localhost:3000/checkout/cancel"`
	}

	JWT struct {
		PrivateKey []byte `env:"JWT_PRIVATE_KEY"`
		PublicKey  []byte `env:"JWT_PUBLIC_KEY"`
	}

	GCP struct {
		ProjectID      string `env:"GCP_PROJECT_ID"`
		ServiceAccount []byte `env:"GCP_SERVICE_ACCOUNT"`
	}

	CORS struct {
		AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
		AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envSeparator:"," envDefault:"GET,POST,PUT,PATCH,DELETE,OPTIONS"`
		AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"*"`
		ExposedHeaders   []string `env:"CORS_EXPOSED_HEADERS" envSeparator:","`
		MaxAge           int      `env:"CORS_MAX_AGE" envDefault:"300"`
		AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	}
}

var (
	c    *Config
	once sync.Once
)

// Get loads the configuration from the environment once and memoizes it.
func Get() *Config {
	once.Do(func() {
		godotenv.Load()

		c = &Config{}
		if err := env.Parse(c); err != nil {
			panic(err)
		}
	})

	return c
}
