package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the storefront server.
// Values come from the environment (optionally seeded from a .env file),
// with defaults suitable for local development.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Payment  PaymentConfig
	CORS     CORSConfig
	LogLevel string `validate:"oneof=debug info warn error"`
}

type ServerConfig struct {
	Host string `validate:"required"`
	Port int    `validate:"min=1,max=65535"`
	// AppURL is the externally reachable base URL, used for payment
	// webhook and redirect targets.
	AppURL string `validate:"required,url"`
}

type DatabaseConfig struct {
	DSN             string `validate:"required"`
	MaxOpenConns    int    `validate:"min=1"`
	MaxIdleConns    int    `validate:"min=0"`
	ConnMaxLifetime int    `validate:"min=0"` // seconds
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PaymentConfig struct {
	BaseURL string `validate:"required,url"`
	APIKey  string
	ShopID  string
	Timeout int `validate:"min=0"` // seconds
}

type CORSConfig struct {
	AllowedOrigin string `validate:"required"`
}

// LoadConfig reads configuration from the environment via viper.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 3000)
	v.SetDefault("APP_URL", "http://localhost:3000")
	v.SetDefault("DATABASE_DSN", "host=localhost user=storefront password=storefront dbname=storefront port=5432 sslmode=disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 3600)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("PAYMENT_API_URL", "https://api.cryptocloud.plus/v1")
	v.SetDefault("PAYMENT_TIMEOUT", 15)
	v.SetDefault("CORS_ORIGIN", "http://localhost:4200")
	v.SetDefault("LOG_LEVEL", "info")

	cfg := &Config{
		Server: ServerConfig{
			Host:   v.GetString("HOST"),
			Port:   v.GetInt("PORT"),
			AppURL: v.GetString("APP_URL"),
		},
		Database: DatabaseConfig{
			DSN:             v.GetString("DATABASE_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetInt("DB_CONN_MAX_LIFETIME"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Payment: PaymentConfig{
			BaseURL: v.GetString("PAYMENT_API_URL"),
			APIKey:  v.GetString("CRYPTO_CLOUD_API_KEY"),
			ShopID:  v.GetString("CRYPTO_CLOUD_SHOP_ID"),
			Timeout: v.GetInt("PAYMENT_TIMEOUT"),
		},
		CORS: CORSConfig{
			AllowedOrigin: v.GetString("CORS_ORIGIN"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
