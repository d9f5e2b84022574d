package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration loaded once at startup.
type Config struct {
	Debug       bool   `env:"DEBUG" envDefault:"false"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"access-bot"`

	Log struct {
		File       string `env:"LOG_FILE"`
		MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"50"`
		MaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
		MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"14"`
	}

	Telegram struct {
		BotToken    string        `env:"BOT_TOKEN,required,notEmpty"`
		OwnerIDs    []int64       `env:"OWNER_IDS" envSeparator:","`
		PollTimeout time.Duration `env:"TELEGRAM_POLL_TIMEOUT" envDefault:"10s"`
		// Deadline for handling a single update
		UpdateTimeout time.Duration `env:"TELEGRAM_UPDATE_TIMEOUT" envDefault:"30s"`
		// Telegram Mini App init-data TTL for the staff API (0 disables the check)
		InitDataTTL time.Duration `env:"INIT_DATA_TTL" envDefault:"24h"`
	}

	Database struct {
		URL          string `env:"DATABASE_URL,required,notEmpty"`
		AutoMigrate  bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`
		MaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
		MaxIdleConns int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	}

	Redis struct {
		// Empty address disables the webhook stream and the throttle
		Addr     string `env:"REDIS_ADDR"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
		Stream   string `env:"REDIS_PAYMENTS_STREAM" envDefault:"payments:events"`
		Group    string `env:"REDIS_PAYMENTS_GROUP" envDefault:"access-bot"`
	}

	CryptoPay struct {
		Token        string        `env:"CRYPTO_PAY_TOKEN"`
		BaseURL      string        `env:"CRYPTO_PAY_BASE_URL" envDefault:"https://pay.crypt.bot/api"`
		Asset        string        `env:"CRYPTO_PAY_ASSET" envDefault:"USDT"`
		Timeout      time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`
		RPS          float64       `env:"CRYPTO_PAY_RPS" envDefault:"5"`
		PollInterval time.Duration `env:"INVOICE_POLL_INTERVAL" envDefault:"1m"`
		PollBatch    int           `env:"INVOICE_POLL_BATCH" envDefault:"50"`
	}

	Payment struct {
		RubPayURL         string          `env:"RUB_PAY_URL"`
		PriceRUB          decimal.Decimal `env:"PRICE_RUB" envDefault:"269"`
		PriceUSDT         decimal.Decimal `env:"PRICE_USDT" envDefault:"3.0"`
		CurrencySymbolRUB string          `env:"CURRENCY_SYMBOL_RUB" envDefault:"₽"`
		AccessURL         string          `env:"ACCESS_URL"`
		SupportContact    string          `env:"SUPPORT_CONTACT"`
	}

	HTTP struct {
		Addr               string   `env:"HTTP_ADDR" envDefault:":8080"`
		CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	}

	Throttle struct {
		Limit  int           `env:"THROTTLE_LIMIT" envDefault:"20"`
		Window time.Duration `env:"THROTTLE_WINDOW" envDefault:"10s"`
	}

	TextsFile string `env:"TEXTS_FILE"`
}

// Load reads .env (if present) and the process environment into Config.
// Missing BOT_TOKEN or DATABASE_URL is an error the caller treats as fatal.
func Load() (*Config, error) {
	// .env is optional; in production variables are set directly
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	if !c.Payment.PriceRUB.IsPositive() {
		return fmt.Errorf("PRICE_RUB must be positive, got %s", c.Payment.PriceRUB)
	}
	if !c.Payment.PriceUSDT.IsPositive() {
		return fmt.Errorf("PRICE_USDT must be positive, got %s", c.Payment.PriceUSDT)
	}
	if c.CryptoPay.Timeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	if c.CryptoPay.PollBatch <= 0 {
		c.CryptoPay.PollBatch = 50
	}
	return nil
}

// CryptoEnabled reports whether the crypto rail has its credentials.
func (c *Config) CryptoEnabled() bool {
	return c.CryptoPay.Token != "" && c.CryptoPay.BaseURL != ""
}

// RubEnabled reports whether the manual rail has a payment link.
func (c *Config) RubEnabled() bool {
	return c.Payment.RubPayURL != ""
}

// RedisEnabled reports whether redis-backed features should start.
func (c *Config) RedisEnabled() bool {
	return c.Redis.Addr != ""
}
