package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Telegram  TelegramConfig
	SMTP      SMTPConfig
	Stripe    StripeConfig
	Shop      ShopConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret        string
	AccessExpiry  int // in minutes
	RefreshExpiry int // in days
}

// TelegramConfig identifies the bot and the operator chat that receives
// order notifications
type TelegramConfig struct {
	BotToken      string
	ChatID        int64
	WebhookSecret string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	APIBaseURL    string
	Currency      string
}

type ShopConfig struct {
	Name                   string
	PublicURL              string
	UploadDir              string
	TempOrderTTL           time.Duration
	TempOrderSweepInterval time.Duration
	NotifyTimeout          time.Duration
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerWindow int
	Window            time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

// IsDevelopment reports whether the server runs outside production
func (c *Config) IsDevelopment() bool {
	return c.Server.Env != "production"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not read .env file: %v", err)
	}

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("JWT_ACCESS_EXPIRY", 15)
	viper.SetDefault("JWT_REFRESH_EXPIRY", 7)
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("STRIPE_API_BASE_URL", "https://api.stripe.com")
	viper.SetDefault("STRIPE_CURRENCY", "eur")
	viper.SetDefault("SHOP_NAME", "School Uniform Shop")
	viper.SetDefault("SHOP_PUBLIC_URL", "http://localhost:3000")
	viper.SetDefault("UPLOAD_DIR", "uploads")
	viper.SetDefault("TEMP_ORDER_TTL", "48h")
	viper.SetDefault("TEMP_ORDER_SWEEP_INTERVAL", "1h")
	viper.SetDefault("NOTIFY_TIMEOUT", "15s")
	viper.SetDefault("RATE_LIMIT_ENABLED", true)
	viper.SetDefault("RATE_LIMIT_REQUESTS", 30)
	viper.SetDefault("RATE_LIMIT_WINDOW", "1m")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")

	return &Config{
		Server: ServerConfig{
			Port: viper.GetString("SERVER_PORT"),
			Env:  viper.GetString("SERVER_ENV"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:        viper.GetString("JWT_SECRET"),
			AccessExpiry:  viper.GetInt("JWT_ACCESS_EXPIRY"),
			RefreshExpiry: viper.GetInt("JWT_REFRESH_EXPIRY"),
		},
		Telegram: TelegramConfig{
			BotToken:      viper.GetString("TELEGRAM_BOT_TOKEN"),
			ChatID:        viper.GetInt64("TELEGRAM_CHAT_ID"),
			WebhookSecret: viper.GetString("TELEGRAM_WEBHOOK_SECRET"),
		},
		SMTP: SMTPConfig{
			Host:     viper.GetString("SMTP_HOST"),
			Port:     viper.GetInt("SMTP_PORT"),
			Username: viper.GetString("SMTP_USERNAME"),
			Password: viper.GetString("SMTP_PASSWORD"),
			From:     viper.GetString("SMTP_FROM"),
		},
		Stripe: StripeConfig{
			SecretKey:     viper.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret: viper.GetString("STRIPE_WEBHOOK_SECRET"),
			APIBaseURL:    viper.GetString("STRIPE_API_BASE_URL"),
			Currency:      viper.GetString("STRIPE_CURRENCY"),
		},
		Shop: ShopConfig{
			Name:                   viper.GetString("SHOP_NAME"),
			PublicURL:              viper.GetString("SHOP_PUBLIC_URL"),
			UploadDir:              viper.GetString("UPLOAD_DIR"),
			TempOrderTTL:           viper.GetDuration("TEMP_ORDER_TTL"),
			TempOrderSweepInterval: viper.GetDuration("TEMP_ORDER_SWEEP_INTERVAL"),
			NotifyTimeout:          viper.GetDuration("NOTIFY_TIMEOUT"),
		},
		RateLimit: RateLimitConfig{
			Enabled:           viper.GetBool("RATE_LIMIT_ENABLED"),
			RequestsPerWindow: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Window:            viper.GetDuration("RATE_LIMIT_WINDOW"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
