package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"uniform-shop/internal/config"
	"uniform-shop/internal/database"
	"uniform-shop/internal/logger"
	"uniform-shop/internal/notify"
	"uniform-shop/internal/payment"
	"uniform-shop/internal/server"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *server.Server, logger *zap.Logger, stopJanitor context.CancelFunc, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown
	stopJanitor()

	// The context is used to inform the server it has 30 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Close server resources
	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

// externalDeps connects the optional collaborators. A channel that is not
// configured, or cannot be reached, is left nil and the server runs without it.
func externalDeps(cfg *config.Config, log *zap.Logger) server.Deps {
	var deps server.Deps

	if cfg.RateLimit.Enabled {
		rdb, err := database.NewRedis(context.Background(), cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, rate limiting disabled", zap.Error(err))
		} else {
			deps.Redis = rdb
		}
	}

	if cfg.Telegram.BotToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			log.Error("Failed to connect chat bot, chat notifications disabled", zap.Error(err))
		} else {
			log.Info("Chat bot connected", zap.String("bot", bot.Self.UserName), zap.Int64("chat_id", cfg.Telegram.ChatID))
			deps.Chat = notify.NewTelegramNotifier(bot, cfg.Telegram.ChatID)
		}
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN not set, chat notifications disabled")
	}

	if cfg.SMTP.Host != "" {
		deps.Mailer = notify.NewSMTPMailer(cfg.SMTP)
	} else {
		log.Warn("SMTP_HOST not set, customer emails disabled")
	}

	if cfg.Stripe.SecretKey == "" {
		log.Warn("STRIPE_SECRET_KEY not set, online checkout disabled")
	}
	deps.Payment = payment.NewStripeClient(cfg.Stripe, log)

	return deps
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting uniform shop API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	// Initialize database
	dbService, err := database.New(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	// Check database health
	health := dbService.Health()
	log.Info("Database health check", zap.Any("health", health))

	// Run migrations
	if err := database.RunMigrations(dbService.DB(), log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	deps := externalDeps(cfg, log)
	deps.DB = dbService

	// Create server
	srv := server.NewServer(cfg, log, deps)

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	go srv.RunJanitor(janitorCtx)

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(srv, log, stopJanitor, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Info("Graceful shutdown complete")
}
