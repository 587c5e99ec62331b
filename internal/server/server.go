package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"uniform-shop/internal/config"
	"uniform-shop/internal/database"
	custommiddleware "uniform-shop/internal/middleware"
	"uniform-shop/internal/notify"
	"uniform-shop/internal/payment"
	"uniform-shop/internal/repository"
	"uniform-shop/internal/service"
	"uniform-shop/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// UploadURLPrefix is where stored product images are served
const UploadURLPrefix = "/uploads"

// Deps are the external systems the server talks to. Redis, Chat and Mailer
// are optional: a nil Redis disables rate limiting, a nil Chat or Mailer
// disables that notification channel.
type Deps struct {
	DB      database.Service
	Redis   *redis.Client
	Chat    notify.ChatNotifier
	Mailer  notify.Mailer
	Payment payment.Provider
}

type Server struct {
	*http.Server
	config  *config.Config
	logger  *zap.Logger
	db      database.Service
	redis   *redis.Client
	janitor *service.Janitor
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Deps) *Server {
	router := chi.NewRouter()

	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.CORSMiddleware(cfg.CORS, cfg.IsDevelopment()))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))

	router.Get("/health", healthHandler(deps.DB))

	db := deps.DB.DB()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	resetTokenRepo := repository.NewPasswordResetTokenRepository(db)
	productRepo := repository.NewProductRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	tempOrderRepo := repository.NewTempOrderRepository(db)

	// Initialize services
	dispatcher := notify.NewDispatcher(deps.Chat, deps.Mailer, orderRepo, cfg.Shop.Name, cfg.Shop.NotifyTimeout, logger)

	userService := service.NewUserService(userRepo, refreshTokenRepo, resetTokenRepo, deps.Mailer, service.UserServiceConfig{
		JWTSecret:     cfg.JWT.Secret,
		AccessExpiry:  time.Duration(cfg.JWT.AccessExpiry) * time.Minute,
		RefreshExpiry: time.Duration(cfg.JWT.RefreshExpiry) * 24 * time.Hour,
		ShopName:      cfg.Shop.Name,
		PublicURL:     cfg.Shop.PublicURL,
	}, logger)
	productService := service.NewProductService(productRepo, inventoryRepo, logger)
	orderService := service.NewOrderService(database.NewTransactor(db), orderRepo, inventoryRepo, dispatcher, logger)
	checkoutService := service.NewCheckoutService(deps.Payment, orderService, productRepo, tempOrderRepo, service.CheckoutConfig{
		PublicURL:    cfg.Shop.PublicURL,
		TempOrderTTL: cfg.Shop.TempOrderTTL,
	}, logger)

	// Create auth middleware
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	requireAdmin := custommiddleware.RequireAdmin(logger)
	adminOnly := func(next http.Handler) http.Handler {
		return authMiddleware(requireAdmin(next))
	}

	limiter := rateLimiter(cfg.RateLimit, deps.Redis, logger)

	// Register routes
	transport.NewUserHandler(userService, logger).RegisterRoutes(router, limiter("rl:auth"), authMiddleware)
	transport.NewProductHandler(productService, logger).RegisterRoutes(router, adminOnly)
	transport.NewOrderHandler(orderService, logger).RegisterRoutes(router, limiter("rl:orders"), adminOnly)
	transport.NewCheckoutHandler(checkoutService, logger).RegisterRoutes(router, limiter("rl:checkout"))
	transport.NewUploadHandler(cfg.Shop.UploadDir, UploadURLPrefix, logger).RegisterRoutes(router, adminOnly)

	if deps.Chat != nil {
		chatService := service.NewChatService(orderService, orderRepo, deps.Chat, cfg.Telegram.ChatID, cfg.Shop.Name, logger)
		transport.NewTelegramHandler(chatService, cfg.Telegram.WebhookSecret, logger).RegisterRoutes(router)
	} else {
		logger.Warn("Chat notifications disabled, operator webhook not registered")
	}

	janitor := service.NewJanitor(cfg.Shop.TempOrderSweepInterval, logger,
		service.Sweep{Name: "temp_orders", Purge: checkoutService.PurgeExpired},
		service.Sweep{Name: "expired_tokens", Purge: userService.PurgeExpiredTokens},
	)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:  cfg,
		logger:  logger,
		db:      deps.DB,
		redis:   deps.Redis,
		janitor: janitor,
	}

	return server
}

// RunJanitor purges stale temp orders and expired tokens until ctx is done
func (s *Server) RunJanitor(ctx context.Context) {
	s.janitor.Run(ctx)
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}

func healthHandler(db database.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := db.Health()
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, map[string]interface{}{
			"status":   health["status"],
			"database": health,
		})
	}
}

// rateLimiter returns a constructor for per-route-group limiters, each with
// its own bucket
func rateLimiter(cfg config.RateLimitConfig, client *redis.Client, logger *zap.Logger) func(prefix string) func(http.Handler) http.Handler {
	if !cfg.Enabled || client == nil {
		return func(string) func(http.Handler) http.Handler {
			return func(next http.Handler) http.Handler { return next }
		}
	}

	return func(prefix string) func(http.Handler) http.Handler {
		return custommiddleware.RateLimitMiddleware(client, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RequestsPerWindow,
			Window:            cfg.Window,
			KeyPrefix:         prefix,
		}, logger)
	}
}
