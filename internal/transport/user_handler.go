package transport

import (
	"net/http"

	"uniform-shop/internal/domain"
	"uniform-shop/internal/middleware"
	"uniform-shop/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest represents the token refresh and logout payload
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// ForgotPasswordRequest asks for a reset link
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest sets a new password with a mailed token
type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         UserProfile `json:"user"`
}

// RefreshResponse represents the token refresh response
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
}

// UserProfile represents user profile data
type UserProfile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

func profileOf(user *domain.User) UserProfile {
	return UserProfile{
		ID:        user.ID.String(),
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
	}
}

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	userService service.UserService
	logger      *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// RegisterRoutes registers all user routes. limit throttles the
// unauthenticated endpoints.
func (h *UserHandler) RegisterRoutes(r chi.Router, limit, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/users", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.RefreshToken)
			r.Post("/forgot-password", h.ForgotPassword)
			r.Post("/reset-password", h.ResetPassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/logout", h.Logout)
			r.Get("/profile", h.GetProfile)
		})
	})
}

// Register handles user registration
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	// Decode and validate request
	var req RegisterRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Registration validation failed", zap.Error(err))
		respondWithDecodeError(w, err)
		return
	}

	// Call service
	user, err := h.userService.Register(r.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to register user")
		return
	}

	// Return user profile
	h.logger.Info("User registered successfully", zap.String("user_id", user.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, profileOf(user))
}

// Login handles user authentication
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	// Decode and validate request
	var req LoginRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Login validation failed", zap.Error(err))
		respondWithDecodeError(w, err)
		return
	}

	// Call service
	accessToken, refreshToken, user, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to login")
		return
	}

	// Return tokens and user profile
	h.logger.Info("User logged in successfully", zap.String("user_id", user.ID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         profileOf(user),
	})
}

// Logout revokes the given refresh token
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	// Decode and validate request
	var req RefreshRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithDecodeError(w, err)
		return
	}

	// Call service
	if err := h.userService.Logout(r.Context(), req.RefreshToken); err != nil {
		respondWithServiceError(w, h.logger, err, "failed to logout")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}

// RefreshToken handles token refresh
func (h *UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	// Decode and validate request
	var req RefreshRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Refresh token validation failed", zap.Error(err))
		respondWithDecodeError(w, err)
		return
	}

	// Call service
	newAccessToken, err := h.userService.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to refresh token")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, RefreshResponse{AccessToken: newAccessToken})
}

// ForgotPassword mails a reset link. The answer is the same whether or not
// the account exists.
func (h *UserHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	// Decode and validate request
	var req ForgotPasswordRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithDecodeError(w, err)
		return
	}

	// Call service
	if err := h.userService.ForgotPassword(r.Context(), req.Email); err != nil {
		respondWithServiceError(w, h.logger, err, "failed to start password reset")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": "if the account exists, a reset link has been sent",
	})
}

// ResetPassword sets a new password with a single-use token
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	// Decode and validate request
	var req ResetPasswordRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithDecodeError(w, err)
		return
	}

	// Call service
	if err := h.userService.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		respondWithServiceError(w, h.logger, err, "failed to reset password")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// GetProfile handles getting user profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	// Extract user ID from context (set by auth middleware)
	userIDStr, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.logger.Error("User ID not found in context")
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// Parse user ID
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		middleware.RespondWithError(w, http.StatusUnauthorized, "invalid token claims")
		return
	}

	// Get user from service
	user, err := h.userService.GetUserByID(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to get user profile")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, profileOf(user))
}
