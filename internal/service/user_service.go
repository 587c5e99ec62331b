package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"uniform-shop/internal/domain"
	"uniform-shop/internal/notify"
	"uniform-shop/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 10

	// ResetTokenExpiration bounds how long a mailed reset link works
	ResetTokenExpiration = time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
)

// UserService defines the interface for account and session logic
type UserService interface {
	Register(ctx context.Context, email, password, firstName, lastName string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (accessToken, refreshToken string, user *domain.User, err error)
	Logout(ctx context.Context, refreshToken string) error
	RefreshToken(ctx context.Context, refreshToken string) (newAccessToken string, err error)
	ValidateToken(tokenString string) (*Claims, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	// ForgotPassword mails a reset link when the account exists. It reports
	// success either way so callers cannot discover accounts.
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	// CreateAdmin registers an account with the admin role, or promotes an
	// existing one.
	CreateAdmin(ctx context.Context, email, password string) (*domain.User, error)
	// PurgeExpiredTokens removes expired refresh and password reset tokens
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

// Claims represents the JWT claims
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

// UserServiceConfig carries token lifetimes and the links put in emails
type UserServiceConfig struct {
	JWTSecret     string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	ShopName      string
	PublicURL     string
}

type userService struct {
	userRepo         repository.UserRepository
	refreshTokenRepo repository.RefreshTokenRepository
	resetTokenRepo   repository.PasswordResetTokenRepository
	mailer           notify.Mailer
	cfg              UserServiceConfig
	logger           *zap.Logger
}

// NewUserService creates a new instance of UserService. mailer may be nil,
// in which case reset links are only logged.
func NewUserService(
	userRepo repository.UserRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	resetTokenRepo repository.PasswordResetTokenRepository,
	mailer notify.Mailer,
	cfg UserServiceConfig,
	logger *zap.Logger,
) UserService {
	if cfg.AccessExpiry == 0 {
		cfg.AccessExpiry = 15 * time.Minute
	}
	if cfg.RefreshExpiry == 0 {
		cfg.RefreshExpiry = 7 * 24 * time.Hour
	}
	return &userService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		resetTokenRepo:   resetTokenRepo,
		mailer:           mailer,
		cfg:              cfg,
		logger:           logger,
	}
}

// Register creates a new customer account with a hashed password
func (s *userService) Register(ctx context.Context, email, password, firstName, lastName string) (*domain.User, error) {
	email = normalizeEmail(email)

	// Check if user already exists
	existingUser, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existingUser != nil {
		return nil, repository.ErrUserAlreadyExists
	}

	// Hash the password with bcrypt
	hashedPassword, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// Create user entity
	now := time.Now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hashedPassword,
		FirstName:    firstName,
		LastName:     lastName,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// Save to database
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Login authenticates a user and returns an access JWT and a refresh token
func (s *userService) Login(ctx context.Context, email, password string) (accessToken, refreshToken string, user *domain.User, err error) {
	// Find user by email
	user, err = s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", "", nil, ErrInvalidCredentials
		}
		return "", "", nil, fmt.Errorf("failed to find user: %w", err)
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", "", nil, ErrInvalidCredentials
	}

	// Generate access token
	accessToken, err = s.generateAccessToken(user)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	// Generate refresh token
	refreshToken, err = s.generateRefreshToken(ctx, user)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return accessToken, refreshToken, user, nil
}

// Logout deletes the refresh token; an unknown token counts as logged out
func (s *userService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.refreshTokenRepo.Delete(ctx, refreshToken); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			// Token doesn't exist, consider it already logged out
			return nil
		}
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RefreshToken issues a new access token for a live refresh token
func (s *userService) RefreshToken(ctx context.Context, refreshTokenString string) (newAccessToken string, err error) {
	// Find and validate refresh token
	refreshToken, err := s.refreshTokenRepo.FindByToken(ctx, refreshTokenString)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to find refresh token: %w", err)
	}

	// Check if token is expired
	if time.Now().After(refreshToken.ExpiresAt) {
		return "", ErrTokenExpired
	}

	// Get user
	user, err := s.userRepo.FindByID(ctx, refreshToken.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}

	// Generate new access token
	newAccessToken, err = s.generateAccessToken(user)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}

	return newAccessToken, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *userService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ForgotPassword stores a one-hour reset token and mails the link
func (s *userService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.logger.Info("Password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("failed to find user: %w", err)
	}

	// Create reset token
	now := time.Now()
	reset := &domain.PasswordResetToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(ResetTokenExpiration),
		CreatedAt: now,
	}
	if err := s.resetTokenRepo.Create(ctx, reset); err != nil {
		return err
	}

	// Build reset link
	link := strings.TrimRight(s.cfg.PublicURL, "/") + "/reset-password?token=" + url.QueryEscape(reset.Token)

	if s.mailer == nil {
		s.logger.Warn("Mailer not configured, reset link not sent", zap.String("user_id", user.ID.String()))
		return nil
	}

	msg, err := notify.PasswordReset(s.cfg.ShopName, user.Email, link)
	if err != nil {
		return err
	}

	// A delivery failure is logged rather than returned so the response
	// does not reveal whether the account exists.
	if _, err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error("Failed to send password reset email",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
	}
	return nil
}

// ResetPassword consumes a reset token and sets the new password
func (s *userService) ResetPassword(ctx context.Context, token, newPassword string) error {
	// Consume token so it cannot be replayed
	reset, err := s.resetTokenRepo.Consume(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrResetTokenNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	// Check if token is expired
	if time.Now().After(reset.ExpiresAt) {
		return ErrTokenExpired
	}

	// Hash the new password
	hashedPassword, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, reset.UserID, hashedPassword); err != nil {
		return err
	}

	// Existing sessions end with the old password
	return s.refreshTokenRepo.DeleteByUser(ctx, reset.UserID)
}

// CreateAdmin registers an admin or promotes an existing account
func (s *userService) CreateAdmin(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.Register(ctx, email, password, "", "")
	if errors.Is(err, repository.ErrUserAlreadyExists) {
		// Promote existing account
		existing, findErr := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
		if findErr != nil {
			return nil, findErr
		}
		if err := s.userRepo.UpdateRole(ctx, existing.ID, domain.RoleAdmin); err != nil {
			return nil, err
		}
		existing.Role = domain.RoleAdmin
		return existing, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.UpdateRole(ctx, user.ID, domain.RoleAdmin); err != nil {
		return nil, err
	}
	user.Role = domain.RoleAdmin
	return user, nil
}

func (s *userService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	now := time.Now()

	sessions, err := s.refreshTokenRepo.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	resets, err := s.resetTokenRepo.DeleteExpired(ctx, now)
	if err != nil {
		return sessions, err
	}

	if sessions+resets > 0 {
		s.logger.Info("Purged expired tokens",
			zap.Int64("refresh_tokens", sessions),
			zap.Int64("reset_tokens", resets),
		)
	}
	return sessions + resets, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// hashPassword hashes a password using bcrypt with BcryptCost
func hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// generateAccessToken signs a JWT carrying the user ID and role
func (s *userService) generateAccessToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// generateRefreshToken stores a random opaque token for the user
func (s *userService) generateRefreshToken(ctx context.Context, user *domain.User) (string, error) {
	// Generate a random token string
	now := time.Now()
	refreshToken := &domain.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(s.cfg.RefreshExpiry),
		CreatedAt: now,
	}

	if err := s.refreshTokenRepo.Create(ctx, refreshToken); err != nil {
		return "", err
	}

	return refreshToken.Token, nil
}
