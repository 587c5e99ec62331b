package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"uniform-shop/internal/database"
	"uniform-shop/internal/domain"
)

var ErrResetTokenNotFound = errors.New("password reset token not found")

// PasswordResetTokenRepository defines the interface for reset token data access
type PasswordResetTokenRepository interface {
	Create(ctx context.Context, token *domain.PasswordResetToken) error
	// Consume deletes the token and returns it, so a token works once
	Consume(ctx context.Context, token string) (*domain.PasswordResetToken, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type passwordResetTokenRepository struct {
	db *sql.DB
}

// NewPasswordResetTokenRepository creates a new instance of PasswordResetTokenRepository
func NewPasswordResetTokenRepository(db *sql.DB) PasswordResetTokenRepository {
	return &passwordResetTokenRepository{db: db}
}

// Create inserts a new reset token using parameterized queries
func (r *passwordResetTokenRepository) Create(ctx context.Context, token *domain.PasswordResetToken) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO password_reset_tokens (id, user_id, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, token.ID, token.UserID, token.Token, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create password reset token: %w", err)
	}
	return nil
}

func (r *passwordResetTokenRepository) Consume(ctx context.Context, token string) (*domain.PasswordResetToken, error) {
	// Delete and return in one statement
	t := &domain.PasswordResetToken{}
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, `
		DELETE FROM password_reset_tokens
		WHERE token = $1
		RETURNING id, user_id, token, expires_at, created_at
	`, token).Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResetTokenNotFound
		}
		return nil, fmt.Errorf("failed to consume password reset token: %w", err)
	}
	return t, nil
}

func (r *passwordResetTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM password_reset_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired reset tokens: %w", err)
	}
	return result.RowsAffected()
}
