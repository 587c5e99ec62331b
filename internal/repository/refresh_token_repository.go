package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"uniform-shop/internal/database"
	"uniform-shop/internal/domain"

	"github.com/google/uuid"
)

var ErrRefreshTokenNotFound = errors.New("refresh token not found")

// RefreshTokenRepository stores session refresh tokens. A token is revoked
// by deleting its row.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error)
	Delete(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type refreshTokenRepository struct {
	db *sql.DB
}

func NewRefreshTokenRepository(db *sql.DB) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

func (r *refreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, token.ID, token.UserID, token.Token, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to create refresh token: %w", err)
	}
	return nil
}

func (r *refreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	t := &domain.RefreshToken{}
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, user_id, token, expires_at, created_at
		FROM refresh_tokens
		WHERE token = $1
	`, token).Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}
	return t, nil
}

func (r *refreshTokenRepository) Delete(ctx context.Context, token string) error {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return expectOneRow(result, ErrRefreshTokenNotFound)
}

// DeleteByUser ends every session of a user
func (r *refreshTokenRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete refresh tokens: %w", err)
	}
	return nil
}

func (r *refreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired refresh tokens: %w", err)
	}
	return result.RowsAffected()
}
