package passwordresets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/akorchagin/authd/internal/common"
	"github.com/akorchagin/authd/internal/dbx"
	"github.com/akorchagin/authd/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, rec *models.PasswordResetRecord) error {
	query := `
		INSERT INTO password_resets (id, user_id, token_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.TokenHash, rec.CreatedAt, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetRecord, error) {
	query := `
		SELECT id, user_id, token_hash, created_at, expires_at, consumed_at
		FROM password_resets
		WHERE token_hash = $1
	`
	rec := &models.PasswordResetRecord{}
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&rec.ID, &rec.UserID, &rec.TokenHash, &rec.CreatedAt, &rec.ExpiresAt, &rec.ConsumedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) ConsumeIfUnused(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `
		UPDATE password_resets
		SET consumed_at = $2
		WHERE id = $1 AND consumed_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return affected == 1, nil
}

func (r *PostgresRepository) InvalidateActiveForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	query := `
		UPDATE password_resets
		SET consumed_at = $2
		WHERE user_id = $1 AND consumed_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, userID, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return affected, nil
}

func (r *PostgresRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM password_resets
		WHERE expires_at < $1
	`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return affected, nil
}
