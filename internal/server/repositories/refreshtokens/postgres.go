package refreshtokens

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

func (r *PostgresRepository) Create(ctx context.Context, rec *models.RefreshRecord) error {
	query := `
		INSERT INTO refresh_tokens
			(id, user_id, token_hash, family_id, ip_address, user_agent_hash, device_name, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.TokenHash, rec.FamilyID,
		rec.IPAddress, rec.UserAgentHash, rec.DeviceName,
		rec.IssuedAt, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.RefreshRecord, error) {
	query := `
		SELECT id, user_id, token_hash, family_id, ip_address, user_agent_hash, device_name,
		       issued_at, expires_at, revoked_at, replaced_by_id
		FROM refresh_tokens
		WHERE id = $1
	`
	rec := &models.RefreshRecord{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.UserID, &rec.TokenHash, &rec.FamilyID,
		&rec.IPAddress, &rec.UserAgentHash, &rec.DeviceName,
		&rec.IssuedAt, &rec.ExpiresAt, &rec.RevokedAt, &rec.ReplacedByID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) RevokeAndLink(ctx context.Context, id string, replacedByID string, now time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2, replaced_by_id = $3
		WHERE id = $1 AND revoked_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, id, now, replacedByID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return affected == 1, nil
}

func (r *PostgresRepository) RevokeIfActive(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL
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

func (r *PostgresRepository) RevokeFamily(ctx context.Context, familyID string, now time.Time) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2
		WHERE family_id = $1 AND revoked_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, familyID, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return affected, nil
}

func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2
		WHERE user_id = $1 AND revoked_at IS NULL
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

func (r *PostgresRepository) ListActive(ctx context.Context, userID string, now time.Time) ([]*models.RefreshRecord, error) {
	query := `
		SELECT id, user_id, token_hash, family_id, ip_address, user_agent_hash, device_name,
		       issued_at, expires_at, revoked_at, replaced_by_id
		FROM refresh_tokens
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > $2
		ORDER BY issued_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.RefreshRecord
	for rows.Next() {
		rec := &models.RefreshRecord{}
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.TokenHash, &rec.FamilyID,
			&rec.IPAddress, &rec.UserAgentHash, &rec.DeviceName,
			&rec.IssuedAt, &rec.ExpiresAt, &rec.RevokedAt, &rec.ReplacedByID); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
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
