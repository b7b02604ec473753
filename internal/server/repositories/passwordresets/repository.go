// Package passwordresets provides the repository contract for single-use
// password-reset records.
package passwordresets

import (
	"context"
	"time"

	"github.com/akorchagin/authd/internal/server/models"
)

// Repository defines operations for creating and consuming reset records.
// ConsumeIfUnused is the race-free single-use primitive: of two concurrent
// consumptions, exactly one sees true.
type Repository interface {
	// Create stores a new reset record.
	Create(ctx context.Context, rec *models.PasswordResetRecord) error

	// FindByTokenHash looks up a record by the digest of the supplied token.
	// Implementations should return common.ErrorNotFound when absent.
	FindByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetRecord, error)

	// ConsumeIfUnused marks the record consumed if it is not consumed yet.
	// Returns false when another consumption got there first.
	ConsumeIfUnused(ctx context.Context, id string, now time.Time) (bool, error)

	// InvalidateActiveForUser marks every unconsumed record for userID as
	// consumed, so a new reset request supersedes older outstanding ones.
	InvalidateActiveForUser(ctx context.Context, userID string, now time.Time) (int64, error)

	// DeleteExpiredBefore removes records whose expiry predates cutoff.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
