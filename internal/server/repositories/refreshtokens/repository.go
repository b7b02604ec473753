// Package refreshtokens provides the repository contract for persisted
// refresh records: the revocable half of the token pair.
package refreshtokens

import (
	"context"
	"time"

	"github.com/akorchagin/authd/internal/server/models"
)

// Repository defines operations for issuing, rotating, and revoking refresh
// records. The conditional updates (RevokeAndLink, RevokeIfActive) are the
// concurrency primitives: two racing rotations of the same record must
// resolve so that exactly one wins and the other observes already-revoked.
type Repository interface {
	// Create stores a new refresh record.
	Create(ctx context.Context, rec *models.RefreshRecord) error

	// FindByID looks up a record by id and returns its metadata.
	// Implementations should return common.ErrorNotFound when absent.
	FindByID(ctx context.Context, id string) (*models.RefreshRecord, error)

	// RevokeAndLink marks the record revoked and links its successor, but
	// only if it is not revoked yet. Returns false when another rotation
	// (or a revocation) got there first.
	RevokeAndLink(ctx context.Context, id string, replacedByID string, now time.Time) (bool, error)

	// RevokeIfActive marks the record revoked if it is not revoked yet.
	// Returns false when it was already revoked or absent.
	RevokeIfActive(ctx context.Context, id string, now time.Time) (bool, error)

	// RevokeFamily revokes every non-revoked record sharing familyID and
	// returns how many records were affected.
	RevokeFamily(ctx context.Context, familyID string, now time.Time) (int64, error)

	// RevokeAllForUser revokes every non-revoked record for userID across
	// all families and returns how many records were affected.
	RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error)

	// ListActive returns the non-revoked, non-expired records for userID,
	// newest first.
	ListActive(ctx context.Context, userID string, now time.Time) ([]*models.RefreshRecord, error)

	// DeleteExpiredBefore removes records whose expiry predates cutoff.
	// The cutoff should trail expiry by the retention window so revoked
	// chains stay inspectable for a while.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
