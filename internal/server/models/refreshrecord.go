package models

import "time"

// RefreshRecord is the persisted side of a refresh token. The raw secret is
// never stored; TokenHash holds its sha256 digest. FamilyID groups every
// record descended from one login so a detected reuse can revoke the whole
// chain at once.
type RefreshRecord struct {
	ID            string
	UserID        string
	TokenHash     string
	FamilyID      string
	IPAddress     string
	UserAgentHash string
	DeviceName    string
	IssuedAt      time.Time
	ExpiresAt     time.Time

	// RevokedAt is set exactly once, either by rotation, logout or a
	// family-wide revocation. A non-nil value means the record is dead.
	RevokedAt *time.Time

	// ReplacedByID links a rotated record to its successor. A revoked
	// record with a successor that is presented again is a reuse event.
	ReplacedByID *string
}

// Active reports whether the record can still be used for rotation.
func (r *RefreshRecord) Active(now time.Time) bool {
	return r.RevokedAt == nil && r.ExpiresAt.After(now)
}
