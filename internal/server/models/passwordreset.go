package models

import "time"

// PasswordResetRecord is a single-use reset token. Only the digest of the
// plaintext token is stored; the plaintext is handed to the caller once at
// creation and never retrievable again.
type PasswordResetRecord struct {
	ID         string
	UserID     string
	TokenHash  string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}
