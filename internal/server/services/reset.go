package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/akorchagin/authd/internal/common"
	"github.com/akorchagin/authd/internal/dbx"
	"github.com/akorchagin/authd/internal/ids"
	"github.com/akorchagin/authd/internal/obs"
	"github.com/akorchagin/authd/internal/randx"
	"github.com/akorchagin/authd/internal/server/audit"
	"github.com/akorchagin/authd/internal/server/config"
	"github.com/akorchagin/authd/internal/server/device"
	"github.com/akorchagin/authd/internal/server/models"
	"github.com/akorchagin/authd/internal/server/password"
	"github.com/akorchagin/authd/internal/server/repositories/repomanager"
)

// resetSecretSize is the entropy of a reset token in bytes.
const resetSecretSize = 32

// ResetRequest is the outcome of RequestReset. PlainToken is empty when the
// email matched no account: callers send the token out of band only when it
// is set, and answer the requester identically either way.
type ResetRequest struct {
	PlainToken string
	ExpiresAt  time.Time
}

// ResetService implements the password-reset flow: single-use, short-lived,
// digest-stored tokens, and revocation of every session once a reset lands.
type ResetService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      password.Hasher
	recorder    audit.Recorder

	resetTokenValidityDuration time.Duration

	now func() time.Time
}

// NewResetService constructs a ResetService using repositories and server config.
func NewResetService(db *sql.DB, m repomanager.RepositoryManager, hasher password.Hasher,
	recorder audit.Recorder, cfg *config.Config) *ResetService {
	return &ResetService{
		db:                         db,
		repomanager:                m,
		hasher:                     hasher,
		recorder:                   recorder,
		resetTokenValidityDuration: cfg.ResetTokenValidityDuration,
		now:                        time.Now,
	}
}

// RequestReset issues a single-use reset token for the account with the
// given email. Outstanding unconsumed tokens for the account are invalidated
// first. When the email matches no account the work still runs far enough
// that the result carries the same shape, just without a usable token.
func (s *ResetService) RequestReset(ctx context.Context, email string, dev device.Info) (*ResetRequest, error) {
	email = normalizeEmail(email)

	// the secret is minted before the account lookup so both branches pay
	// the generation cost
	secret, err := randx.NewSecret(resetSecretSize)
	if err != nil {
		return nil, common.ErrorInternal
	}

	now := s.now()
	expiresAt := now.Add(s.resetTokenValidityDuration)

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			obs.ObserveReset("requested_unknown")
			return &ResetRequest{ExpiresAt: expiresAt}, nil
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.PasswordResets(tx)

		if _, invErr := repo.InvalidateActiveForUser(ctx, user.ID, now); invErr != nil {
			return fmt.Errorf("error invalidating reset tokens: %w", invErr)
		}

		rec := &models.PasswordResetRecord{
			ID:        ids.New(),
			UserID:    user.ID,
			TokenHash: randx.Digest(secret),
			CreatedAt: now,
			ExpiresAt: expiresAt,
		}
		if createErr := repo.Create(ctx, rec); createErr != nil {
			return fmt.Errorf("error creating reset token: %w", createErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	obs.ObserveReset("requested")
	s.recorder.Record(ctx, audit.KindResetRequested, "user_id", user.ID, "ip", dev.IPAddress)
	return &ResetRequest{PlainToken: secret, ExpiresAt: expiresAt}, nil
}

// ResetPassword consumes a reset token and replaces the account password.
// Unknown, expired, and already-consumed tokens all collapse into
// common.ErrorInvalidOrExpiredToken so callers cannot probe token state.
// A successful reset revokes every active session of the user.
func (s *ResetService) ResetPassword(ctx context.Context, plainToken, newPassword string) error {
	if err := password.CheckPolicy(newPassword); err != nil {
		return err
	}

	rec, err := s.repomanager.PasswordResets(s.db).FindByTokenHash(ctx, randx.Digest(plainToken))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorInvalidOrExpiredToken
		}
		return fmt.Errorf("error searching reset token: %w", err)
	}

	now := s.now()
	if rec.ConsumedAt != nil || !rec.ExpiresAt.After(now) {
		return common.ErrorInvalidOrExpiredToken
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return common.ErrorInternal
	}

	lostRace := false
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		won, consErr := s.repomanager.PasswordResets(tx).ConsumeIfUnused(ctx, rec.ID, now)
		if consErr != nil {
			return fmt.Errorf("error consuming reset token: %w", consErr)
		}
		if !won {
			lostRace = true
			return errConsumeLost
		}

		if updErr := s.repomanager.Users(tx).UpdatePasswordHash(ctx, rec.UserID, hash); updErr != nil {
			return fmt.Errorf("error updating password: %w", updErr)
		}

		if _, revErr := s.repomanager.RefreshTokens(tx).RevokeAllForUser(ctx, rec.UserID, now); revErr != nil {
			return fmt.Errorf("error revoking sessions: %w", revErr)
		}
		return nil
	})
	if lostRace {
		return common.ErrorInvalidOrExpiredToken
	}
	if err != nil {
		return err
	}

	obs.ObserveReset("completed")
	s.recorder.Record(ctx, audit.KindPasswordChange, "user_id", rec.UserID)
	return nil
}

// SweepExpired deletes reset records whose expiry has passed. Returns how
// many records were removed.
func (s *ResetService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.repomanager.PasswordResets(s.db).DeleteExpiredBefore(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("error sweeping reset tokens: %w", err)
	}
	return n, nil
}

// errConsumeLost aborts the reset transaction when the conditional consume
// observed an already-consumed record.
var errConsumeLost = errors.New("consume lost")
