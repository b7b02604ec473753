// Package services contains server-side business logic. This file implements
// AuthService: registration, login, stateless access-token validation, and
// the refresh-token rotation state machine with reuse detection.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/akorchagin/authd/internal/common"
	"github.com/akorchagin/authd/internal/dbx"
	"github.com/akorchagin/authd/internal/ids"
	"github.com/akorchagin/authd/internal/obs"
	"github.com/akorchagin/authd/internal/randx"
	"github.com/akorchagin/authd/internal/server/audit"
	"github.com/akorchagin/authd/internal/server/auth"
	"github.com/akorchagin/authd/internal/server/config"
	"github.com/akorchagin/authd/internal/server/device"
	"github.com/akorchagin/authd/internal/server/models"
	"github.com/akorchagin/authd/internal/server/password"
	"github.com/akorchagin/authd/internal/server/ratelimit"
	"github.com/akorchagin/authd/internal/server/repositories/repomanager"
)

// refreshSecretSize is the entropy of a refresh secret in bytes.
const refreshSecretSize = 32

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string

	// ExpiresIn is the access-token lifetime; the refresh token lives on
	// its own persisted expiry.
	ExpiresIn time.Duration
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	User *models.User
	Pair TokenPair
}

// AuthService provides authentication-related operations:
//   - Register: create users
//   - Login: verify credentials and mint a token pair in a fresh family
//   - Refresh: rotate refresh tokens, detect reuse, mint new access tokens
//   - Logout: revoke one session chain or every session of the user
//   - ValidateAccessToken: stateless signature + expiry check
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      password.Hasher
	lockout     ratelimit.LockoutPolicy
	recorder    audit.Recorder

	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration

	// dummyHash keeps credential verification near constant cost when the
	// user does not exist.
	dummyHash string

	now func() time.Time
}

// NewAuthService constructs an AuthService using repositories and server config.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, hasher password.Hasher,
	lockout ratelimit.LockoutPolicy, recorder audit.Recorder, cfg *config.Config) (*AuthService, error) {

	dummyHash, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("error preparing verifier: %w", err)
	}

	return &AuthService{
		db:                           db,
		repomanager:                  m,
		hasher:                       hasher,
		lockout:                      lockout,
		recorder:                     recorder,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		dummyHash:                    dummyHash,
		now:                          time.Now,
	}, nil
}

// Register creates a new user with the given email and password.
func (s *AuthService) Register(ctx context.Context, email, plainPassword string) (*models.User, error) {
	if err := password.CheckPolicy(plainPassword); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(plainPassword)
	if err != nil {
		return nil, common.ErrorInternal
	}

	user := &models.User{Email: normalizeEmail(email), PasswordHash: hash}
	repo := s.repomanager.Users(s.db)
	u, err := repo.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return u, nil
}

// Login verifies the credentials and, on success, opens a new session
// family and returns its first token pair. The lockout policy is consulted
// first and may short-circuit with common.ErrorAccountLocked.
func (s *AuthService) Login(ctx context.Context, email, plainPassword string, dev device.Info) (*LoginResult, error) {
	email = normalizeEmail(email)

	if !s.lockout.Allow(ctx, email) {
		obs.ObserveLogin("locked")
		s.recorder.Record(ctx, audit.KindLoginFailure, "email", email, "ip", dev.IPAddress, "reason", "locked")
		return nil, common.ErrorAccountLocked
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// burn the same hashing cost as a real verification so the
			// response time does not leak account existence
			_, _ = s.hasher.Verify(plainPassword, s.dummyHash)
			obs.ObserveLogin("invalid")
			s.recorder.Record(ctx, audit.KindLoginFailure, "email", email, "ip", dev.IPAddress, "reason", "unknown_user")
			return nil, common.ErrorInvalidCredentials
		}
		return nil, common.ErrorInternal
	}

	ok, err := s.hasher.Verify(plainPassword, user.PasswordHash)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if !ok {
		obs.ObserveLogin("invalid")
		s.recorder.Record(ctx, audit.KindLoginFailure, "email", email, "ip", dev.IPAddress, "reason", "bad_password")
		return nil, common.ErrorInvalidCredentials
	}

	pair, err := s.generateTokenPair(ctx, s.db, user.ID, uuid.NewString(), dev)
	if err != nil {
		return nil, err
	}

	obs.ObserveLogin("success")
	s.recorder.Record(ctx, audit.KindLoginSuccess, "user_id", user.ID, "ip", dev.IPAddress, "device", dev.DeviceName)
	return &LoginResult{User: user, Pair: *pair}, nil
}

// Refresh validates a refresh token and rotates it: the presented record is
// revoked and linked to a freshly issued successor in the same family, all
// in one transaction. Presenting an already-rotated token is treated as
// theft: the whole family is revoked before ErrorTokenReuseDetected is
// returned.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, dev device.Info) (*TokenPair, error) {
	recordID, secret, ok := splitRefreshToken(refreshToken)
	if !ok {
		obs.ObserveRefresh("invalid")
		return nil, common.ErrorInvalidToken
	}

	repo := s.repomanager.RefreshTokens(s.db)
	rec, err := repo.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			obs.ObserveRefresh("invalid")
			return nil, common.ErrorInvalidToken
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(randx.Digest(secret)), []byte(rec.TokenHash)) != 1 {
		obs.ObserveRefresh("invalid")
		return nil, common.ErrorInvalidToken
	}

	now := s.now()

	if rec.RevokedAt != nil {
		return nil, s.handleReuse(ctx, rec, dev)
	}

	if !rec.ExpiresAt.After(now) {
		obs.ObserveRefresh("expired")
		return nil, common.ErrorTokenExpired
	}

	var pair *TokenPair
	lostRace := false
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := s.repomanager.RefreshTokens(tx)

		successor, genErr := s.newRefreshRecord(rec.UserID, rec.FamilyID, dev)
		if genErr != nil {
			return genErr
		}
		if createErr := repoTx.Create(ctx, successor.record); createErr != nil {
			return fmt.Errorf("error creating refresh token: %w", createErr)
		}

		won, revErr := repoTx.RevokeAndLink(ctx, rec.ID, successor.record.ID, now)
		if revErr != nil {
			return fmt.Errorf("error revoking refresh token: %w", revErr)
		}
		if !won {
			// a concurrent rotation of the same token got there first;
			// roll back the successor and fall into the reuse path
			lostRace = true
			return errRotationLost
		}

		access, accErr := s.generateAccessToken(rec.UserID)
		if accErr != nil {
			return common.ErrorInternal
		}
		pair = &TokenPair{
			AccessToken:  access,
			RefreshToken: successor.token,
			ExpiresIn:    s.accessTokenValidityDuration,
		}
		return nil
	})
	if lostRace {
		return nil, s.handleReuse(ctx, rec, dev)
	}
	if err != nil {
		return nil, err
	}

	obs.ObserveRefresh("success")
	s.recorder.Record(ctx, audit.KindRefreshRotated, "user_id", rec.UserID, "family_id", rec.FamilyID, "ip", dev.IPAddress)
	return pair, nil
}

// Logout revokes the session chain of the presented refresh token, or every
// session of its user when revokeAllDevices is set. An unknown or
// already-revoked token is treated as already logged out: no error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, revokeAllDevices bool) error {
	recordID, secret, ok := splitRefreshToken(refreshToken)
	if !ok {
		return nil
	}

	repo := s.repomanager.RefreshTokens(s.db)
	rec, err := repo.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return fmt.Errorf("error searching refresh token: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(randx.Digest(secret)), []byte(rec.TokenHash)) != 1 {
		return nil
	}

	now := s.now()
	if revokeAllDevices {
		if _, err := repo.RevokeAllForUser(ctx, rec.UserID, now); err != nil {
			return fmt.Errorf("error revoking sessions: %w", err)
		}
	} else {
		if _, err := repo.RevokeIfActive(ctx, rec.ID, now); err != nil {
			return fmt.Errorf("error revoking session: %w", err)
		}
	}

	s.recorder.Record(ctx, audit.KindLogout, "user_id", rec.UserID, "all_devices", revokeAllDevices)
	return nil
}

// ValidateAccessToken verifies the signature and expiry of an access token
// and returns its claims. No store lookup happens here: validation is
// stateless so other subsystems can call it on every request.
func (s *AuthService) ValidateAccessToken(tokenString string) (*auth.AccessClaims, error) {
	return auth.ParseToken(tokenString, s.jwtSecret)
}

// ListSessions returns the user's active sessions, newest first.
func (s *AuthService) ListSessions(ctx context.Context, userID string) ([]*models.RefreshRecord, error) {
	recs, err := s.repomanager.RefreshTokens(s.db).ListActive(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("error listing sessions: %w", err)
	}
	return recs, nil
}

// SweepExpired deletes refresh records whose expiry predates the retention
// window. Returns how many records were removed.
func (s *AuthService) SweepExpired(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention)
	n, err := s.repomanager.RefreshTokens(s.db).DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error sweeping refresh tokens: %w", err)
	}
	return n, nil
}

// --- helpers below ---

// errRotationLost aborts the rotation transaction when the conditional
// revoke observed an already-revoked record.
var errRotationLost = errors.New("rotation lost")

// handleReuse revokes the whole family of a reused record. The revocation
// side effect must complete even though the overall call fails.
func (s *AuthService) handleReuse(ctx context.Context, rec *models.RefreshRecord, dev device.Info) error {
	n, err := s.repomanager.RefreshTokens(s.db).RevokeFamily(ctx, rec.FamilyID, s.now())
	if err != nil {
		return fmt.Errorf("error revoking token family: %w", err)
	}

	obs.ObserveRefresh("reuse")
	obs.ObserveTokenReuse()
	s.recorder.Record(ctx, audit.KindTokenReuse,
		"user_id", rec.UserID, "family_id", rec.FamilyID,
		"revoked", n, "ip", dev.IPAddress, "device", dev.DeviceName)

	return common.ErrorTokenReuseDetected
}

type issuedRefresh struct {
	record *models.RefreshRecord
	token  string
}

// newRefreshRecord mints a refresh secret and the record holding its digest.
// The raw secret leaves this function only inside the composed token string.
func (s *AuthService) newRefreshRecord(userID, familyID string, dev device.Info) (*issuedRefresh, error) {
	secret, err := randx.NewSecret(refreshSecretSize)
	if err != nil {
		return nil, common.ErrorInternal
	}

	now := s.now()
	rec := &models.RefreshRecord{
		ID:            ids.New(),
		UserID:        userID,
		TokenHash:     randx.Digest(secret),
		FamilyID:      familyID,
		IPAddress:     dev.IPAddress,
		UserAgentHash: dev.UserAgentHash(),
		DeviceName:    dev.DeviceName,
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.refreshTokenValidityDuration),
	}

	return &issuedRefresh{record: rec, token: rec.ID + "." + secret}, nil
}

func (s *AuthService) generateAccessToken(userID string) (string, error) {
	return auth.GenerateToken(userID, nil, s.jwtSecret, s.accessTokenValidityDuration)
}

func (s *AuthService) generateTokenPair(ctx context.Context, db dbx.DBTX, userID, familyID string, dev device.Info) (*TokenPair, error) {
	access, err := s.generateAccessToken(userID)
	if err != nil {
		return nil, common.ErrorInternal
	}

	issued, err := s.newRefreshRecord(userID, familyID, dev)
	if err != nil {
		return nil, err
	}

	if err := s.repomanager.RefreshTokens(db).Create(ctx, issued.record); err != nil {
		return nil, common.ErrorInternal
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: issued.token,
		ExpiresIn:    s.accessTokenValidityDuration,
	}, nil
}

// splitRefreshToken splits the opaque wire form "<recordID>.<secret>".
func splitRefreshToken(token string) (recordID, secret string, ok bool) {
	recordID, secret, found := strings.Cut(token, ".")
	if !found || recordID == "" || secret == "" {
		return "", "", false
	}
	return recordID, secret, true
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
