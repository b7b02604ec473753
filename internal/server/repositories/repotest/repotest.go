// Package repotest provides in-memory repository implementations for tests.
// The conditional updates mirror the SQL semantics of the Postgres
// repositories: revoke/consume succeed at most once per record.
package repotest

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/akorchagin/authd/internal/common"
	"github.com/akorchagin/authd/internal/dbx"
	"github.com/akorchagin/authd/internal/server/models"
	"github.com/akorchagin/authd/internal/server/repositories/passwordresets"
	"github.com/akorchagin/authd/internal/server/repositories/refreshtokens"
	"github.com/akorchagin/authd/internal/server/repositories/users"
)

// UserRepo is an in-memory users.Repository.
type UserRepo struct {
	ByID map[string]*models.User

	// Updated records password-hash updates by user id.
	Updated map[string]string
}

func NewUserRepo() *UserRepo {
	return &UserRepo{ByID: make(map[string]*models.User), Updated: make(map[string]string)}
}

// Add seeds a user, generating an id when missing.
func (r *UserRepo) Add(u *models.User) *models.User {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	r.ByID[u.ID] = u
	return u
}

func (r *UserRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	u := *user
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now()
	r.ByID[u.ID] = &u
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range r.ByID {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *UserRepo) UpdatePasswordHash(ctx context.Context, userID string, passwordHash string) error {
	u, ok := r.ByID[userID]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = passwordHash
	r.Updated[userID] = passwordHash
	return nil
}

// RefreshRepo is an in-memory refreshtokens.Repository.
type RefreshRepo struct {
	Records map[string]*models.RefreshRecord
}

func NewRefreshRepo() *RefreshRepo {
	return &RefreshRepo{Records: make(map[string]*models.RefreshRecord)}
}

func (r *RefreshRepo) Create(ctx context.Context, rec *models.RefreshRecord) error {
	c := *rec
	r.Records[rec.ID] = &c
	return nil
}

func (r *RefreshRepo) FindByID(ctx context.Context, id string) (*models.RefreshRecord, error) {
	rec, ok := r.Records[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *rec
	return &c, nil
}

func (r *RefreshRepo) RevokeAndLink(ctx context.Context, id string, replacedByID string, now time.Time) (bool, error) {
	rec, ok := r.Records[id]
	if !ok || rec.RevokedAt != nil {
		return false, nil
	}
	rec.RevokedAt = &now
	rec.ReplacedByID = &replacedByID
	return true, nil
}

func (r *RefreshRepo) RevokeIfActive(ctx context.Context, id string, now time.Time) (bool, error) {
	rec, ok := r.Records[id]
	if !ok || rec.RevokedAt != nil {
		return false, nil
	}
	rec.RevokedAt = &now
	return true, nil
}

func (r *RefreshRepo) RevokeFamily(ctx context.Context, familyID string, now time.Time) (int64, error) {
	var n int64
	for _, rec := range r.Records {
		if rec.FamilyID == familyID && rec.RevokedAt == nil {
			rec.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (r *RefreshRepo) RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	var n int64
	for _, rec := range r.Records {
		if rec.UserID == userID && rec.RevokedAt == nil {
			rec.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (r *RefreshRepo) ListActive(ctx context.Context, userID string, now time.Time) ([]*models.RefreshRecord, error) {
	var out []*models.RefreshRecord
	for _, rec := range r.Records {
		if rec.UserID == userID && rec.Active(now) {
			c := *rec
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}

func (r *RefreshRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for id, rec := range r.Records {
		if rec.ExpiresAt.Before(cutoff) {
			delete(r.Records, id)
			n++
		}
	}
	return n, nil
}

// ResetRepo is an in-memory passwordresets.Repository.
type ResetRepo struct {
	Records map[string]*models.PasswordResetRecord
}

func NewResetRepo() *ResetRepo {
	return &ResetRepo{Records: make(map[string]*models.PasswordResetRecord)}
}

func (r *ResetRepo) Create(ctx context.Context, rec *models.PasswordResetRecord) error {
	c := *rec
	r.Records[rec.ID] = &c
	return nil
}

func (r *ResetRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetRecord, error) {
	for _, rec := range r.Records {
		if rec.TokenHash == tokenHash {
			c := *rec
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *ResetRepo) ConsumeIfUnused(ctx context.Context, id string, now time.Time) (bool, error) {
	rec, ok := r.Records[id]
	if !ok || rec.ConsumedAt != nil {
		return false, nil
	}
	rec.ConsumedAt = &now
	return true, nil
}

func (r *ResetRepo) InvalidateActiveForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	var n int64
	for _, rec := range r.Records {
		if rec.UserID == userID && rec.ConsumedAt == nil {
			rec.ConsumedAt = &now
			n++
		}
	}
	return n, nil
}

func (r *ResetRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for id, rec := range r.Records {
		if rec.ExpiresAt.Before(cutoff) {
			delete(r.Records, id)
			n++
		}
	}
	return n, nil
}

// Manager is an in-memory repomanager.RepositoryManager. It hands out the
// same repositories regardless of the DBTX, so transactional code paths
// exercise the fakes directly.
type Manager struct {
	UserRepo    *UserRepo
	RefreshRepo *RefreshRepo
	ResetRepo   *ResetRepo
}

func NewManager() *Manager {
	return &Manager{
		UserRepo:    NewUserRepo(),
		RefreshRepo: NewRefreshRepo(),
		ResetRepo:   NewResetRepo(),
	}
}

func (m *Manager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }
func (m *Manager) Users(db dbx.DBTX) users.Repository                  { return m.UserRepo }
func (m *Manager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository  { return m.RefreshRepo }
func (m *Manager) PasswordResets(db dbx.DBTX) passwordresets.Repository {
	return m.ResetRepo
}
