package repomanager

import (
	"context"
	"database/sql"

	"github.com/akorchagin/authd/internal/dbx"
	"github.com/akorchagin/authd/internal/server/repositories/passwordresets"
	"github.com/akorchagin/authd/internal/server/repositories/refreshtokens"
	"github.com/akorchagin/authd/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	PasswordResets(db dbx.DBTX) passwordresets.Repository
}
