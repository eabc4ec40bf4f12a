package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/bughunt/internal/dbx"
	"github.com/dmitrijs2005/bughunt/internal/server/repositories/bugs"
	"github.com/dmitrijs2005/bughunt/internal/server/repositories/screenshots"
	"github.com/dmitrijs2005/bughunt/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a *sql.DB or *sql.Tx so
// services can run the same code inside and outside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Bugs(db dbx.DBTX) bugs.Repository
	Screenshots(db dbx.DBTX) screenshots.Repository
}
