// Package storex wires the Postgres-backed record stores: connection
// opening, embedded migrations, and repository construction over dbx.DBTX.
package storex

import (
	"context"
	"database/sql"

	"github.com/epetrov/studyvault/internal/asset"
	"github.com/epetrov/studyvault/internal/dbx"
	"github.com/epetrov/studyvault/internal/profile"
)

// RepositoryManager hands out repositories bound to a *sql.DB or *sql.Tx.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Profiles(db dbx.DBTX) profile.Repository
	Assets(db dbx.DBTX) asset.Repository
}
