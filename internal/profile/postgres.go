package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/epetrov/studyvault/internal/common"
	"github.com/epetrov/studyvault/internal/dbx"
	"github.com/epetrov/studyvault/internal/models"
)

// PostgresRepository implements profile storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByIdentity returns the profile row for the identity, or
// common.ErrRecordNotFound when none exists.
func (r *PostgresRepository) GetByIdentity(ctx context.Context, identity string) (*models.ProfileRecord, error) {
	query :=
		`SELECT identity, display_name, avatar_url, class, target_year, updated_at FROM profile_records
		 WHERE identity = $1
		 `

	rec := &models.ProfileRecord{}
	err := r.db.QueryRowContext(ctx, query, identity).
		Scan(&rec.Identity, &rec.DisplayName, &rec.AvatarURL, &rec.Class, &rec.TargetYear, &rec.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrRecordNotFound
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	return rec, nil
}

// Insert creates the profile row for a new identity.
func (r *PostgresRepository) Insert(ctx context.Context, rec *models.ProfileRecord) error {
	query :=
		`INSERT INTO profile_records (identity, display_name, avatar_url, class, target_year, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 `

	if _, err := r.db.ExecContext(ctx, query,
		rec.Identity, rec.DisplayName, rec.AvatarURL, rec.Class, rec.TargetYear); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return nil
}

// Update rewrites the profile row. Exactly one row must be affected;
// a missing row reports common.ErrRecordNotFound.
func (r *PostgresRepository) Update(ctx context.Context, rec *models.ProfileRecord) error {
	query :=
		`UPDATE profile_records
		 SET display_name = $2, avatar_url = $3, class = $4, target_year = $5, updated_at = now()
		 WHERE identity = $1
		 `

	res, err := r.db.ExecContext(ctx, query,
		rec.Identity, rec.DisplayName, rec.AvatarURL, rec.Class, rec.TargetYear)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrRecordNotFound
	}
	return nil
}
