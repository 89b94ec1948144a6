package asset

import (
	"context"
	"fmt"

	"github.com/epetrov/studyvault/internal/common"
	"github.com/epetrov/studyvault/internal/dbx"
	"github.com/epetrov/studyvault/internal/models"
)

// PostgresRepository implements asset metadata storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert creates an asset record. StoragePath is the mandatory join key to
// the blob store; the unique constraint on it backs the no-collision
// guarantee of the path derivation scheme.
func (r *PostgresRepository) Insert(ctx context.Context, rec *models.AssetRecord) error {
	query :=
		`INSERT INTO asset_records (id, owner, file_name, kind, size_text, storage_path, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 `

	if _, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.Owner, rec.FileName, string(rec.Kind), rec.SizeText, rec.StoragePath); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return nil
}

// Delete removes the asset record by id. A missing row reports
// common.ErrRecordNotFound.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM asset_records WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
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

// ListByOwner returns the owner's records ordered by recency, bounded by
// limit so a long-running account never yields an unbounded list.
func (r *PostgresRepository) ListByOwner(ctx context.Context, owner string, limit int) ([]*models.AssetRecord, error) {
	query :=
		`SELECT id, owner, file_name, kind, size_text, storage_path, created_at FROM asset_records
		 WHERE owner = $1
		 ORDER BY created_at DESC
		 LIMIT $2
		 `

	rows, err := r.db.QueryContext(ctx, query, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var result []*models.AssetRecord
	for rows.Next() {
		var item models.AssetRecord
		var kind string
		if err := rows.Scan(&item.ID, &item.Owner, &item.FileName, &kind, &item.SizeText, &item.StoragePath, &item.CreatedAt); err != nil {
			return nil, err
		}
		item.Kind = models.AssetKind(kind)
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
