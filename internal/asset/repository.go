// Package asset implements the asset metadata store client and the upload
// pipeline that keeps it coherent with the blob store.
package asset

import (
	"context"

	"github.com/epetrov/studyvault/internal/models"
)

// Repository is the asset metadata store contract.
type Repository interface {
	Insert(ctx context.Context, rec *models.AssetRecord) error
	Delete(ctx context.Context, id string) error
	// ListByOwner returns at most limit records, most recent first.
	ListByOwner(ctx context.Context, owner string, limit int) ([]*models.AssetRecord, error)
}
