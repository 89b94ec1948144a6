// Package profile implements the profile store client: a record store of
// application profiles keyed uniquely by identity id.
package profile

import (
	"context"

	"github.com/epetrov/studyvault/internal/models"
)

// Repository is the profile store contract.
//
// GetByIdentity returns common.ErrRecordNotFound when no row exists for the
// identity; that is an expected state and must be distinguished from a
// genuine I/O failure, which is reported as a wrapped common.ErrStoreUnavailable.
type Repository interface {
	GetByIdentity(ctx context.Context, identity string) (*models.ProfileRecord, error)
	Insert(ctx context.Context, rec *models.ProfileRecord) error
	Update(ctx context.Context, rec *models.ProfileRecord) error
}
