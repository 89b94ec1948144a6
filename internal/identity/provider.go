// Package identity contains the credential provider contract, a
// Postgres-backed provider implementation, and the session manager that
// reconciles provider sessions with application profile records.
package identity

import (
	"context"

	"github.com/epetrov/studyvault/internal/models"
)

// EventKind classifies credential-provider notifications.
type EventKind int

const (
	EventSignedIn EventKind = iota
	EventSignedOut
	EventTokenRefreshed
	EventMetadataUpdated
)

func (k EventKind) String() string {
	switch k {
	case EventSignedIn:
		return "signed-in"
	case EventSignedOut:
		return "signed-out"
	case EventTokenRefreshed:
		return "token-refreshed"
	case EventMetadataUpdated:
		return "metadata-updated"
	default:
		return "unknown"
	}
}

// Event is one credential-provider notification. Identity carries the latest
// identity state known to the provider and is nil for EventSignedOut.
type Event struct {
	Kind     EventKind
	Identity *models.Identity
}

// Metadata is a partial update of the identity-carried fallback metadata;
// nil fields are left unchanged.
type Metadata struct {
	Name      *string
	AvatarURL *string
}

// Provider is the credential provider contract. It issues sessions and
// notifies about session changes; it never mutates application data.
//
// Errors: SignIn fails with common.ErrInvalidCredentials,
// common.ErrRateLimited, or common.ErrProviderUnavailable; SignUp
// additionally with common.ErrEmailTaken.
//
// Events returns the notification channel consumed by the session manager's
// reconciliation loop; the provider closes it when shut down.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*models.Identity, error)
	SignUp(ctx context.Context, email, password string, meta Metadata) (*models.Identity, error)
	SignOut(ctx context.Context) error
	UpdateMetadata(ctx context.Context, patch Metadata) error
	Events() <-chan Event
}
