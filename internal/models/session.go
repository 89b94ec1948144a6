// Package models defines the entity records shared across the StudyVault
// core: sessions, profiles, reconciled users, and asset metadata.
package models

// Identity is the opaque id issued by the credential provider, plus the
// fallback metadata the provider carries alongside it. The ID is immutable
// for the life of a session.
type Identity struct {
	ID    string
	Email string

	// Name and AvatarURL are provider-carried guesses used when no profile
	// record is available. The profile store remains authoritative.
	Name      string
	AvatarURL string
}

// SessionPhase is the lifecycle phase of the process-wide session.
type SessionPhase int

const (
	PhaseUnauthenticated SessionPhase = iota
	PhaseAuthenticating
	PhaseProfileSyncing
	PhaseReady
	PhaseSigningOut
)

func (p SessionPhase) String() string {
	switch p {
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseProfileSyncing:
		return "profile-syncing"
	case PhaseReady:
		return "ready"
	case PhaseSigningOut:
		return "signing-out"
	default:
		return "unknown"
	}
}

// Session is the process-wide authentication state. Exactly one Session value
// is live at a time; it is replaced wholesale on every credential-provider
// notification and torn down on explicit logout.
type Session struct {
	Identity *Identity
	Phase    SessionPhase
}
