package models

// Completeness tags a ReconciledUser as built from a successful profile read
// (Full) or from identity-carried fallback fields only (Degraded). Callers
// must branch on it explicitly instead of probing optional fields.
type Completeness int

const (
	ProfileFull Completeness = iota
	ProfileDegraded
)

func (c Completeness) String() string {
	if c == ProfileDegraded {
		return "degraded"
	}
	return "full"
}

// ReconciledUser is the merged, application-facing view of identity plus
// profile. It is recomputed atomically every time the session transitions
// into Ready and is never partially updated.
type ReconciledUser struct {
	Identity    string
	DisplayName string
	Email       string
	AvatarURL   string
	Class       string
	TargetYear  int

	Completeness Completeness
}

// Degraded reports whether the user was built without a profile record.
func (u *ReconciledUser) Degraded() bool {
	return u.Completeness == ProfileDegraded
}
