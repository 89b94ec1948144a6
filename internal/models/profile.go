package models

import "time"

// ProfileRecord is the application profile row owned by the profile store,
// keyed uniquely by identity. It may be absent even when an identity exists
// (new signup race, or a failed store write); that is a valid state, not
// corruption.
type ProfileRecord struct {
	Identity    string
	DisplayName string
	AvatarURL   string
	Class       string
	TargetYear  int
	UpdatedAt   time.Time
}

// ProfileSeed carries the initial profile fields collected at signup.
type ProfileSeed struct {
	DisplayName string
	Class       string
	TargetYear  int
}

// ProfilePatch is a partial profile update; nil fields are left unchanged.
type ProfilePatch struct {
	DisplayName *string
	AvatarURL   *string
	Class       *string
	TargetYear  *int
}
