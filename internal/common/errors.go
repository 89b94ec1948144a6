// Package common defines shared constants and sentinel errors used across
// StudyVault components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Credential-layer errors, surfaced directly to login/signup callers.
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrRateLimited         = errors.New("rate limited")
	ErrProviderUnavailable = errors.New("credential provider unavailable")
	ErrEmailTaken          = errors.New("email already registered")

	// Session-layer errors.
	ErrInvalidToken     = errors.New("invalid token")
	ErrNotAuthenticated = errors.New("not authenticated")

	// Record-store errors. ErrRecordNotFound is an expected state (a fresh
	// signup may not have a profile row yet) and must never be logged as an
	// error-class event; ErrStoreUnavailable is a genuine I/O failure.
	ErrRecordNotFound   = errors.New("record not found")
	ErrStoreUnavailable = errors.New("record store unavailable")

	// Blob-layer errors.
	ErrBlobWriteFailed  = errors.New("blob write failed")
	ErrBlobDeleteFailed = errors.New("blob delete failed")
)
