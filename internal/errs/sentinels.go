// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across store/service/transport layers.
var (
	// ErrNotFound indicates the requested note or user does not exist (or vanished before a write landed).
	ErrNotFound = errors.New("not found")

	// ErrStore indicates a network or permission failure of the note store.
	ErrStore = errors.New("store error")

	// ErrGateway indicates an AI completion failure: missing credential, non-2xx status or malformed payload.
	ErrGateway = errors.New("gateway error")

	// ErrValidation indicates malformed input rejected before reaching storage.
	ErrValidation = errors.New("validation")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrSessionClosed is returned by a sync session after Shutdown.
	ErrSessionClosed = errors.New("session closed")
)
