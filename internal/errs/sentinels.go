// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSessionExpired indicates a search session is unknown or past its TTL.
	ErrSessionExpired = errors.New("session expired")

	// ErrNotBanned indicates an unban request for an identity that is not banned.
	ErrNotBanned = errors.New("not banned")

	// ErrStorage indicates a durable-store failure; must never degrade to a silent allow/deny.
	ErrStorage = errors.New("storage failure")
)
