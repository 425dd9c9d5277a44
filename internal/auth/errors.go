package auth

import (
	"errors"
	"time"
)

var (
	ErrAuthenticationFailed = errors.New("authentication failed")

	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("token expired")
	ErrUnknownSubject   = errors.New("token subject does not exist")
	ErrRevoked          = errors.New("token revoked")

	// ErrConfiguration is fatal at startup, never a per-request outcome.
	ErrConfiguration = errors.New("auth configuration error")

	ErrUserNotFound = errors.New("user not found")

	// errUserLookup marks a user or attempt store failure, as opposed to bad
	// credentials.
	errUserLookup = errors.New("user lookup failed")
)

type ErrLoginLocked struct {
	Until time.Time
}

func (e ErrLoginLocked) Error() string {
	return "login temporarily locked"
}

// rejectionKind names a gate failure for logs only.
func rejectionKind(err error) string {
	switch {
	case errors.Is(err, ErrMalformedToken):
		return "malformed_token"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrUnknownSubject):
		return "unknown_subject"
	case errors.Is(err, ErrRevoked):
		return "revoked"
	default:
		return "lookup_failed"
	}
}
