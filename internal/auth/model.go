package auth

import "time"

// UserRecord is the part of a stored user the auth subsystem reads.
type UserRecord struct {
	ID           int64
	Username     string
	PasswordHash string
}

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID    int64
	Username  string
	TokenID   string
	ExpiresAt time.Time
}

type LoginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}

type LoginAttempt struct {
	Username       string
	FailedAttempts int
	LockedUntil    *time.Time
}
