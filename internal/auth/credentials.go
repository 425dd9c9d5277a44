package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// UserStore is the external user record lookup. Implementations return
// ErrUserNotFound when no user has the given username.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (UserRecord, error)
}

// compareHash is a test seam for bcrypt.CompareHashAndPassword.
var compareHash = bcrypt.CompareHashAndPassword

func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CredentialVerifier checks a username/password pair against the user store.
// Unknown users and wrong passwords produce the same error after the same
// amount of hashing work.
type CredentialVerifier struct {
	users     UserStore
	dummyHash []byte
}

// NewCredentialVerifier prepares a throwaway hash at the given cost so that
// lookups for unknown usernames still run a full bcrypt comparison.
func NewCredentialVerifier(users UserStore, cost int) (*CredentialVerifier, error) {
	filler := make([]byte, 32)
	if _, err := rand.Read(filler); err != nil {
		return nil, fmt.Errorf("generate dummy password: %w", err)
	}

	// bcrypt only reads the first 72 bytes; 32 random bytes is well inside that.
	dummy, err := bcrypt.GenerateFromPassword(filler, cost)
	if err != nil {
		return nil, fmt.Errorf("%w: prepare dummy hash: %v", ErrConfiguration, err)
	}

	return &CredentialVerifier{users: users, dummyHash: dummy}, nil
}

func (v *CredentialVerifier) Verify(ctx context.Context, username, password string) (Identity, error) {
	user, err := v.users.FindByUsername(ctx, username)
	if err != nil {
		_ = compareHash(v.dummyHash, []byte(password))
		if errors.Is(err, ErrUserNotFound) {
			return Identity{}, ErrAuthenticationFailed
		}
		return Identity{}, fmt.Errorf("%w: %w: %w", ErrAuthenticationFailed, errUserLookup, err)
	}

	if err := compareHash([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Identity{}, ErrAuthenticationFailed
	}

	return Identity{UserID: user.ID, Username: user.Username}, nil
}
