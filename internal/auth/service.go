package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultTokenTTL      = 15 * time.Minute
	defaultLookupTimeout = 2 * time.Second
	defaultMaxAttempts   = 5
	defaultLockWindow    = 15 * time.Minute
)

// AttemptStore tracks consecutive failed logins per username.
type AttemptStore interface {
	GetLoginAttempt(ctx context.Context, username string) (LoginAttempt, error)
	RegisterFailedAttempt(ctx context.Context, username string, maxAttempts int, lockDuration time.Duration, now time.Time) (*time.Time, error)
	ResetLoginAttempt(ctx context.Context, username string) error
}

type Service struct {
	verifier      *CredentialVerifier
	tokens        *TokenService
	attempts      AttemptStore
	tokenTTL      time.Duration
	lookupTimeout time.Duration
	maxAttempts   int
	lockDuration  time.Duration
	now           func() time.Time
}

func NewService(verifier *CredentialVerifier, tokens *TokenService) *Service {
	return &Service{
		verifier:      verifier,
		tokens:        tokens,
		tokenTTL:      defaultTokenTTL,
		lookupTimeout: defaultLookupTimeout,
		maxAttempts:   defaultMaxAttempts,
		lockDuration:  defaultLockWindow,
		now:           time.Now,
	}
}

func (s *Service) WithSecurityConfig(maxAttempts int, lockDuration time.Duration, tokenTTL time.Duration, lookupTimeout time.Duration) {
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
	if lockDuration > 0 {
		s.lockDuration = lockDuration
	}
	if tokenTTL > 0 {
		s.tokenTTL = tokenTTL
	}
	if lookupTimeout > 0 {
		s.lookupTimeout = lookupTimeout
	}
}

// WithAttemptStore enables per-username lockout. Without one, failed logins
// are not counted.
func (s *Service) WithAttemptStore(store AttemptStore) *Service {
	s.attempts = store
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}

// Authenticate verifies the credentials and mints a session token for the
// stored username. Every credential problem surfaces as ErrAuthenticationFailed.
func (s *Service) Authenticate(ctx context.Context, username, password string) (LoginResponse, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" || password == "" {
		return LoginResponse{}, ErrAuthenticationFailed
	}

	now := s.now().UTC()
	if s.attempts != nil {
		attemptCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
		attempt, err := s.attempts.GetLoginAttempt(attemptCtx, username)
		cancel()
		if err != nil {
			return LoginResponse{}, fmt.Errorf("%w: %w: %w", ErrAuthenticationFailed, errUserLookup, err)
		}
		if attempt.LockedUntil != nil && now.Before(*attempt.LockedUntil) {
			return LoginResponse{}, ErrLoginLocked{Until: *attempt.LockedUntil}
		}
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	identity, err := s.verifier.Verify(lookupCtx, username, password)
	cancel()
	if err != nil {
		if errors.Is(err, errUserLookup) || s.attempts == nil {
			return LoginResponse{}, err
		}
		attemptCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
		lockedUntil, regErr := s.attempts.RegisterFailedAttempt(attemptCtx, username, s.maxAttempts, s.lockDuration, now)
		cancel()
		if regErr != nil {
			return LoginResponse{}, fmt.Errorf("%w: %w: %w", ErrAuthenticationFailed, errUserLookup, regErr)
		}
		if lockedUntil != nil {
			return LoginResponse{}, ErrLoginLocked{Until: *lockedUntil}
		}
		return LoginResponse{}, err
	}

	if s.attempts != nil {
		if err := s.attempts.ResetLoginAttempt(ctx, username); err != nil {
			return LoginResponse{}, err
		}
	}

	token, err := s.tokens.IssueFor(identity.Username, identity.UserID, s.tokenTTL)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("issue session token: %w", err)
	}

	return LoginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(s.tokenTTL.Seconds()),
	}, nil
}
