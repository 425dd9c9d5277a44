package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the session token payload: sub, iat, exp, a jti for revocation
// and uid, the id of the account the subject named at issuance.
type Claims struct {
	UserID int64 `json:"uid,omitempty"`
	jwt.RegisteredClaims
}

func (c Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time.UTC()
}

func (c Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time.UTC()
}

// signatureEncoding rejects non-zero trailing bits so every distinct
// signature segment decodes to distinct bytes.
var signatureEncoding = base64.RawURLEncoding.Strict()

// TokenService mints and verifies compact HS256 session tokens. Verification
// is local: no store round-trip, no shared mutable state.
type TokenService struct {
	key    *SigningKey
	now    func() time.Time
	parser *jwt.Parser
}

func NewTokenService(key *SigningKey) *TokenService {
	s := &TokenService{key: key}
	return s.WithClock(time.Now)
}

// WithClock replaces the time source used for iat, exp and expiry checks.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(now),
	)
	return s
}

// Issue mints a token for subject without a uid claim. Such a token validates
// but is not admitted by the Gate. See IssueFor.
func (s *TokenService) Issue(subject string, ttl time.Duration) (string, error) {
	return s.IssueFor(subject, 0, ttl)
}

// IssueFor mints a token for subject bound to userID. The issue time is
// truncated to whole seconds, the precision of iat and exp, so the token
// lives between ttl-1s and ttl from the moment of the call.
func (s *TokenService) IssueFor(subject string, userID int64, ttl time.Duration) (string, error) {
	if len(s.key.bytes()) == 0 {
		return "", fmt.Errorf("%w: signing key unavailable", ErrConfiguration)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}

	now := s.now().UTC().Truncate(jwt.TimePrecision)
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        id.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	encoded, err := token.SignedString(s.key.bytes())
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}

	return encoded, nil
}

// Validate returns the subject of a token that is well formed, signed with
// the current key and not yet expired.
func (s *TokenService) Validate(token string) (string, error) {
	claims, err := s.ValidateClaims(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// ValidateClaims is Validate returning the full verified payload. Claims are
// never handed out for a token that failed any check.
func (s *TokenService) ValidateClaims(token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Claims{}, ErrMalformedToken
	}

	// The MAC is checked over the raw segments before anything is decoded,
	// so any altered byte in header, payload or signature is a signature failure.
	signature, err := signatureEncoding.DecodeString(parts[2])
	if err != nil {
		return Claims{}, ErrInvalidSignature
	}
	if err := jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], signature, s.key.bytes()); err != nil {
		return Claims{}, ErrInvalidSignature
	}

	var claims Claims
	if _, err := s.parser.ParseWithClaims(token, &claims, s.keyFunc); err != nil {
		return Claims{}, classifyParseError(err)
	}
	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrMalformedToken)
	}

	return claims, nil
}

func (s *TokenService) keyFunc(*jwt.Token) (any, error) {
	return s.key.bytes(), nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
}
