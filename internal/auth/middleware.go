package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"todo-serverless/internal/observability"
)

type contextKey string

const identityKey contextKey = "auth_identity"

// Gate resolves bearer tokens into identities before resource handlers run.
type Gate struct {
	tokens        *TokenService
	users         UserStore
	logger        *observability.Logger
	revocations   Revocations
	cache         *ValidationCache
	lookupTimeout time.Duration
	now           func() time.Time
}

func NewGate(tokens *TokenService, users UserStore, logger *observability.Logger) *Gate {
	return &Gate{
		tokens:        tokens,
		users:         users,
		logger:        logger,
		lookupTimeout: defaultLookupTimeout,
		now:           time.Now,
	}
}

func (g *Gate) WithRevocations(revocations Revocations) *Gate {
	g.revocations = revocations
	return g
}

func (g *Gate) WithCache(cache *ValidationCache) *Gate {
	g.cache = cache
	return g
}

func (g *Gate) WithLookupTimeout(timeout time.Duration) *Gate {
	if timeout > 0 {
		g.lookupTimeout = timeout
	}
	return g
}

// WithClock sets the time source for cache lifetimes. Token expiry is
// governed by the TokenService clock.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Authenticate runs every check a bearer token must pass: signature and
// expiry, revocation, and existence of the subject right now.
func (g *Gate) Authenticate(ctx context.Context, token string) (Identity, error) {
	now := g.now()

	var (
		claims Claims
		cached bool
	)
	if g.cache != nil {
		claims, cached = g.cache.Get(token, now)
	}
	if !cached {
		var err error
		claims, err = g.tokens.ValidateClaims(token)
		if err != nil {
			return Identity{}, err
		}
		if g.cache != nil {
			g.cache.Put(token, claims, now)
		}
	}

	if g.revocations != nil && claims.ID != "" && g.revocations.IsRevoked(claims.ID) {
		return Identity{}, ErrRevoked
	}

	lookupCtx, cancel := context.WithTimeout(ctx, g.lookupTimeout)
	defer cancel()

	user, err := g.users.FindByUsername(lookupCtx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Identity{}, ErrUnknownSubject
		}
		return Identity{}, fmt.Errorf("lookup token subject: %w", err)
	}
	// A username freed by deletion or rename may now belong to another account.
	if user.ID != claims.UserID {
		return Identity{}, ErrUnknownSubject
	}

	return Identity{
		UserID:    user.ID,
		Username:  user.Username,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAtTime(),
	}, nil
}

// Middleware admits requests without an Authorization header unchanged and
// attaches an Identity to those carrying a valid bearer token. Any presented
// token that fails is rejected with 401 before the next handler runs.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(header)
		if !ok {
			g.reject(w, r, ErrMalformedToken)
			return
		}

		identity, err := g.Authenticate(r.Context(), token)
		if err != nil {
			g.reject(w, r, err)
			return
		}

		observability.SetRequestUser(r.Context(), identity.UserID)
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, err error) {
	kind := rejectionKind(err)
	fields := map[string]any{
		"kind": kind,
		"path": r.URL.Path,
		"ip":   observability.ClientIP(r),
	}
	if kind == "lookup_failed" {
		fields["error"] = err.Error()
		g.logger.Error("auth_rejected", fields)
		observability.CaptureError(err, map[string]string{"component": "auth_gate"})
	} else {
		g.logger.Warn("auth_rejected", fields)
	}

	writeError(w, http.StatusUnauthorized, "unauthorized")
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

// RequireIdentity rejects requests the gate left unauthenticated.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}
