package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"todo-serverless/internal/observability"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	service  *Service
	denylist *Denylist
	logger   *observability.Logger
}

func NewHandler(service *Service, logger *observability.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// WithDenylist makes Logout revoke the caller's token.
func (h *Handler) WithDenylist(denylist *Denylist) *Handler {
	h.denylist = denylist
	return h
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body loginRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	body.Username = strings.TrimSpace(body.Username)
	if body.Username == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	resp, err := h.service.Authenticate(r.Context(), body.Username, body.Password)
	if err != nil {
		if errors.Is(err, ErrAuthenticationFailed) {
			fields := map[string]any{"ip": observability.ClientIP(r)}
			if errors.Is(err, errUserLookup) {
				fields["error"] = err.Error()
			}
			h.logger.Warn("login_failed", fields)
			writeError(w, http.StatusUnauthorized, "authentication failed")
			return
		}
		var lockedErr ErrLoginLocked
		if errors.As(err, &lockedErr) {
			retryAfter := int(time.Until(lockedErr.Until).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			h.logger.Warn("login_locked", map[string]any{"ip": observability.ClientIP(r)})
			writeError(w, http.StatusTooManyRequests, "login temporarily locked")
			return
		}

		sentry.CaptureException(err)
		h.logger.Error("login_error", map[string]any{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "failed to login")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Logout revokes the token that authenticated the request. Mount it behind
// Gate.Middleware and RequireIdentity.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.denylist == nil {
		writeError(w, http.StatusNotFound, "token revocation is disabled")
		return
	}

	h.denylist.Revoke(identity.TokenID, identity.ExpiresAt)
	h.logger.Info("logout", map[string]any{"user_id": identity.UserID})

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
