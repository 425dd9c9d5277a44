package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"

	"todo-serverless/internal/auth"
)

var usernameRegex = regexp.MustCompile(`^[a-z0-9_.-]{3,32}$`)

const (
	maxJSONBodyBytes = 1 << 20
	minPasswordBytes = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordBytes = 72
)

type Store interface {
	List(ctx context.Context) ([]User, error)
	GetByID(ctx context.Context, id int64) (User, error)
	Create(ctx context.Context, username, passwordHash string) (User, error)
	Update(ctx context.Context, id int64, username, passwordHash string) (User, error)
	Delete(ctx context.Context, id int64) error
}

type Handler struct {
	store      Store
	bcryptCost int
}

func NewHandler(store Store, bcryptCost int) *Handler {
	return &Handler{store: store, bcryptCost: bcryptCost}
}

// ValidateCredentials applies the registration rules for usernames and passwords.
func ValidateCredentials(username, password string) error {
	if !usernameRegex.MatchString(username) {
		return errors.New("username format is invalid")
	}
	if len(password) < minPasswordBytes || len(password) > maxPasswordBytes {
		return fmt.Errorf("password must be %d to %d bytes", minPasswordBytes, maxPasswordBytes)
	}
	return nil
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.List(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if len(users) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	u, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}

	writeJSON(w, http.StatusOK, u)
}

// CreateUser is public registration.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	input, ok := parseInput(w, r)
	if !ok {
		return
	}
	if input.ID != 0 {
		writeError(w, http.StatusBadRequest, "id must not be set")
		return
	}

	hash, err := auth.HashPassword(input.Password, h.bcryptCost)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	u, err := h.store.Create(r.Context(), input.Username, hash)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			writeError(w, http.StatusConflict, "username already taken")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if !h.isSelf(w, r, id) {
		return
	}

	input, ok := parseInput(w, r)
	if !ok {
		return
	}
	if input.ID != 0 && input.ID != id {
		writeError(w, http.StatusBadRequest, "id in path and body do not match")
		return
	}

	hash, err := auth.HashPassword(input.Password, h.bcryptCost)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}

	u, err := h.store.Update(r.Context(), id, input.Username, hash)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, ErrConflict):
			writeError(w, http.StatusConflict, "username already taken")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to update user")
		}
		return
	}

	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if !h.isSelf(w, r, id) {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// isSelf allows account changes only on the caller's own record.
func (h *Handler) isSelf(w http.ResponseWriter, r *http.Request, id int64) bool {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return false
	}
	if identity.UserID != id {
		writeError(w, http.StatusForbidden, "cannot modify another user")
		return false
	}
	return true
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return id, true
}

func parseInput(w http.ResponseWriter, r *http.Request) (Input, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input Input
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return Input{}, false
	}

	input.Username = strings.TrimSpace(strings.ToLower(input.Username))
	if err := ValidateCredentials(input.Username, input.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return Input{}, false
	}

	return input, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
