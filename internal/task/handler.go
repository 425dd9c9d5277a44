package task

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"

	"todo-serverless/internal/auth"
)

const maxJSONBodyBytes = 1 << 20

type Store interface {
	ListByOwner(ctx context.Context, userID int64) ([]Task, error)
	Get(ctx context.Context, userID, id int64) (Task, error)
	Create(ctx context.Context, userID int64, input Input) (Task, error)
	Update(ctx context.Context, userID, id int64, input Input) (Task, error)
	Delete(ctx context.Context, userID, id int64) error
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	tasks, err := h.store.ListByOwner(r.Context(), caller)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	if len(tasks) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	t, err := h.store.Get(r.Context(), caller, id)
	if err != nil {
		h.storeError(w, err, "failed to get task")
		return
	}

	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	input, ok := parseInput(w, r, caller)
	if !ok {
		return
	}
	if input.ID != 0 {
		writeError(w, http.StatusBadRequest, "id must not be set")
		return
	}

	t, err := h.store.Create(r.Context(), caller, input)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	input, ok := parseInput(w, r, caller)
	if !ok {
		return
	}
	if input.ID != 0 && input.ID != id {
		writeError(w, http.StatusBadRequest, "id in path and body do not match")
		return
	}

	t, err := h.store.Update(r.Context(), caller, id, input)
	if err != nil {
		h.storeError(w, err, "failed to update task")
		return
	}

	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), caller, id); err != nil {
		h.storeError(w, err, "failed to delete task")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) storeError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	sentry.CaptureException(err)
	writeError(w, http.StatusInternalServerError, message)
}

func callerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return 0, false
	}
	return identity.UserID, true
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return 0, false
	}
	return id, true
}

func parseInput(w http.ResponseWriter, r *http.Request, caller int64) (Input, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input Input
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return Input{}, false
	}

	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Due = strings.TrimSpace(input.Due)

	if input.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return Input{}, false
	}
	if !utf8.ValidString(input.Title) || len(input.Title) > 150 {
		writeError(w, http.StatusBadRequest, "title is invalid")
		return Input{}, false
	}
	if input.Description == "" {
		writeError(w, http.StatusBadRequest, "description is required")
		return Input{}, false
	}
	if !utf8.ValidString(input.Description) || len(input.Description) > 1000 {
		writeError(w, http.StatusBadRequest, "description is invalid")
		return Input{}, false
	}
	if _, err := time.Parse(DateLayout, input.Due); err != nil {
		writeError(w, http.StatusBadRequest, "due must be a YYYY-MM-DD date")
		return Input{}, false
	}
	if input.StatusID < StatusToDo || input.StatusID > StatusCompleted {
		writeError(w, http.StatusBadRequest, "status_id must be 1, 2 or 3")
		return Input{}, false
	}
	if input.CategoryID <= 0 {
		writeError(w, http.StatusBadRequest, "category_id must be > 0")
		return Input{}, false
	}
	if input.UserID != 0 && input.UserID != caller {
		writeError(w, http.StatusForbidden, "tasks can only be assigned to yourself")
		return Input{}, false
	}
	input.UserID = caller

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
