package maintenance

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"todo-serverless/internal/observability"
)

type AttemptCleaner interface {
	CleanupStaleLoginAttempts(ctx context.Context, retention time.Duration, batchSize int, now time.Time) (int64, error)
}

// Sweeper drops in-memory entries that have lapsed by now.
type Sweeper interface {
	Cleanup(now time.Time) int
}

type Result struct {
	DeletedLoginAttempts int64          `json:"deleted_login_attempts"`
	Swept                map[string]int `json:"swept"`
}

type CleanupHandler struct {
	attempts              AttemptCleaner
	sweepers              map[string]Sweeper
	logger                *observability.Logger
	cronSecret            string
	loginAttemptRetention time.Duration
	batchSize             int
	now                   func() time.Time
}

func NewCleanupHandler(
	attempts AttemptCleaner,
	logger *observability.Logger,
	cronSecret string,
	loginAttemptRetention time.Duration,
	batchSize int,
) *CleanupHandler {
	return &CleanupHandler{
		attempts:              attempts,
		sweepers:              make(map[string]Sweeper),
		logger:                logger,
		cronSecret:            strings.TrimSpace(cronSecret),
		loginAttemptRetention: loginAttemptRetention,
		batchSize:             batchSize,
		now:                   time.Now,
	}
}

// WithSweeper registers an in-memory store to clean on every run.
func (h *CleanupHandler) WithSweeper(name string, sweeper Sweeper) *CleanupHandler {
	h.sweepers[name] = sweeper
	return h
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if !h.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	now := h.now().UTC()
	deleted, err := h.attempts.CleanupStaleLoginAttempts(r.Context(), h.loginAttemptRetention, h.batchSize, now)
	if err != nil {
		h.logger.Error("auth_cleanup_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	result := Result{DeletedLoginAttempts: deleted, Swept: make(map[string]int, len(h.sweepers))}
	for name, sweeper := range h.sweepers {
		result.Swept[name] = sweeper.Cleanup(now)
	}

	h.logger.Info("auth_cleanup_completed", map[string]any{
		"deleted_login_attempts": result.DeletedLoginAttempts,
		"swept":                  result.Swept,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"result": result,
	})
}

func (h *CleanupHandler) authorized(r *http.Request) bool {
	parts := strings.SplitN(strings.TrimSpace(r.Header.Get("Authorization")), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return false
	}
	presented := strings.TrimSpace(parts[1])
	return subtle.ConstantTimeCompare([]byte(presented), []byte(h.cronSecret)) == 1
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
