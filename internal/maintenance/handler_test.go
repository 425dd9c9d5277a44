package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-serverless/internal/observability"
)

type fakeCleaner struct {
	deleted   int64
	err       error
	retention time.Duration
	batch     int
}

func (f *fakeCleaner) CleanupStaleLoginAttempts(ctx context.Context, retention time.Duration, batchSize int, now time.Time) (int64, error) {
	f.retention = retention
	f.batch = batchSize
	return f.deleted, f.err
}

type countingSweeper struct{ n int }

func (s countingSweeper) Cleanup(now time.Time) int { return s.n }

func newHandler(cleaner AttemptCleaner, secret string) *CleanupHandler {
	logger := observability.NewLoggerWithWriter(io.Discard, slog.LevelInfo)
	return NewCleanupHandler(cleaner, logger, secret, 30*24*time.Hour, 250)
}

func call(h *CleanupHandler, method, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/internal/maintenance/cleanup", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func TestCleanupHandler_Disabled(t *testing.T) {
	rec := call(newHandler(&fakeCleaner{}, ""), http.MethodPost, "Bearer anything")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCleanupHandler_Unauthorized(t *testing.T) {
	h := newHandler(&fakeCleaner{}, "cron-secret")

	for _, header := range []string{"", "Bearer wrong", "Basic cron-secret", "Bearer cron-secret-extra"} {
		assert.Equal(t, http.StatusUnauthorized, call(h, http.MethodPost, header).Code, header)
	}
	assert.Equal(t, http.StatusMethodNotAllowed, call(h, http.MethodDelete, "Bearer cron-secret").Code)
}

func TestCleanupHandler_Success(t *testing.T) {
	cleaner := &fakeCleaner{deleted: 4}
	h := newHandler(cleaner, "cron-secret").
		WithSweeper("denylist", countingSweeper{n: 2}).
		WithSweeper("validation_cache", countingSweeper{n: 5})

	rec := call(h, http.MethodGet, "Bearer cron-secret")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string `json:"status"`
		Result Result `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, int64(4), body.Result.DeletedLoginAttempts)
	assert.Equal(t, map[string]int{"denylist": 2, "validation_cache": 5}, body.Result.Swept)
	assert.Equal(t, 250, cleaner.batch)
	assert.Equal(t, 30*24*time.Hour, cleaner.retention)
}

func TestCleanupHandler_StoreFailure(t *testing.T) {
	h := newHandler(&fakeCleaner{err: errors.New("db down")}, "cron-secret")
	rec := call(h, http.MethodPost, "Bearer cron-secret")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
