package auth

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-serverless/internal/observability"
)

func newTestHandler(t *testing.T) (*Handler, *TokenService, *fakeUserStore) {
	t.Helper()
	users := newFakeUserStore()
	users.add(1, "alice", "p1")
	svc, tokens, _ := newTestService(t, users)
	logger := observability.NewLoggerWithWriter(io.Discard, slog.LevelDebug)
	return NewHandler(svc, logger), tokens, users
}

func postLogin(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/authenticate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	return rec
}

func TestHandler_LoginSuccess(t *testing.T) {
	h, tokens, _ := newTestHandler(t)

	rec := postLogin(h, `{"username":"alice","password":"p1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	subject, err := tokens.Validate(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)
}

func TestHandler_LoginFailureIsGeneric(t *testing.T) {
	h, _, _ := newTestHandler(t)

	wrong := postLogin(h, `{"username":"alice","password":"wrong"}`)
	unknown := postLogin(h, `{"username":"nobody","password":"wrong"}`)

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.JSONEq(t, `{"error":"authentication failed"}`, wrong.Body.String())
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
}

func TestHandler_LoginBadRequests(t *testing.T) {
	h, _, _ := newTestHandler(t)

	for name, body := range map[string]string{
		"not json":      `{`,
		"unknown field": `{"username":"alice","password":"p1","role":"admin"}`,
		"missing field": `{"username":"alice"}`,
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, postLogin(h, body).Code)
		})
	}
}

func TestHandler_LoginLocked(t *testing.T) {
	h, _, _ := newTestHandler(t)
	attempts := newFakeAttemptStore()
	attempts.locks["alice"] = time.Now().Add(time.Hour)
	h.service.WithAttemptStore(attempts).WithClock(time.Now)

	rec := postLogin(h, `{"username":"alice","password":"p1"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestHandler_LoginAttemptStoreDown(t *testing.T) {
	h, _, _ := newTestHandler(t)
	attempts := newFakeAttemptStore()
	attempts.getErr = errors.New("connection refused")
	h.service.WithAttemptStore(attempts)

	rec := postLogin(h, `{"username":"alice","password":"p1"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"authentication failed"}`, rec.Body.String())
}

func TestHandler_Logout(t *testing.T) {
	h, _, _ := newTestHandler(t)
	denylist := NewDenylist()
	h.WithDenylist(denylist)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: 1, Username: "alice", TokenID: "jti-1", ExpiresAt: time.Now().Add(time.Hour)}))
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, denylist.IsRevoked("jti-1"))
}

func TestHandler_LogoutRequiresIdentity(t *testing.T) {
	h, _, _ := newTestHandler(t)
	h.WithDenylist(NewDenylist())

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
