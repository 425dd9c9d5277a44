package app

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"todo-serverless/internal/auth"
	"todo-serverless/internal/config"
	"todo-serverless/internal/maintenance"
	"todo-serverless/internal/observability"
	"todo-serverless/internal/task"
	"todo-serverless/internal/user"
)

type userStore interface {
	auth.UserStore
	user.Store
}

type attemptStore interface {
	auth.AttemptStore
	maintenance.AttemptCleaner
}

type pinger interface {
	PingContext(ctx context.Context) error
}

type stores struct {
	users    userStore
	tasks    task.Store
	attempts attemptStore
	health   pinger
}

func newRouter(cfg *config.Config, logger *observability.Logger, key *auth.SigningKey, s stores) (http.Handler, error) {
	tokens := auth.NewTokenService(key)

	verifier, err := auth.NewCredentialVerifier(s.users, cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	authService := auth.NewService(verifier, tokens).WithAttemptStore(s.attempts)
	authService.WithSecurityConfig(cfg.LoginMaxAttempts, cfg.LoginLockDuration, cfg.TokenTTL, cfg.UserLookupTimeout)
	authHandler := auth.NewHandler(authService, logger)

	gate := auth.NewGate(tokens, s.users, logger).WithLookupTimeout(cfg.UserLookupTimeout)
	loginLimiter := auth.NewLoginRateLimiter(cfg.LoginRateLimitMax, cfg.LoginRateWindow)

	cleanupHandler := maintenance.NewCleanupHandler(
		s.attempts,
		logger,
		cfg.CronSecret,
		cfg.AttemptRetention,
		cfg.CleanupBatchSize,
	).WithSweeper("login_rate_limit", loginLimiter)

	if cfg.TokenCacheTTL > 0 {
		cache := auth.NewValidationCache(cfg.TokenCacheTTL)
		gate.WithCache(cache)
		cleanupHandler.WithSweeper("validation_cache", cache)
	}

	var denylist *auth.Denylist
	if cfg.RevocationEnabled {
		denylist = auth.NewDenylist()
		gate.WithRevocations(denylist)
		authHandler.WithDenylist(denylist)
		cleanupHandler.WithSweeper("denylist", denylist)
	}

	userHandler := user.NewHandler(s.users, cfg.BcryptCost)
	taskHandler := task.NewHandler(s.tasks)

	protect := func(h http.HandlerFunc) http.Handler {
		return gate.Middleware(auth.RequireIdentity(h))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/auth/authenticate", loginLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	if denylist != nil {
		mux.Handle("POST /api/v1/auth/logout", protect(authHandler.Logout))
	}

	mux.HandleFunc("POST /api/v1/user", userHandler.CreateUser)
	mux.Handle("GET /api/v1/users", protect(userHandler.ListUsers))
	mux.Handle("GET /api/v1/user/{id}", protect(userHandler.GetUser))
	mux.Handle("PUT /api/v1/user/{id}", protect(userHandler.UpdateUser))
	mux.Handle("DELETE /api/v1/user/{id}", protect(userHandler.DeleteUser))

	mux.Handle("GET /api/v1/tasks", protect(taskHandler.ListTasks))
	mux.Handle("POST /api/v1/task", protect(taskHandler.CreateTask))
	mux.Handle("GET /api/v1/task/{id}", protect(taskHandler.GetTask))
	mux.Handle("PUT /api/v1/task/{id}", protect(taskHandler.UpdateTask))
	mux.Handle("DELETE /api/v1/task/{id}", protect(taskHandler.DeleteTask))

	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("GET /health", healthHandler(s.health))

	return observability.RecoverMiddleware(logger, observability.RequestLoggingMiddleware(logger, mux)), nil
}

func healthHandler(database pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
