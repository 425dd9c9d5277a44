package user

import (
	"context"
	"fmt"
	"strings"

	"todo-serverless/internal/auth"
)

type Upserter interface {
	Upsert(ctx context.Context, username, passwordHash string) (User, error)
}

// Bootstrap seeds one account from configuration. Both values empty is a
// no-op; a lone username or password is an error.
func Bootstrap(ctx context.Context, repo Upserter, username, password string, cost int) error {
	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" && password == "" {
		return nil
	}
	if username == "" || password == "" {
		return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD are required together")
	}
	if err := ValidateCredentials(username, password); err != nil {
		return fmt.Errorf("bootstrap user: %w", err)
	}

	hash, err := auth.HashPassword(password, cost)
	if err != nil {
		return err
	}

	if _, err := repo.Upsert(ctx, username, hash); err != nil {
		return fmt.Errorf("bootstrap user: %w", err)
	}

	return nil
}
