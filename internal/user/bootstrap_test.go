package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recordingUpserter struct {
	calls    int
	username string
	hash     string
}

func (r *recordingUpserter) Upsert(ctx context.Context, username, passwordHash string) (User, error) {
	r.calls++
	r.username = username
	r.hash = passwordHash
	return User{ID: 1, Username: username, PasswordHash: passwordHash}, nil
}

func TestBootstrap(t *testing.T) {
	repo := &recordingUpserter{}

	require.NoError(t, Bootstrap(context.Background(), repo, "", "", bcrypt.MinCost))
	assert.Zero(t, repo.calls)

	assert.Error(t, Bootstrap(context.Background(), repo, "admin", "", bcrypt.MinCost))
	assert.Error(t, Bootstrap(context.Background(), repo, "", "secretpass", bcrypt.MinCost))
	assert.Error(t, Bootstrap(context.Background(), repo, "admin", "short", bcrypt.MinCost))
	assert.Zero(t, repo.calls)

	require.NoError(t, Bootstrap(context.Background(), repo, " Admin ", "secretpass", bcrypt.MinCost))
	assert.Equal(t, 1, repo.calls)
	assert.Equal(t, "admin", repo.username)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.hash), []byte("secretpass")))
}
