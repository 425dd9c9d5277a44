package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type fakeUserStore struct {
	mu      sync.Mutex
	users   map[string]UserRecord
	err     error
	lookups int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]UserRecord)}
}

func (f *fakeUserStore) add(id int64, username, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[username] = UserRecord{ID: id, Username: username, PasswordHash: string(hash)}
}

func (f *fakeUserStore) remove(username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, username)
}

func (f *fakeUserStore) FindByUsername(ctx context.Context, username string) (UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		return UserRecord{}, f.err
	}
	if err := ctx.Err(); err != nil {
		return UserRecord{}, err
	}
	user, ok := f.users[username]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return user, nil
}

type fakeAttemptStore struct {
	mu       sync.Mutex
	failures map[string]int
	locks    map[string]time.Time
	resets   int
	getErr   error
	regErr   error
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{failures: make(map[string]int), locks: make(map[string]time.Time)}
}

func (f *fakeAttemptStore) GetLoginAttempt(ctx context.Context, username string) (LoginAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return LoginAttempt{}, f.getErr
	}
	attempt := LoginAttempt{Username: username, FailedAttempts: f.failures[username]}
	if until, ok := f.locks[username]; ok {
		attempt.LockedUntil = &until
	}
	return attempt, nil
}

func (f *fakeAttemptStore) RegisterFailedAttempt(ctx context.Context, username string, maxAttempts int, lockDuration time.Duration, now time.Time) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.regErr != nil {
		return nil, f.regErr
	}
	f.failures[username]++
	if f.failures[username] >= maxAttempts {
		until := now.Add(lockDuration)
		f.locks[username] = until
		f.failures[username] = 0
		return &until, nil
	}
	return nil, nil
}

func (f *fakeAttemptStore) ResetLoginAttempt(ctx context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failures, username)
	delete(f.locks, username)
	f.resets++
	return nil
}
