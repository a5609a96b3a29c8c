package auth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/models"
	"github.com/nkiryanov/authgate/internal/service/auth/tokenmanager"
)

const testSecret = "test-secret-key-that-is-32-bytes"

var errLookupFailed = errors.New("lookup failed")

// In-memory users keyed by username, passwords kept in plain text
type fakeUsers struct {
	mu        sync.Mutex
	users     map[string]models.User
	passwords map[string]string
	lookups   int
	failWith  error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]models.User{}, passwords: map[string]string{}}
}

func (f *fakeUsers) add(username, password, role string, active bool) models.User {
	f.mu.Lock()
	defer f.mu.Unlock()

	u := models.User{ID: uuid.New(), Username: username, Role: role, IsActive: active}
	f.users[username] = u
	f.passwords[username] = password
	return u
}

func (f *fakeUsers) setActive(username string, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u := f.users[username]
	u.IsActive = active
	f.users[username] = u
}

func (f *fakeUsers) CreateUser(_ context.Context, username string, password string) (models.User, error) {
	f.mu.Lock()
	_, exists := f.users[username]
	f.mu.Unlock()

	if exists {
		return models.User{}, apperrors.ErrUserAlreadyExists
	}
	return f.add(username, password, models.RoleViewer, true), nil
}

func (f *fakeUsers) CheckCredentials(_ context.Context, username string, password string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[username]
	if !ok || f.passwords[username] != password {
		return models.User{}, apperrors.ErrInvalidCredentials
	}
	return u, nil
}

func (f *fakeUsers) GetUserBySubject(_ context.Context, subjectID string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lookups++
	if f.failWith != nil {
		return models.User{}, f.failWith
	}
	for _, u := range f.users {
		if u.ID.String() == subjectID {
			return u, nil
		}
	}
	return models.User{}, apperrors.ErrUserNotFound
}

func newTokenManager(t *testing.T) *tokenmanager.TokenManager {
	t.Helper()

	m, err := tokenmanager.New(tokenmanager.Config{SecretKey: testSecret})
	require.NoError(t, err, "token manager should be created without errors")
	return m
}
