package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/logger"
	"github.com/nkiryanov/authgate/internal/models"
	"github.com/nkiryanov/authgate/internal/service/auth"
	"github.com/nkiryanov/authgate/internal/service/auth/bruteforce"
	"github.com/nkiryanov/authgate/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/authgate/internal/service/ratelimit"
	"github.com/nkiryanov/authgate/internal/testutil"
)

const testSecret = "test-secret-key-that-is-32-bytes"

// In-memory user service, passwords kept in plain text
type fakeUsers struct {
	mu        sync.Mutex
	users     map[uuid.UUID]models.User
	passwords map[uuid.UUID]string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[uuid.UUID]models.User{}, passwords: map[uuid.UUID]string{}}
}

func (f *fakeUsers) add(username, password, role string) models.User {
	f.mu.Lock()
	defer f.mu.Unlock()

	u := models.User{ID: uuid.New(), Username: username, Role: role, IsActive: true}
	f.users[u.ID] = u
	f.passwords[u.ID] = password
	return u
}

func (f *fakeUsers) byUsername(username string) (models.User, bool) {
	for _, u := range f.users {
		if u.Username == username {
			return u, true
		}
	}
	return models.User{}, false
}

func (f *fakeUsers) CreateUser(_ context.Context, username string, password string) (models.User, error) {
	f.mu.Lock()
	_, exists := f.byUsername(username)
	f.mu.Unlock()

	if exists {
		return models.User{}, apperrors.ErrUserAlreadyExists
	}
	return f.add(username, password, models.RoleViewer), nil
}

func (f *fakeUsers) CheckCredentials(_ context.Context, username string, password string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.byUsername(username)
	if !ok || f.passwords[u.ID] != password {
		return models.User{}, apperrors.ErrInvalidCredentials
	}
	return u, nil
}

func (f *fakeUsers) GetUserBySubject(_ context.Context, subjectID string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id, err := uuid.Parse(subjectID)
	if err != nil {
		return models.User{}, apperrors.ErrUserNotFound
	}
	u, ok := f.users[id]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) SetActive(_ context.Context, userID uuid.UUID, active bool) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[userID]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	u.IsActive = active
	f.users[userID] = u
	return u, nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	URL    string
	users  *fakeUsers
	tokens *tokenmanager.TokenManager
}

// Limits high enough for a single test
var relaxedRateLimits = ratelimit.Policy{Auth: 1000, Write: 1000, Global: 1000}

// Run router with production services, fake user storage and in-memory redis
func startServer(t *testing.T, health HealthChecks) *testServer {
	t.Helper()
	return startServerWithLimits(t, health, relaxedRateLimits)
}

func startServerWithLimits(t *testing.T, health HealthChecks, limits ratelimit.Policy) *testServer {
	t.Helper()

	l := logger.NewNoOpLogger()
	_, client := testutil.StartRedis(t)

	tokens, err := tokenmanager.New(tokenmanager.Config{SecretKey: testSecret})
	require.NoError(t, err, "token manager should be created without errors")

	store := bruteforce.NewFailover(bruteforce.NewRedisStore(client), bruteforce.NewMemoryStore(nil), 0, l)
	guard, err := bruteforce.NewGuard(store, bruteforce.Policy{}, l)
	require.NoError(t, err)

	limiter, err := ratelimit.NewLimiter(
		ratelimit.NewFailover(ratelimit.NewRedisStore(client, nil), ratelimit.NewMemoryStore(nil), 0, l),
		limits,
		l,
	)
	require.NoError(t, err)

	users := newFakeUsers()
	authService, err := auth.NewAuthService(tokens, guard, users, l)
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(authService, users, auth.NewGate(tokens, users), limiter, health, l))
	t.Cleanup(srv.Close)

	return &testServer{URL: srv.URL, users: users, tokens: tokens}
}

type response struct {
	code    int
	body    string
	header  http.Header
	cookies []*http.Cookie
}

func doRequest(t *testing.T, method, url, body string, prepare ...func(*http.Request)) response {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for _, fn := range prepare {
		fn(req)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return response{code: resp.StatusCode, body: string(data), header: resp.Header, cookies: resp.Cookies()}
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value}) }
}
