// Copyright 2026 The Wheelhouse Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wheelhouse/wheelhouse/internal/audit"
	"github.com/wheelhouse/wheelhouse/internal/authz"
	"github.com/wheelhouse/wheelhouse/internal/guard"
	"github.com/wheelhouse/wheelhouse/internal/identity"
	"github.com/wheelhouse/wheelhouse/internal/observability/metrics"
	"github.com/wheelhouse/wheelhouse/internal/session"
	"github.com/wheelhouse/wheelhouse/internal/state"
)

// memoryUserRepo is an in-memory identity.UserRepository.
type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]*identity.User
	creds map[string]*identity.Credentials
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{
		users: make(map[string]*identity.User),
		creds: make(map[string]*identity.Credentials),
	}
}

func (r *memoryUserRepo) Create(user *identity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *memoryUserRepo) AddCredentials(credentials *identity.Credentials) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creds[credentials.UserID] = credentials
	return nil
}

func (r *memoryUserRepo) GetByID(id string) (*identity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return u, nil
}

func (r *memoryUserRepo) GetByEmail(email string) (*identity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, identity.ErrUserNotFound
}

func (r *memoryUserRepo) UpdateLockout(userID string, failedAttempts int, lockedUntil *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return identity.ErrUserNotFound
	}
	u.FailedLoginAttempts = failedAttempts
	u.LockedUntil = lockedUntil
	return nil
}

func (r *memoryUserRepo) GetCredentials(userID string) (*identity.Credentials, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.creds[userID]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return c, nil
}

func (r *memoryUserRepo) UpdatePassword(userID string, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.creds[userID]
	if !ok {
		return identity.ErrUserNotFound
	}
	c.PasswordHash = passwordHash
	return nil
}

func (r *memoryUserRepo) List() ([]*identity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*identity.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func (r *memoryUserRepo) ListByStore(storeID string) ([]*identity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*identity.User
	for _, u := range r.users {
		if u.Scope.StoreID == storeID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memoryUserRepo) ListByCity(city string) ([]*identity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*identity.User
	for _, u := range r.users {
		if u.Scope.ManagedCity == city {
			out = append(out, u)
		}
	}
	return out, nil
}

// memoryState is an in-memory state.Store.
type memoryState struct {
	mu  sync.Mutex
	rec *state.Record
}

func (m *memoryState) Save(ctx context.Context, rec state.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := rec
	m.rec = &cp
	return nil
}

func (m *memoryState) Load(ctx context.Context) (*state.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return nil, state.ErrNoState
	}
	cp := *m.rec
	return &cp, nil
}

func (m *memoryState) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = nil
	return nil
}

type testEnv struct {
	router   http.Handler
	svc      *identity.Service
	sessions *session.Store
	repo     *memoryUserRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := newMemoryUserRepo()
	hasher := identity.NewPasswordHasher(8192, 1, 1, 16, 32)
	tokens, err := identity.NewTokenIssuer(identity.TokenConfig{
		Secret:   []byte("test-secret-at-least-32-characters!!"),
		Issuer:   "wheelhouse-test",
		Audience: "wheelhouse",
		TTL:      time.Hour,
		Leeway:   time.Second,
	})
	require.NoError(t, err)

	svc := identity.NewService(repo, hasher, tokens, audit.Nop{}, 3, time.Minute)

	catalog := authz.NewCatalog()
	sessions := session.NewStore(svc, catalog, &memoryState{}, audit.Nop{}, 0)
	require.NoError(t, sessions.Initialize(context.Background()))

	resolver := authz.NewResolver(catalog)
	g := guard.New(sessions, resolver)

	meter, err := metrics.New("wheelhouse-test")
	require.NoError(t, err)

	h := NewHandler(sessions, svc, g, catalog, meter)
	router := NewRouter(h, NewRateLimiter(1000, 1000))

	return &testEnv{router: router, svc: svc, sessions: sessions, repo: repo}
}

func (e *testEnv) addUser(t *testing.T, email, name, password string, role authz.Role, scope identity.Scope) *identity.User {
	t.Helper()
	u, err := e.svc.ProvisionUser(context.Background(), email, name, role, scope)
	require.NoError(t, err)
	require.NoError(t, e.svc.AddPassword(context.Background(), u.ID, password))
	return u
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, http.MethodPost, "/api/v1/auth/login", loginRequest{Email: email, Password: password})
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "anonymous", body["session_state"])
}

func TestLoginAndGetSession(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "admin@downtown.example", "Dana", "Str0ngPass!word", authz.RoleStoreAdmin,
		identity.Scope{StoreID: "store-1", StoreName: "Downtown"})

	rec := env.login(t, "admin@downtown.example", "Str0ngPass!word")
	require.Equal(t, http.StatusOK, rec.Code)

	var got sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "admin@downtown.example", got.Email)
	assert.Equal(t, string(authz.RoleStoreAdmin), got.Role)
	assert.Contains(t, got.Permissions, string(authz.PermManageStoreUsers))
	assert.Equal(t, "store-1", got.Scope.StoreID)

	rec = env.do(t, http.MethodGet, "/api/v1/auth/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "admin@downtown.example", "Dana", "Str0ngPass!word", authz.RoleStoreAdmin,
		identity.Scope{StoreID: "store-1"})

	rec := env.login(t, "admin@downtown.example", "wrong-password-x")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/auth/session", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRouteRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/users", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRouteNeutralDenial(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "sales@downtown.example", "Sam", "Str0ngPass!word", authz.RoleSalesExecutive,
		identity.Scope{StoreID: "store-1"})

	rec := env.login(t, "sales@downtown.example", "Str0ngPass!word")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/users", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "access restricted", body["error"])
}

func TestListUsersScopedToStore(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "admin@downtown.example", "Dana", "Str0ngPass!word", authz.RoleStoreAdmin,
		identity.Scope{StoreID: "store-1", StoreName: "Downtown"})
	env.addUser(t, "sales@downtown.example", "Sam", "Str0ngPass!word", authz.RoleSalesExecutive,
		identity.Scope{StoreID: "store-1", StoreName: "Downtown"})
	env.addUser(t, "sales@uptown.example", "Uma", "Str0ngPass!word", authz.RoleSalesExecutive,
		identity.Scope{StoreID: "store-2", StoreName: "Uptown"})

	rec := env.login(t, "admin@downtown.example", "Str0ngPass!word")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var users []userResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 2)
	for _, u := range users {
		assert.Equal(t, "store-1", u.Scope.StoreID)
	}
}

func TestCreateUserForcedIntoCallerScope(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "admin@downtown.example", "Dana", "Str0ngPass!word", authz.RoleStoreAdmin,
		identity.Scope{StoreID: "store-1", StoreName: "Downtown"})

	rec := env.login(t, "admin@downtown.example", "Str0ngPass!word")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/users", createUserRequest{
		Email:    "new@uptown.example",
		Name:     "Nia",
		Role:     string(authz.RoleSalesExecutive),
		Password: "Str0ngPass!word",
		Scope:    identity.Scope{StoreID: "store-2"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created userResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "store-1", created.Scope.StoreID)

	u, err := env.repo.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "store-1", u.Scope.StoreID)
}

func TestCreateUserUnknownRole(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "admin@downtown.example", "Dana", "Str0ngPass!word", authz.RoleStoreAdmin,
		identity.Scope{StoreID: "store-1"})

	rec := env.login(t, "admin@downtown.example", "Str0ngPass!word")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/users", createUserRequest{
		Email:    "new@downtown.example",
		Name:     "Nia",
		Role:     "superuser",
		Password: "Str0ngPass!word",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "admin@downtown.example", "Dana", "Str0ngPass!word", authz.RoleStoreAdmin,
		identity.Scope{StoreID: "store-1"})

	rec := env.login(t, "admin@downtown.example", "Str0ngPass!word")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/v1/auth/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/auth/session", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshPermissions(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "admin@downtown.example", "Dana", "Str0ngPass!word", authz.RoleStoreAdmin,
		identity.Scope{StoreID: "store-1"})

	rec := env.login(t, "admin@downtown.example", "Str0ngPass!word")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Contains(t, got.Permissions, string(authz.PermManageStore))
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "admin@downtown.example", "Dana", "Str0ngPass!word", authz.RoleStoreAdmin,
		identity.Scope{StoreID: "store-1"})

	rec := env.login(t, "admin@downtown.example", "Str0ngPass!word")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/user/change-password", changePasswordRequest{
		OldPassword: "Str0ngPass!word",
		NewPassword: "An0ther!Passw0rd",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/auth/logout", nil).Code)

	rec = env.login(t, "admin@downtown.example", "Str0ngPass!word")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.login(t, "admin@downtown.example", "An0ther!Passw0rd")
	assert.Equal(t, http.StatusOK, rec.Code)
}
