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

package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wheelhouse/wheelhouse/internal/audit"
	"github.com/wheelhouse/wheelhouse/internal/authz"
	"github.com/wheelhouse/wheelhouse/internal/identity"
	"github.com/wheelhouse/wheelhouse/internal/session"
	"github.com/wheelhouse/wheelhouse/internal/state"
)

// fakeVerifier implements identity.Verifier for testing.
type fakeVerifier struct {
	grants   map[string]*identity.Grant // keyed by email; password must be "good"
	probeErr error
	gate     chan struct{} // when non-nil, Verify blocks until the gate closes
}

func (f *fakeVerifier) Verify(ctx context.Context, email, password string) (*identity.Grant, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	grant, ok := f.grants[email]
	if !ok || password != "good" {
		return nil, identity.ErrInvalidCredentials
	}
	g := *grant
	return &g, nil
}

func (f *fakeVerifier) Probe(ctx context.Context, token string) error {
	return f.probeErr
}

// memState implements state.Store in memory with injectable failures.
type memState struct {
	rec      *state.Record
	saves    int
	saveErr  error
	clearErr error
}

func (m *memState) Save(ctx context.Context, rec state.Record) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	cp := rec
	m.rec = &cp
	return nil
}

func (m *memState) Load(ctx context.Context) (*state.Record, error) {
	if m.rec == nil {
		return nil, state.ErrNoState
	}
	return m.rec, nil
}

func (m *memState) Clear(ctx context.Context) error {
	if m.clearErr != nil {
		return m.clearErr
	}
	m.rec = nil
	return nil
}

func salesGrant() *identity.Grant {
	return &identity.Grant{
		UserID: "user-1",
		Email:  "sales@store.example",
		Name:   "Sales Person",
		Role:   authz.RoleSalesExecutive,
		Scope:  identity.Scope{StoreID: "store-1", StoreName: "Mumbai Central Store"},
		Token:  "tok-1",
	}
}

func newStore(verifier identity.Verifier, storage state.Store) *session.Store {
	return session.NewStore(verifier, authz.NewCatalog(), storage, audit.Nop{}, time.Second)
}

func TestInitializeWithoutPersistedState(t *testing.T) {
	store := newStore(&fakeVerifier{}, &memState{})

	require.NoError(t, store.Initialize(context.Background()))
	assert.Equal(t, session.StateAnonymous, store.State())
	assert.Nil(t, store.Current())
}

func TestLoginSuccess(t *testing.T) {
	verifier := &fakeVerifier{grants: map[string]*identity.Grant{
		"sales@store.example": salesGrant(),
	}}
	storage := &memState{}
	store := newStore(verifier, storage)
	require.NoError(t, store.Initialize(context.Background()))

	ok, err := store.Login(context.Background(), "sales@store.example", "good")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, session.StateAuthenticated, store.State())

	sess := store.Current()
	require.NotNil(t, sess)
	assert.Equal(t, "user-1", sess.ID)
	// Effective set holds the role defaults even with no explicit grants.
	assert.True(t, sess.Permissions.Contains(authz.PermViewInventory))
	assert.False(t, sess.Permissions.Contains(authz.PermManageStore))

	// Both keys were persisted together.
	require.NotNil(t, storage.rec)
	assert.Equal(t, "tok-1", storage.rec.Token)
	assert.NotEmpty(t, storage.rec.Session)
}

func TestLoginInvalidCredentialsLeavesPriorSession(t *testing.T) {
	verifier := &fakeVerifier{grants: map[string]*identity.Grant{
		"sales@store.example": salesGrant(),
	}}
	storage := &memState{}
	store := newStore(verifier, storage)
	require.NoError(t, store.Initialize(context.Background()))

	ok, err := store.Login(context.Background(), "sales@store.example", "good")
	require.NoError(t, err)
	require.True(t, ok)
	savesBefore := storage.saves

	// Scenario C: a failed login changes nothing and writes nothing.
	ok, err = store.Login(context.Background(), "bad@x.com", "wrong")
	assert.False(t, ok)
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)

	assert.Equal(t, session.StateAuthenticated, store.State())
	require.NotNil(t, store.Current())
	assert.Equal(t, "user-1", store.Current().ID)
	assert.Equal(t, savesBefore, storage.saves)
}

func TestLoginPersistFailureNeverPartiallyAuthenticates(t *testing.T) {
	verifier := &fakeVerifier{grants: map[string]*identity.Grant{
		"sales@store.example": salesGrant(),
	}}
	storage := &memState{saveErr: errors.New("disk full")}
	store := newStore(verifier, storage)
	require.NoError(t, store.Initialize(context.Background()))

	ok, err := store.Login(context.Background(), "sales@store.example", "good")
	assert.False(t, ok)
	assert.Error(t, err)
	assert.Nil(t, store.Current())
	assert.Equal(t, session.StateAnonymous, store.State())
}

func TestLoginSuperseded(t *testing.T) {
	slow := &fakeVerifier{
		grants: map[string]*identity.Grant{"sales@store.example": salesGrant()},
		gate:   make(chan struct{}),
	}
	storage := &memState{}
	store := newStore(slow, storage)
	require.NoError(t, store.Initialize(context.Background()))

	type result struct {
		ok  bool
		err error
	}
	first := make(chan result, 1)
	go func() {
		ok, err := store.Login(context.Background(), "sales@store.example", "good")
		first <- result{ok, err}
	}()

	// Second attempt begins (and finishes) while the first is still in
	// flight; open the gate only for it.
	adminGrant := &identity.Grant{
		UserID: "user-2",
		Email:  "admin@hq.example",
		Role:   authz.RoleGlobalAdmin,
		Token:  "tok-2",
	}
	time.Sleep(10 * time.Millisecond) // let the first attempt take its sequence number
	slow.grants["admin@hq.example"] = adminGrant
	close(slow.gate)

	// Both goroutines race to commit now; exactly one outcome must win
	// and it must be the later attempt's.
	ok, err := store.Login(context.Background(), "admin@hq.example", "good")
	res := <-first

	if res.err == nil {
		// The first attempt committed before the second took its number;
		// then the second must have won the final state.
		require.True(t, res.ok)
	} else {
		assert.ErrorIs(t, res.err, session.ErrLoginSuperseded)
	}
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, store.Current())
	assert.Equal(t, "user-2", store.Current().ID)
}

func TestLogoutIdempotent(t *testing.T) {
	verifier := &fakeVerifier{grants: map[string]*identity.Grant{
		"sales@store.example": salesGrant(),
	}}
	storage := &memState{}
	store := newStore(verifier, storage)
	require.NoError(t, store.Initialize(context.Background()))

	ok, err := store.Login(context.Background(), "sales@store.example", "good")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Logout(context.Background()))
	assert.Equal(t, session.StateAnonymous, store.State())
	assert.Nil(t, store.Current())
	assert.Nil(t, storage.rec)

	// Logging out twice in a row leaves the same anonymous state, no error.
	require.NoError(t, store.Logout(context.Background()))
	assert.Equal(t, session.StateAnonymous, store.State())
}

func TestRoundTripRestore(t *testing.T) {
	grant := salesGrant()
	grant.Permissions = []authz.Permission{authz.PermViewAnalytics}
	verifier := &fakeVerifier{grants: map[string]*identity.Grant{
		"sales@store.example": grant,
	}}

	dir := t.TempDir()
	storage, err := state.NewFileStore(dir)
	require.NoError(t, err)

	store := newStore(verifier, storage)
	require.NoError(t, store.Initialize(context.Background()))
	ok, err := store.Login(context.Background(), "sales@store.example", "good")
	require.NoError(t, err)
	require.True(t, ok)
	want := store.Current()

	// Simulate a process restart with storage intact.
	restorage, err := state.NewFileStore(dir)
	require.NoError(t, err)
	restored := newStore(verifier, restorage)
	require.NoError(t, restored.Initialize(context.Background()))

	require.Equal(t, session.StateAuthenticated, restored.State())
	got := restored.Current()
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Role, got.Role)
	assert.Equal(t, want.Scope, got.Scope)
	assert.Equal(t, want.Permissions, got.Permissions)
}

func TestInitializePurgesOnFailedProbe(t *testing.T) {
	grant := salesGrant()
	verifier := &fakeVerifier{grants: map[string]*identity.Grant{
		"sales@store.example": grant,
	}}

	dir := t.TempDir()
	storage, err := state.NewFileStore(dir)
	require.NoError(t, err)

	store := newStore(verifier, storage)
	require.NoError(t, store.Initialize(context.Background()))
	ok, err := store.Login(context.Background(), "sales@store.example", "good")
	require.NoError(t, err)
	require.True(t, ok)

	// Scenario D: the credential was revoked while the process was down.
	revoked := &fakeVerifier{probeErr: identity.ErrTokenInvalid}
	restorage, err := state.NewFileStore(dir)
	require.NoError(t, err)
	restored := newStore(revoked, restorage)
	require.NoError(t, restored.Initialize(context.Background()))

	assert.Equal(t, session.StateAnonymous, restored.State())
	assert.Nil(t, restored.Current())
	_, err = restorage.Load(context.Background())
	assert.ErrorIs(t, err, state.ErrNoState)
}

func TestInitializePurgesOnSchemaDrift(t *testing.T) {
	storage := &memState{rec: &state.Record{
		Session: []byte(`{"schemaVersion":99,"id":"u1","role":"store_admin"}`),
		Token:   "tok",
	}}
	store := newStore(&fakeVerifier{}, storage)

	require.NoError(t, store.Initialize(context.Background()))
	assert.Equal(t, session.StateAnonymous, store.State())
	assert.Nil(t, storage.rec)
}

func TestInitializeRunsOnce(t *testing.T) {
	verifier := &fakeVerifier{grants: map[string]*identity.Grant{
		"sales@store.example": salesGrant(),
	}}
	storage := &memState{}
	store := newStore(verifier, storage)
	require.NoError(t, store.Initialize(context.Background()))

	ok, err := store.Login(context.Background(), "sales@store.example", "good")
	require.NoError(t, err)
	require.True(t, ok)

	// A second Initialize must not disturb the live session.
	require.NoError(t, store.Initialize(context.Background()))
	assert.Equal(t, session.StateAuthenticated, store.State())
	assert.NotNil(t, store.Current())
}

func TestRefreshPermissionsNoopWhenAnonymous(t *testing.T) {
	storage := &memState{}
	store := newStore(&fakeVerifier{}, storage)
	require.NoError(t, store.Initialize(context.Background()))

	require.NoError(t, store.RefreshPermissions(context.Background()))
	assert.Nil(t, store.Current())
	assert.Equal(t, 0, storage.saves)
}

func TestRefreshPermissionsRecomputes(t *testing.T) {
	verifier := &fakeVerifier{grants: map[string]*identity.Grant{
		"sales@store.example": salesGrant(),
	}}
	storage := &memState{}
	store := newStore(verifier, storage)
	require.NoError(t, store.Initialize(context.Background()))

	ok, err := store.Login(context.Background(), "sales@store.example", "good")
	require.NoError(t, err)
	require.True(t, ok)
	before := store.Current()

	require.NoError(t, store.RefreshPermissions(context.Background()))
	after := store.Current()

	assert.NotSame(t, before, after)
	assert.Equal(t, before.Permissions, after.Permissions)
	assert.Equal(t, 2, storage.saves) // login + refresh rewrite
}
