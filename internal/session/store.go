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

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wheelhouse/wheelhouse/internal/audit"
	"github.com/wheelhouse/wheelhouse/internal/authz"
	"github.com/wheelhouse/wheelhouse/internal/identity"
	"github.com/wheelhouse/wheelhouse/internal/state"
)

// DefaultVerifyTimeout bounds the credential-verifier call so a slow
// verifier cannot leave the caller in an indefinite loading state.
const DefaultVerifyTimeout = 10 * time.Second

// Store owns the single authenticated session of the process and its
// lifecycle. Lifecycle operations (Initialize, Login, Logout,
// RefreshPermissions) are the only writers and are serialized; Current
// is a lock-free atomic read that never observes a half-updated session.
type Store struct {
	verifier      identity.Verifier
	catalog       *authz.Catalog
	storage       state.Store
	auditLogger   audit.Logger
	verifyTimeout time.Duration

	mu    sync.Mutex // serializes lifecycle writers
	token string     // credential token of the current session, guarded by mu

	// seq is bumped at the start of every login and on logout; a login
	// whose captured value is no longer current at commit time was
	// superseded and must not publish its result.
	seq atomic.Uint64

	current atomic.Pointer[Session]
	state   atomic.Int32
}

// NewStore creates a session store. A verifyTimeout of zero selects
// DefaultVerifyTimeout.
func NewStore(
	verifier identity.Verifier,
	catalog *authz.Catalog,
	storage state.Store,
	auditLogger audit.Logger,
	verifyTimeout time.Duration,
) *Store {
	if verifyTimeout <= 0 {
		verifyTimeout = DefaultVerifyTimeout
	}
	return &Store{
		verifier:      verifier,
		catalog:       catalog,
		storage:       storage,
		auditLogger:   auditLogger,
		verifyTimeout: verifyTimeout,
	}
}

// Current returns the current session, or nil when anonymous. Pure read.
func (s *Store) Current() *Session {
	return s.current.Load()
}

// State returns the lifecycle state.
func (s *Store) State() State {
	return State(s.state.Load())
}

// Initialize restores a previously persisted session, if any, after
// revalidating its credential token against the verifier. Any failure
// (missing or mismatched keys, schema drift, a failed probe) purges the
// stale state and degrades to anonymous; Initialize never fails the
// process for a bad restore. Runs once; later calls are no-ops.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if State(s.state.Load()) != StateUninitialized {
		return nil
	}
	s.state.Store(int32(StateInitializing))

	rec, err := s.storage.Load(ctx)
	if err != nil {
		if !errors.Is(err, state.ErrNoState) {
			// Read failure degrades to anonymous, it never crashes the app.
			slog.Warn("failed to read persisted session, starting anonymous",
				slog.String("error", err.Error()))
			s.purgeLocked(ctx, "storage_read_failed")
		}
		s.state.Store(int32(StateAnonymous))
		return nil
	}

	snap, err := decodeSnapshot(rec.Session)
	if err != nil {
		s.purgeLocked(ctx, "snapshot_invalid")
		s.state.Store(int32(StateAnonymous))
		return nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.verifyTimeout)
	err = s.verifier.Probe(probeCtx, rec.Token)
	cancel()
	if err != nil {
		// Revoked or expired credential; the restored identity is not
		// trusted.
		s.purgeLocked(ctx, "probe_failed")
		s.state.Store(int32(StateAnonymous))
		return nil
	}

	sess := s.materialize(snap)
	s.token = rec.Token
	s.current.Store(sess)
	s.state.Store(int32(StateAuthenticated))

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSessionRestored,
		ActorID:  sess.ID,
		StoreID:  sess.Scope.StoreID,
		Resource: "session",
	})
	return nil
}

// Login verifies the credentials and, on success, atomically publishes a
// new session and persists it. Returns (false, identity.ErrInvalidCredentials)
// or (false, identity.ErrAccountLocked) for recoverable verification
// failures; the prior session, if any, is left untouched and nothing is
// written. Persistence failures are surfaced so the caller can retry; the
// store never partially authenticates.
func (s *Store) Login(ctx context.Context, email, password string) (bool, error) {
	attempt := s.seq.Add(1)

	verifyCtx, cancel := context.WithTimeout(ctx, s.verifyTimeout)
	grant, err := s.verifier.Verify(verifyCtx, email, password)
	cancel()
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A newer login (or a logout) started after this attempt; its outcome
	// wins.
	if s.seq.Load() != attempt {
		return false, ErrLoginSuperseded
	}

	sess := &Session{
		ID:          grant.UserID,
		Email:       grant.Email,
		Name:        grant.Name,
		Role:        grant.Role,
		Grants:      grant.Permissions,
		Permissions: s.effective(grant.Role, grant.Permissions),
		Scope:       grant.Scope,
	}

	snap, err := encodeSnapshot(sess)
	if err != nil {
		return false, err
	}
	if err := s.storage.Save(ctx, state.Record{Session: snap, Token: grant.Token}); err != nil {
		return false, fmt.Errorf("failed to persist session: %w", err)
	}

	s.token = grant.Token
	s.current.Store(sess)
	s.state.Store(int32(StateAuthenticated))
	return true, nil
}

// Logout clears the in-memory session and both persisted keys. Calling
// it while already anonymous is a no-op success; a storage failure is
// surfaced and the call can be retried (memory is cleared first, so no
// privileged session lingers).
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current.Load()

	s.seq.Add(1)
	s.token = ""
	s.current.Store(nil)
	s.state.Store(int32(StateAnonymous))

	if err := s.storage.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear persisted session: %w", err)
	}

	if prev != nil {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLogout,
			ActorID:  prev.ID,
			StoreID:  prev.Scope.StoreID,
			Resource: "session",
		})
	}
	return nil
}

// RefreshPermissions recomputes the effective permission set of the
// current session against the catalog, without re-authenticating, and
// rewrites the persisted snapshot. No-op when anonymous.
func (s *Store) RefreshPermissions(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	if cur == nil {
		return nil
	}

	next := &Session{
		ID:          cur.ID,
		Email:       cur.Email,
		Name:        cur.Name,
		Role:        cur.Role,
		Grants:      cur.Grants,
		Permissions: s.effective(cur.Role, cur.Grants),
		Scope:       cur.Scope,
	}

	snap, err := encodeSnapshot(next)
	if err != nil {
		return err
	}
	if err := s.storage.Save(ctx, state.Record{Session: snap, Token: s.token}); err != nil {
		return fmt.Errorf("failed to persist refreshed session: %w", err)
	}

	s.current.Store(next)

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypePermissionRefresh,
		ActorID:  next.ID,
		StoreID:  next.Scope.StoreID,
		Resource: "session",
	})
	return nil
}

// effective computes grants ∪ role defaults. An unknown role contributes
// no defaults; the explicit grants still apply.
func (s *Store) effective(role authz.Role, grants []authz.Permission) authz.PermissionSet {
	set := authz.NewPermissionSet(grants...)
	defaults, err := s.catalog.PermissionsForRole(role)
	if err != nil {
		slog.Debug("no role defaults for session",
			slog.String("role", string(role)))
		return set
	}
	return set.Union(defaults)
}

func (s *Store) materialize(snap *snapshot) *Session {
	grants := snap.grants()
	role := authz.Role(snap.Role)
	return &Session{
		ID:          snap.ID,
		Email:       snap.Email,
		Name:        snap.Name,
		Role:        role,
		Grants:      grants,
		Permissions: s.effective(role, grants),
		Scope:       snap.Scope,
	}
}

// purgeLocked clears both persisted keys; callers hold s.mu.
func (s *Store) purgeLocked(ctx context.Context, reason string) {
	if err := s.storage.Clear(ctx); err != nil {
		slog.Warn("failed to purge stale session state",
			slog.String("error", err.Error()))
		return
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSessionPurged,
		Resource: "session",
		Metadata: map[string]any{audit.AttrReason: reason},
	})
}
