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
	"errors"

	"github.com/wheelhouse/wheelhouse/internal/authz"
	"github.com/wheelhouse/wheelhouse/internal/identity"
)

// Domain errors
var (
	ErrSnapshotVersion  = errors.New("persisted session has unsupported schema version")
	ErrLoginSuperseded  = errors.New("login superseded by a newer attempt")
	ErrSessionCorrupted = errors.New("persisted session is corrupted")
)

// Session is the authenticated identity for the lifetime of one login.
// Instances are immutable once published; the store swaps whole records,
// never mutates fields in place.
type Session struct {
	ID          string
	Email       string
	Name        string
	Role        authz.Role
	Grants      []authz.Permission  // explicit per-user grants as verified
	Permissions authz.PermissionSet // effective: grants ∪ role defaults
	Scope       identity.Scope
}

// Subject returns the authorization projection of the session. Safe on a
// nil receiver; nil in, nil out.
func (s *Session) Subject() *authz.Subject {
	if s == nil {
		return nil
	}
	return &authz.Subject{Role: s.Role, Permissions: s.Permissions}
}

// State is the lifecycle state of the session store.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateAnonymous
	StateAuthenticated
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}
