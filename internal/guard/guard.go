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

// Package guard is the single enforcement point consulted before any
// permission-sensitive render or action. It holds a read-only view of
// the session store and never mutates it; decisions are safe to make
// repeatedly and concurrently.
package guard

import (
	"errors"

	"github.com/wheelhouse/wheelhouse/internal/authz"
	"github.com/wheelhouse/wheelhouse/internal/session"
)

// ErrRestricted is the neutral denial result. It never explains the
// denial in terms of other users' data.
var ErrRestricted = errors.New("access restricted")

// SessionSource is the read-only view the guard needs.
type SessionSource interface {
	Current() *session.Session
}

// Requirement declares what a protected operation needs. A zero
// Requirement is a pass-through: it always allows. When both a
// permission and roles are given, both must pass.
type Requirement struct {
	Permission authz.Permission
	Roles      []authz.Role
}

// IsZero reports whether the requirement places no restriction.
func (r Requirement) IsZero() bool {
	return r.Permission == "" && len(r.Roles) == 0
}

// Guard decides, for the current session, whether a requirement is met.
type Guard struct {
	sessions SessionSource
	resolver *authz.Resolver
}

// New creates a guard over the given session source.
func New(sessions SessionSource, resolver *authz.Resolver) *Guard {
	return &Guard{sessions: sessions, resolver: resolver}
}

// Allowed reports whether the current session meets the requirement.
func (g *Guard) Allowed(req Requirement) bool {
	if req.IsZero() {
		return true
	}

	sub := g.sessions.Current().Subject()

	if len(req.Roles) > 0 && !authz.HasRole(sub, req.Roles...) {
		return false
	}
	if req.Permission != "" && !g.resolver.IsAuthorized(sub, req.Permission) {
		return false
	}
	return true
}

// Option configures the deny behavior of Run.
type Option func(*runOptions)

type runOptions struct {
	fallback func() error
	silent   bool
}

// WithFallback replaces the default denial result with a custom one.
func WithFallback(fn func() error) Option {
	return func(o *runOptions) { o.fallback = fn }
}

// Silently suppresses the denial entirely: Run returns nil on deny, as
// if the protected content simply did not exist.
func Silently() Option {
	return func(o *runOptions) { o.silent = true }
}

// Run dispatches onAllow when the requirement is met. On denial it
// returns ErrRestricted by default, the fallback's result when one is
// configured, or nil when silenced.
func (g *Guard) Run(req Requirement, onAllow func() error, opts ...Option) error {
	if g.Allowed(req) {
		return onAllow()
	}

	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.silent {
		return nil
	}
	if o.fallback != nil {
		return o.fallback()
	}
	return ErrRestricted
}
