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

// Package state is the durable local storage collaborator of the session
// store. It holds exactly two logical keys: the serialized session
// snapshot and the opaque credential token. Both are written together on
// login and cleared together on logout; a record with either key missing
// is reported as ErrNoState so the caller purges the remainder.
package state

import (
	"context"
	"errors"
)

// ErrNoState indicates no persisted session exists (or the persisted
// pair is incomplete and must be treated as invalid).
var ErrNoState = errors.New("no persisted session state")

// Record is the persisted pair.
type Record struct {
	Session []byte // serialized session snapshot (JSON)
	Token   string // opaque credential token
}

// Store persists the session/token pair.
type Store interface {
	// Save writes both keys. Implementations commit each key atomically;
	// a crash between the two writes is healed by the Load-side
	// mismatch rule.
	Save(ctx context.Context, rec Record) error

	// Load returns the persisted pair, or ErrNoState when either key is
	// absent.
	Load(ctx context.Context) (*Record, error)

	// Clear removes both keys. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}
