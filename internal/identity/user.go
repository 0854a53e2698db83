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

package identity

import (
	"context"
	"errors"
	"time"

	"github.com/wheelhouse/wheelhouse/internal/authz"
)

// Domain errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password does not meet security requirements")
	ErrAccountLocked      = errors.New("account is locked")
	ErrUserInactive       = errors.New("user is deactivated")
	ErrTokenInvalid       = errors.New("credential token is invalid")
)

// Scope narrows data visibility for a user independently of permissions.
// Which fields are populated depends on the role: store roles carry
// StoreID/StoreName, procurement admins carry ManagedCity, procurement
// executives carry ReportingTo (the ID of their procurement admin).
// Global admins carry no scope.
type Scope struct {
	StoreID     string `json:"storeId,omitempty"`
	StoreName   string `json:"storeName,omitempty"`
	ManagedCity string `json:"managedCity,omitempty"`
	ReportingTo string `json:"reportingTo,omitempty"`
}

// IsZero reports whether the scope places no restriction.
func (s Scope) IsZero() bool {
	return s == Scope{}
}

// User represents a CRM user identity
type User struct {
	ID                  string
	Email               string
	Name                string
	Role                authz.Role
	Permissions         []authz.Permission // explicit per-user grants, may be empty
	Scope               Scope
	Active              bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
	DeletedAt           *time.Time
}

// Credentials represents user authentication credentials
type Credentials struct {
	UserID       string
	PasswordHash string
	UpdatedAt    time.Time
}

// Grant is the outcome of a successful credential verification: the raw
// identity, its role and scope, the explicit permission grants, and an
// opaque token the caller persists for later revalidation.
type Grant struct {
	UserID      string
	Email       string
	Name        string
	Role        authz.Role
	Permissions []authz.Permission
	Scope       Scope
	Token       string
}

// Verifier is the credential-verification collaborator the session store
// delegates to. Verify checks email/password and issues a token; Probe
// revalidates a previously issued token (used when restoring a persisted
// session, so a revoked credential cannot resurrect one).
type Verifier interface {
	Verify(ctx context.Context, email, password string) (*Grant, error)
	Probe(ctx context.Context, token string) error
}

// UserRepository defines the interface for user persistence
type UserRepository interface {
	// Create creates a new user identity
	Create(user *User) error

	// AddCredentials adds credentials for a user
	AddCredentials(credentials *Credentials) error

	// GetByID retrieves a user by ID
	GetByID(id string) (*User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(email string) (*User, error)

	// UpdateLockout updates user lockout status
	UpdateLockout(userID string, failedAttempts int, lockedUntil *time.Time) error

	// GetCredentials retrieves user credentials
	GetCredentials(userID string) (*Credentials, error)

	// UpdatePassword updates user password
	UpdatePassword(userID string, passwordHash string) error

	// List retrieves all users
	List() ([]*User, error)

	// ListByStore retrieves users attached to a store
	ListByStore(storeID string) ([]*User, error)

	// ListByCity retrieves users whose managed city matches
	ListByCity(city string) ([]*User, error)
}
