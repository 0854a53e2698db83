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
	"fmt"
	"log/slog"
	"os"

	"github.com/wheelhouse/wheelhouse/internal/authz"
)

const (
	EnvBootstrapAdminEmail    = "WH_BOOTSTRAP_ADMIN_EMAIL"
	EnvBootstrapAdminPassword = "WH_BOOTSTRAP_ADMIN_PASSWORD"
)

// Bootstrap seeds the first global admin when the bootstrap environment
// variables are set and no user with that email exists yet. Safe to run
// on every start.
func (s *Service) Bootstrap(ctx context.Context) error {
	email := os.Getenv(EnvBootstrapAdminEmail)
	password := os.Getenv(EnvBootstrapAdminPassword)

	if email == "" {
		return nil
	}
	if password == "" {
		return errors.New("bootstrap admin password is required when bootstrap email is set")
	}

	if existing, err := s.repo.GetByEmail(email); err == nil && existing != nil {
		slog.Info("bootstrap admin already exists, skipping",
			slog.String("email", email))
		return nil
	}

	user, err := s.ProvisionUser(ctx, email, "Global Admin", authz.RoleGlobalAdmin, Scope{})
	if err != nil {
		return fmt.Errorf("failed to provision bootstrap admin: %w", err)
	}

	if err := s.AddPassword(ctx, user.ID, password); err != nil {
		return fmt.Errorf("failed to set bootstrap admin password: %w", err)
	}

	slog.Info("bootstrap global admin created", slog.String("user_id", user.ID))
	return nil
}
