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

package metrics

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Meter wraps the OpenTelemetry meter and pre-registers the instruments
// the application records.
type Meter struct {
	meter metric.Meter

	LoginAttempts  metric.Int64Counter
	AccessDenials  metric.Int64Counter
	ActiveSessions metric.Int64UpDownCounter
}

// New creates a meter instance. Without a configured meter provider the
// global default is a noop, so recording is always safe.
func New(serviceName string) (*Meter, error) {
	meter := otel.Meter(serviceName)

	loginAttempts, err := meter.Int64Counter(
		"auth_login_attempts_total",
		metric.WithDescription("Login attempts by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create login attempts counter: %w", err)
	}

	accessDenials, err := meter.Int64Counter(
		"authz_denials_total",
		metric.WithDescription("Guard denials by permission"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create denial counter: %w", err)
	}

	activeSessions, err := meter.Int64UpDownCounter(
		"auth_active_sessions",
		metric.WithDescription("Currently authenticated sessions"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active sessions counter: %w", err)
	}

	return &Meter{
		meter:          meter,
		LoginAttempts:  loginAttempts,
		AccessDenials:  accessDenials,
		ActiveSessions: activeSessions,
	}, nil
}
