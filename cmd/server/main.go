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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wheelhouse/wheelhouse/internal/audit"
	"github.com/wheelhouse/wheelhouse/internal/authz"
	"github.com/wheelhouse/wheelhouse/internal/config"
	"github.com/wheelhouse/wheelhouse/internal/guard"
	"github.com/wheelhouse/wheelhouse/internal/identity"
	"github.com/wheelhouse/wheelhouse/internal/observability/logger"
	"github.com/wheelhouse/wheelhouse/internal/observability/metrics"
	"github.com/wheelhouse/wheelhouse/internal/observability/tracing"
	"github.com/wheelhouse/wheelhouse/internal/session"
	"github.com/wheelhouse/wheelhouse/internal/state"
	"github.com/wheelhouse/wheelhouse/internal/store/postgres"
	transportHTTP "github.com/wheelhouse/wheelhouse/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting wheelhouse crm terminal")

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if len(os.Args) > 1 && os.Args[1] == "bootstrap" {
		if err := runBootstrap(cfg); err != nil {
			fmt.Printf("Bootstrap failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	meter, err := metrics.New(cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
		os.Exit(1)
	}

	// Initialize database
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	identityService, err := buildIdentityService(db, cfg)
	if err != nil {
		slog.Error("failed to initialize identity service", logger.Error(err))
		os.Exit(1)
	}

	// Permission catalog and resolver
	catalog := authz.NewCatalog()
	if err := catalog.Validate(); err != nil {
		slog.Error("permission catalog is invalid", logger.Error(err))
		os.Exit(1)
	}
	resolver := authz.NewResolver(catalog)

	// Durable session-state backend
	stateStore, err := buildStateStore(cfg)
	if err != nil {
		slog.Error("failed to initialize state backend", logger.Error(err))
		os.Exit(1)
	}

	// Session store: restore any persisted session before serving
	sessions := session.NewStore(identityService, catalog, stateStore, audit.NewSlogLogger(), cfg.Auth.VerifyTimeout)
	if err := sessions.Initialize(ctx); err != nil {
		slog.Error("session initialization failed", logger.Error(err))
		os.Exit(1)
	}
	slog.Info("session store initialized", slog.String("state", sessions.State().String()))

	g := guard.New(sessions, resolver)

	// Rate limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// HTTP handler and router
	handler := transportHTTP.NewHandler(sessions, identityService, g, catalog, meter)
	router := transportHTTP.NewRouter(handler, rateLimiter)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

func buildIdentityService(db *postgres.DB, cfg *config.Config) (*identity.Service, error) {
	userRepo := postgres.NewUserRepository(db)

	passwordHasher := identity.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)

	tokens, err := identity.NewTokenIssuer(identity.TokenConfig{
		Secret:   []byte(cfg.Auth.TokenSecret),
		Issuer:   cfg.Auth.TokenIssuer,
		Audience: cfg.Auth.TokenAudience,
		TTL:      cfg.Auth.TokenTTL,
		Leeway:   cfg.Auth.TokenLeeway,
	})
	if err != nil {
		return nil, err
	}

	return identity.NewService(
		userRepo,
		passwordHasher,
		tokens,
		audit.NewSlogLogger(),
		cfg.Security.LockoutMaxAttempts,
		cfg.Security.LockoutDuration,
	), nil
}

func buildStateStore(cfg *config.Config) (state.Store, error) {
	switch cfg.State.Backend {
	case "file":
		return state.NewFileStore(cfg.State.Dir)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr: cfg.State.RedisAddr,
			DB:   cfg.State.RedisDB,
		})
		return state.NewRedisStore(client, cfg.State.RedisPrefix), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.State.Backend)
	}
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying initial schema...")
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}

func runBootstrap(cfg *config.Config) error {
	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	identityService, err := buildIdentityService(db, cfg)
	if err != nil {
		return err
	}
	return identityService.Bootstrap(ctx)
}
