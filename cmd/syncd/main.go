// BackupWiz - 3CX Communication Data Backup & Archiving
// Copyright 2026 BackupWiz
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/backupwiz/backupwiz

// Package main is the entry point for the syncd daemon.
//
// syncd backs up communication data (chat messages, call logs,
// recordings, voicemails, faxes) from customer-hosted 3CX phone systems
// into a central PostgreSQL archive and S3-compatible object store. Each
// tenant's PBX is reached over an SSH tunnel with a forwarded loopback
// port; the 3CX database is read in cursor-paginated pages and every row
// is written idempotently, so runs can be replayed after any failure.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered load (defaults, config.yaml, env)
//  2. Archive: pgx pool against the local PostgreSQL, schema ensured
//  3. Object store: minio client against the configured S3 endpoint
//  4. Checkpoints: per-(tenant, stream) sync state in the archive DB
//  5. Supervisor tree: scheduler (pipeline layer) and HTTP API (api layer)
//
// # Signal handling
//
// SIGINT and SIGTERM cancel the root context. The scheduler drains
// in-flight runs (failed runs are recorded on their checkpoints) and
// the HTTP server shuts down gracefully within the supervisor timeout.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backupwiz/backupwiz/internal/api"
	"github.com/backupwiz/backupwiz/internal/checkpoint"
	"github.com/backupwiz/backupwiz/internal/config"
	"github.com/backupwiz/backupwiz/internal/logging"
	"github.com/backupwiz/backupwiz/internal/reconcile"
	"github.com/backupwiz/backupwiz/internal/scheduler"
	"github.com/backupwiz/backupwiz/internal/sink"
	"github.com/backupwiz/backupwiz/internal/supervisor"
	"github.com/backupwiz/backupwiz/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	enabled := 0
	for _, tenant := range cfg.Tenants {
		if tenant.Enabled {
			enabled++
		}
	}
	logging.Info().
		Int("tenants", len(cfg.Tenants)).
		Int("enabled", enabled).
		Str("archive", logging.RedactDSN(cfg.Archive.DSN())).
		Dur("interval", cfg.Sync.Interval).
		Msg("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initCtx, initCancel := context.WithTimeout(ctx, 30*time.Second)
	defer initCancel()

	pool, err := newArchivePool(initCtx, cfg.Archive)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to archive database")
	}
	defer pool.Close()

	archive, err := sink.NewPostgresArchive(initCtx, pool)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize archive schema")
	}

	objects, err := sink.NewS3Store(initCtx, sink.S3Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize object store")
	}
	logging.Info().Str("bucket", cfg.Storage.Bucket).Msg("Object store ready")

	checkpoints, err := checkpoint.NewPostgresStore(initCtx, pool)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize checkpoint store")
	}
	checkpoints.SetStaleAfter(cfg.Sync.StaleAfter)

	engine := reconcile.New(reconcile.TunnelOpener{}, archive, objects, checkpoints, cfg.Sync)
	sched := scheduler.NewManager(engine, cfg.Sync, cfg.Tenants)

	handler := api.NewHandler(checkpoints, cfg.Tenants,
		api.LiveTester{},
		func(ctx context.Context) error { return pool.Ping(ctx) },
	)
	router := api.NewRouter(handler, &api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		CORSMaxAge:         86400,
		RateLimitRequests:  cfg.Server.RateLimitReqs,
		RateLimitWindow:    cfg.Server.RateLimitWindow,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddPipelineService(services.NewSchedulerService(sched))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context cancelled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("syncd stopped gracefully")
}

// newArchivePool connects to the local archive database and verifies it
// with a ping.
func newArchivePool(ctx context.Context, cfg config.ArchiveConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse archive config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create archive pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping archive: %w", err)
	}
	return pool, nil
}
