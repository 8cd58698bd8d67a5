// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

// Command server runs the Playtrack daemon: the presence collectors,
// the embedded DuckDB sink, and the read-only HTTP API, all under one
// suture supervision tree.
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

	"github.com/playtrack/playtrack/internal/api"
	"github.com/playtrack/playtrack/internal/collector"
	"github.com/playtrack/playtrack/internal/config"
	"github.com/playtrack/playtrack/internal/database"
	"github.com/playtrack/playtrack/internal/logging"
	"github.com/playtrack/playtrack/internal/source"
	"github.com/playtrack/playtrack/internal/supervisor"
	"github.com/playtrack/playtrack/internal/supervisor/services"
	"github.com/playtrack/playtrack/internal/tracker"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Timestamp: true,
	})
	logging.Info().
		Str("version", version).
		Bool("players", cfg.Players.Enabled).
		Bool("worlds", cfg.Worlds.Enabled).
		Bool("roster", cfg.Roster.Enabled).
		Msg("playtrack starting")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("database close failed")
		}
	}()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	if cfg.Players.Enabled {
		addPlayerCollectors(tree, cfg, db)
	}
	if cfg.Worlds.Enabled {
		addWorldCollectors(tree, cfg, db)
	}
	if cfg.Roster.Enabled {
		pager := source.NewRosterClient(cfg.Roster.BaseURL, 15*time.Second, cfg.Roster.RequestsPerMinute)
		tree.AddCollector(collector.NewRosterCollector(pager, db, cfg.Roster.Interval, cfg.Roster.PageSize))
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(api.NewHandler(db)),
		ReadTimeout:  cfg.Server.RequestTimeout,
		WriteTimeout: cfg.Server.RequestTimeout,
		IdleTimeout:  2 * cfg.Server.RequestTimeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("http api configured")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor tree: %w", err)
	}

	if unstopped, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service did not stop in time")
		}
	}

	logging.Info().Msg("playtrack stopped")
	return nil
}

// addPlayerCollectors wires the SA-MP query client into the player
// session stream and the online count sampler.
func addPlayerCollectors(tree *supervisor.Tree, cfg *config.Config, db *database.DB) {
	client := source.NewSampClient(cfg.Players.Host, cfg.Players.Port, cfg.Players.FetchTimeout)
	src := source.NewBreakerSource("players", client,
		uint32(cfg.Players.BreakerFailures), cfg.Players.BreakerReset)

	policy := tracker.Policy{
		MaxMisses:      cfg.Players.GraceMisses,
		OutageFailures: cfg.Players.OutageFailures,
		OutageCeiling:  cfg.Players.OutageCeiling,
	}
	tree.AddCollector(collector.NewSessionCollector("players", src, db, policy,
		cfg.Players.PollInterval, cfg.Players.FetchTimeout))
	tree.AddCollector(collector.NewOnlineCountCollector(client, db,
		cfg.Players.PollInterval, cfg.Players.FetchTimeout))
}

// addWorldCollectors wires the worlds API into the world session stream
// and the status table. Both consume the same fetch via the fanout.
func addWorldCollectors(tree *supervisor.Tree, cfg *config.Config, db *database.DB) {
	client := source.NewWorldsClient(cfg.Worlds.BaseURL, cfg.Worlds.Login, cfg.Worlds.Token,
		cfg.Worlds.FetchTimeout, cfg.Worlds.RequestsPerMinute)
	fanout := collector.NewWorldsFanout(client)
	src := source.NewBreakerSource("worlds", fanout,
		uint32(cfg.Worlds.BreakerFailures), cfg.Worlds.BreakerReset)

	policy := tracker.Policy{
		MaxMisses:      cfg.Worlds.GraceMisses,
		OutageFailures: cfg.Worlds.OutageFailures,
		OutageCeiling:  cfg.Worlds.OutageCeiling,
	}
	tree.AddCollector(collector.NewSessionCollector("worlds", src, db, policy,
		cfg.Worlds.PollInterval, cfg.Worlds.FetchTimeout))
	tree.AddCollector(collector.NewWorldStatusCollector(fanout.Status(), db))
}
