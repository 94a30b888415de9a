// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/nodetree/pkg/logging"
	"github.com/AleutianAI/nodetree/services/nodetree"
	"github.com/AleutianAI/nodetree/services/nodetree/config"
	"github.com/AleutianAI/nodetree/services/nodetree/contentrepo"
	"github.com/AleutianAI/nodetree/services/nodetree/graph"
	"github.com/AleutianAI/nodetree/services/nodetree/presentation"
	"github.com/AleutianAI/nodetree/services/nodetree/privilege"
	"github.com/AleutianAI/nodetree/services/nodetree/record"
	"github.com/AleutianAI/nodetree/services/nodetree/storage/badger"
	"github.com/AleutianAI/nodetree/services/nodetree/telemetry"
)

// app holds what every command needs: configuration, logger and the
// opened projection store.
type app struct {
	cfg    config.NodetreeConfig
	logger *logging.Logger
	db     *badger.DB
	store  *badger.Store
}

// loadConfig reads the configuration and applies the persistent flags.
func loadConfig() (config.NodetreeConfig, error) {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return config.NodetreeConfig{}, err
		}
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return config.NodetreeConfig{}, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if inMemory {
		cfg.Storage.InMemory = true
	}
	return cfg, nil
}

// newLogger builds the process logger. Commands that print results keep
// the console quiet below warnings so their output stays parseable.
func newLogger(cfg config.NodetreeConfig, interactive bool) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	if interactive && level < logging.LevelWarn {
		level = logging.LevelWarn
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "nodetree",
		JSON:    cfg.Logging.JSON,
		Output:  os.Stderr,
	})
	logger.SetDefault()
	return logger, nil
}

// openApp loads the configuration, opens the store and, for in-memory
// stores or when seed is set, seeds the configured fixture.
func openApp(ctx context.Context, interactive, seed bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg, interactive)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	types := graph.DefaultNodeTypes()
	if cfg.NodeTypes.Path != "" {
		if types, err = graph.LoadNodeTypes(cfg.NodeTypes.Path); err != nil {
			a.Close()
			return nil, err
		}
	}

	dbCfg := badger.DefaultConfig(cfg.Storage.Path)
	if cfg.Storage.InMemory {
		dbCfg = badger.InMemoryConfig()
	}
	dbCfg.Logger = logger.Slog()
	if a.db, err = badger.Open(dbCfg); err != nil {
		a.Close()
		return nil, fmt.Errorf("open projection store: %w", err)
	}

	a.store, err = badger.NewStore(a.db, badger.StoreOptions{
		RepositoryID: graph.ContentRepositoryID(cfg.Storage.RepositoryID),
		NodeTypes:    graph.NewNodeTypeManager(types...),
		CacheSize:    cfg.Storage.CacheSize,
		Logger:       logger.Slog(),
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Storage.Fixture != "" && (seed || cfg.Storage.InMemory) {
		if _, err := a.seed(ctx, cfg.Storage.Fixture); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// seed writes the fixture at path into the store.
func (a *app) seed(ctx context.Context, path string) (badger.SeedStats, error) {
	fixture, err := badger.LoadFixture(path)
	if err != nil {
		return badger.SeedStats{}, err
	}
	stats, err := a.store.Seed(ctx, fixture)
	if err != nil {
		return badger.SeedStats{}, fmt.Errorf("seed %s: %w", path, err)
	}
	a.logger.Info("fixture seeded",
		slog.String("path", path),
		slog.Int("workspaces", stats.Workspaces),
		slog.Int("nodes", stats.Nodes),
		slog.Int("changes", stats.Changes))
	return stats, nil
}

// service builds the read model service over the store. metrics may be nil.
func (a *app) service(metrics *telemetry.Metrics) (*nodetree.Service, error) {
	registry, err := contentrepo.NewRegistry(a.store.Repository())
	if err != nil {
		return nil, err
	}

	var uris record.URIBuilder
	if base := a.cfg.Presentation.PreviewBaseURL; base != "" {
		builder, err := presentation.NewPreviewURIBuilder(base)
		if err != nil {
			return nil, err
		}
		uris = builder
	}

	return nodetree.NewService(registry, nodetree.ServiceOptions{
		DefaultRepository: graph.ContentRepositoryID(a.cfg.Storage.RepositoryID),
		Roles:             a.cfg.Roles,
		Policy:            privilege.NewStaticPolicy(a.cfg.Privilege, a.store.NodeTypes()),
		URIs:              uris,
		Metrics:           metrics,
		Logger:            a.logger.Slog(),
	}), nil
}

// meterMetrics creates the service instruments on the global meter.
func meterMetrics() (*telemetry.Metrics, error) {
	return telemetry.NewMetrics(otel.Meter("github.com/AleutianAI/nodetree"))
}

// Close releases the store and the log file.
func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("close projection store", slog.String("error", err.Error()))
		}
	}
	if a.logger != nil {
		_ = a.logger.Close()
	}
}
