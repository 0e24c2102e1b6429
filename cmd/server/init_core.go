// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/hivekeeper/internal/artifact"
	"github.com/tomtom215/hivekeeper/internal/builtin"
	"github.com/tomtom215/hivekeeper/internal/config"
	"github.com/tomtom215/hivekeeper/internal/database"
	"github.com/tomtom215/hivekeeper/internal/installer"
	"github.com/tomtom215/hivekeeper/internal/kvstore"
	"github.com/tomtom215/hivekeeper/internal/logging"
	"github.com/tomtom215/hivekeeper/internal/plugin"
	"github.com/tomtom215/hivekeeper/internal/registry"
	"github.com/tomtom215/hivekeeper/internal/rules"
	"github.com/tomtom215/hivekeeper/internal/schema"
	"github.com/tomtom215/hivekeeper/internal/supervisor"
)

// core is the storage and plugin state shared by the collector and the API.
type core struct {
	db       *database.DB
	state    *kvstore.Store
	schema   *schema.Registry
	registry *registry.Registry
	rules    *rules.Manager
}

func initCore(ctx context.Context, cfg *config.Config, tree *supervisor.SupervisorTree) (*core, error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	logging.Info().Str("path", cfg.Database.Path).Msg("Database initialized")

	state, err := kvstore.Open(kvstore.DefaultConfig(cfg.Registry.StatePath))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open state store: %w", err)
	}
	c := &core{db: db, state: state}
	tree.AddStorageService(state)

	// Tables must exist again before any plugin that writes to them is restored.
	c.schema = schema.NewRegistry(db, state)
	if err := c.schema.Restore(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("restore record schema: %w", err)
	}

	artifacts, err := artifact.NewDiskStore(cfg.Registry.ArtifactRoot)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("open plugin artifacts: %w", err)
	}

	worker := installer.NewWorker(cfg.Registry.InstallQueueSize, cfg.Registry.InstallTimeout)
	tree.AddPluginService(worker)

	c.registry = registry.New(registry.Deps{
		Loader:    plugin.NewLoader(builtin.NewCatalog()),
		Artifacts: artifacts,
		Schema:    c.schema,
		State:     state,
		Metadata:  db,
		Packages:  installer.NewExecInstaller(cfg.Registry.AptCommand, cfg.Registry.PipCommand, cfg.Registry.InstallTimeout),
		Tasks:     worker,
	})
	if err := c.registry.Restore(ctx); err != nil {
		// Restore keeps every plugin it could read; a partial log is not fatal.
		logging.Error().Err(err).Msg("Plugin registry restored with errors")
	}

	c.rules = rules.NewManager(db, c.registry)
	return c, nil
}

// Close releases the stores. It runs after the tree has stopped.
func (c *core) Close() {
	var errs []error
	if c.state != nil {
		errs = append(errs, c.state.Close())
	}
	if c.db != nil {
		errs = append(errs, c.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		logging.Error().Err(err).Msg("Error closing stores")
	}
}
