// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package database

import (
	"context"
	"fmt"
)

// Migration is one versioned schema change. Migrations are append-only.
type Migration struct {
	Version int
	Name    string
	SQL     []string
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name VARCHAR NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT current_timestamp
)`

func migrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "core_tables",
			SQL: []string{
				`CREATE SEQUENCE IF NOT EXISTS profiles_id_seq`,
				`CREATE SEQUENCE IF NOT EXISTS deployments_id_seq`,
				`CREATE SEQUENCE IF NOT EXISTS rules_id_seq`,
				`CREATE TABLE IF NOT EXISTS profiles (
					id BIGINT PRIMARY KEY DEFAULT nextval('profiles_id_seq'),
					name VARCHAR NOT NULL UNIQUE,
					description VARCHAR NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS profile_services (
					profile_id BIGINT NOT NULL,
					service VARCHAR NOT NULL,
					"position" INTEGER NOT NULL,
					config VARCHAR,
					PRIMARY KEY (profile_id, service)
				)`,
				`CREATE TABLE IF NOT EXISTS deployments (
					id BIGINT PRIMARY KEY DEFAULT nextval('deployments_id_seq'),
					name VARCHAR NOT NULL,
					profile_id BIGINT NOT NULL,
					instance_key VARCHAR NOT NULL UNIQUE,
					mac_key VARCHAR NOT NULL,
					encryption_key VARCHAR NOT NULL,
					hostname VARCHAR NOT NULL DEFAULT '',
					"interface" VARCHAR NOT NULL DEFAULT '',
					collector_type VARCHAR NOT NULL,
					debug BOOLEAN NOT NULL DEFAULT false,
					created_at TIMESTAMP NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS service_plugins (
					name VARCHAR PRIMARY KEY,
					description VARCHAR NOT NULL DEFAULT '',
					record_types VARCHAR NOT NULL DEFAULT '[]',
					installed_at TIMESTAMP NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS notification_plugins (
					name VARCHAR PRIMARY KEY,
					description VARCHAR NOT NULL DEFAULT '',
					installed_at TIMESTAMP NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS rules (
					id BIGINT PRIMARY KEY DEFAULT nextval('rules_id_seq'),
					service VARCHAR NOT NULL,
					notification VARCHAR NOT NULL DEFAULT '',
					"condition" VARCHAR NOT NULL,
					"level" INTEGER NOT NULL,
					action VARCHAR NOT NULL,
					notification_config VARCHAR,
					created_at TIMESTAMP NOT NULL,
					UNIQUE (service, notification, "condition")
				)`,
				`CREATE TABLE IF NOT EXISTS self_reports (
					id VARCHAR PRIMARY KEY,
					deployment_id BIGINT NOT NULL,
					message VARCHAR NOT NULL,
					"timestamp" TIMESTAMP NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_rules_service ON rules(service)`,
				`CREATE INDEX IF NOT EXISTS idx_self_reports_deployment ON self_reports(deployment_id)`,
			},
		},
	}
}

// migrate applies every migration newer than the recorded version.
func (db *DB) migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	var current int
	if err := db.conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations() {
		if m.Version <= current {
			continue
		}
		for _, stmt := range m.SQL {
			if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
			}
		}
		if _, err := db.conn.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.Version, m.Name); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// SchemaVersion returns the highest applied migration.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := db.conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&v)
	return v, err
}
