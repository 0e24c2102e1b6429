// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/hivekeeper/internal/models"
)

// SaveServicePlugin inserts or replaces a service plugin descriptor.
func (db *DB) SaveServicePlugin(ctx context.Context, d models.ServicePluginDescriptor) error {
	types, err := json.Marshal(d.RecordTypes)
	if err != nil {
		return fmt.Errorf("encode record types: %w", err)
	}
	_, err = db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO service_plugins (name, description, record_types, installed_at) VALUES (?, ?, ?, ?)`,
		d.Name, d.Description, string(types), d.InstalledAt)
	if err != nil {
		return fmt.Errorf("save service plugin %s: %w", d.Name, err)
	}
	return nil
}

// DeleteServicePlugin removes a service plugin descriptor with its rules
// and profile assignments.
func (db *DB) DeleteServicePlugin(ctx context.Context, name string) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM rules WHERE service = ?`,
			`DELETE FROM profile_services WHERE service = ?`,
			`DELETE FROM service_plugins WHERE name = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, name); err != nil {
				return fmt.Errorf("delete service plugin %s: %w", name, err)
			}
		}
		return nil
	})
}

// ListServicePlugins returns every service plugin descriptor by name.
func (db *DB) ListServicePlugins(ctx context.Context) ([]models.ServicePluginDescriptor, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT name, description, record_types, installed_at FROM service_plugins ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list service plugins: %w", err)
	}
	defer rows.Close()

	var out []models.ServicePluginDescriptor
	for rows.Next() {
		var d models.ServicePluginDescriptor
		var types string
		if err := rows.Scan(&d.Name, &d.Description, &types, &d.InstalledAt); err != nil {
			return nil, fmt.Errorf("scan service plugin: %w", err)
		}
		if err := json.Unmarshal([]byte(types), &d.RecordTypes); err != nil {
			return nil, fmt.Errorf("decode record types of %s: %w", d.Name, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SaveNotificationPlugin inserts or replaces a notification plugin descriptor.
func (db *DB) SaveNotificationPlugin(ctx context.Context, d models.NotificationPluginDescriptor) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO notification_plugins (name, description, installed_at) VALUES (?, ?, ?)`,
		d.Name, d.Description, d.InstalledAt)
	if err != nil {
		return fmt.Errorf("save notification plugin %s: %w", d.Name, err)
	}
	return nil
}

// DeleteNotificationPlugin removes a notification plugin descriptor and
// every rule that references it.
func (db *DB) DeleteNotificationPlugin(ctx context.Context, name string) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM rules WHERE notification = ?`, name); err != nil {
			return fmt.Errorf("delete rules of %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM notification_plugins WHERE name = ?`, name); err != nil {
			return fmt.Errorf("delete notification plugin %s: %w", name, err)
		}
		return nil
	})
}

// ListNotificationPlugins returns every notification plugin descriptor by name.
func (db *DB) ListNotificationPlugins(ctx context.Context) ([]models.NotificationPluginDescriptor, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT name, description, installed_at FROM notification_plugins ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list notification plugins: %w", err)
	}
	defer rows.Close()

	var out []models.NotificationPluginDescriptor
	for rows.Next() {
		var d models.NotificationPluginDescriptor
		if err := rows.Scan(&d.Name, &d.Description, &d.InstalledAt); err != nil {
			return nil, fmt.Errorf("scan notification plugin: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
