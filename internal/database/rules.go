// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/hivekeeper/internal/models"
)

const ruleColumns = `id, service, notification, "condition", "level", action, notification_config, created_at`

func scanRule(row rowScanner) (*models.Rule, error) {
	var r models.Rule
	var cond, action string
	var cfg sql.NullString
	if err := row.Scan(&r.ID, &r.Service, &r.Notification, &cond, &r.Level, &action, &cfg, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Condition = models.Condition(cond)
	r.Action = models.Action(action)
	var err error
	if r.NotificationConfig, err = decodeConfig(cfg); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRule inserts r and sets its ID and CreatedAt. A rule with the same
// service, notification, and condition yields ErrDuplicateRule. A rule
// without a notification is stored with an empty notification name so the
// uniqueness check covers it too.
func (db *DB) CreateRule(ctx context.Context, r *models.Rule) error {
	cfg, err := encodeConfig(r.NotificationConfig)
	if err != nil {
		return err
	}
	r.CreatedAt = time.Now().UTC()

	return db.inTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT count(*) FROM rules WHERE service = ? AND notification = ? AND "condition" = ?`,
			r.Service, r.Notification, string(r.Condition)).Scan(&n); err != nil {
			return fmt.Errorf("check rule uniqueness: %w", err)
		}
		if n > 0 {
			return ErrDuplicateRule
		}
		err := tx.QueryRowContext(ctx, `
			INSERT INTO rules (service, notification, "condition", "level", action, notification_config, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			RETURNING id`,
			r.Service, r.Notification, string(r.Condition), r.Level, string(r.Action), cfg, r.CreatedAt,
		).Scan(&r.ID)
		if err != nil {
			if isConstraintViolation(err) {
				return ErrDuplicateRule
			}
			return fmt.Errorf("insert rule: %w", err)
		}
		return nil
	})
}

// GetRule returns the rule with id.
func (db *DB) GetRule(ctx context.Context, id int64) (*models.Rule, error) {
	r, err := scanRule(db.conn.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get rule %d: %w", id, err)
	}
	return r, nil
}

// DeleteRule removes the rule with id.
func (db *DB) DeleteRule(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rule %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// RulesForService returns a service's rules by ascending level, ties by id.
func (db *DB) RulesForService(ctx context.Context, service string) ([]models.Rule, error) {
	return db.queryRules(ctx,
		`SELECT `+ruleColumns+` FROM rules WHERE service = ? ORDER BY "level", id`, service)
}

// ListRules returns every rule grouped by service.
func (db *DB) ListRules(ctx context.Context) ([]models.Rule, error) {
	return db.queryRules(ctx, `SELECT `+ruleColumns+` FROM rules ORDER BY service, "level", id`)
}

func (db *DB) queryRules(ctx context.Context, query string, args ...any) ([]models.Rule, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var out []models.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
