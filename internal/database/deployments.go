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

const deploymentColumns = `id, name, profile_id, instance_key, mac_key, encryption_key,
	hostname, "interface", collector_type, debug, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeployment(row rowScanner) (*models.Deployment, error) {
	var d models.Deployment
	var collector string
	err := row.Scan(&d.ID, &d.Name, &d.ProfileID, &d.InstanceKey, &d.MACKey, &d.EncryptionKey,
		&d.Hostname, &d.Interface, &collector, &d.Debug, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	d.CollectorType = models.CollectorType(collector)
	return &d, nil
}

// CreateDeployment inserts d and sets its ID and CreatedAt. Key material
// must already be generated; the profile must exist.
func (db *DB) CreateDeployment(ctx context.Context, d *models.Deployment) error {
	if d.InstanceKey == "" || d.MACKey == "" || d.EncryptionKey == "" {
		return errors.New("deployment key material is required")
	}
	if _, err := db.GetProfile(ctx, d.ProfileID); err != nil {
		return err
	}
	if d.CollectorType == "" {
		d.CollectorType = models.CollectorUDP
	}
	d.CreatedAt = time.Now().UTC()

	err := db.conn.QueryRowContext(ctx, `
		INSERT INTO deployments (name, profile_id, instance_key, mac_key, encryption_key,
			hostname, "interface", collector_type, debug, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		d.Name, d.ProfileID, d.InstanceKey, d.MACKey, d.EncryptionKey,
		d.Hostname, d.Interface, string(d.CollectorType), d.Debug, d.CreatedAt,
	).Scan(&d.ID)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: instance key", ErrDuplicateName)
		}
		return fmt.Errorf("insert deployment: %w", err)
	}
	return nil
}

// GetDeployment returns the deployment with id.
func (db *DB) GetDeployment(ctx context.Context, id int64) (*models.Deployment, error) {
	d, err := scanDeployment(db.conn.QueryRowContext(ctx,
		`SELECT `+deploymentColumns+` FROM deployments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeploymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get deployment %d: %w", id, err)
	}
	return d, nil
}

// DeploymentByInstanceKey resolves the routing key a sensor presents.
func (db *DB) DeploymentByInstanceKey(ctx context.Context, instanceKey string) (*models.Deployment, error) {
	d, err := scanDeployment(db.conn.QueryRowContext(ctx,
		`SELECT `+deploymentColumns+` FROM deployments WHERE instance_key = ?`, instanceKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeploymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get deployment by instance key: %w", err)
	}
	return d, nil
}

// ListDeployments returns every deployment ordered by id.
func (db *DB) ListDeployments(ctx context.Context) ([]models.Deployment, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+deploymentColumns+` FROM deployments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	defer rows.Close()

	var out []models.Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deployment: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// DeleteDeployment removes a deployment together with its self reports and
// its rows in every record table listed in recordTables, in one transaction.
func (db *DB) DeleteDeployment(ctx context.Context, id int64, recordTables []string) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM deployments WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete deployment %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrDeploymentNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM self_reports WHERE deployment_id = ?`, id); err != nil {
			return fmt.Errorf("delete self reports of %d: %w", id, err)
		}
		for _, table := range recordTables {
			q := `DELETE FROM ` + quoteIdent(table) + ` WHERE deployment_id = ?`
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return fmt.Errorf("delete %s rows of %d: %w", table, id, err)
			}
		}
		return nil
	})
}
