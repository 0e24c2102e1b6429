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

	"github.com/goccy/go-json"

	"github.com/tomtom215/hivekeeper/internal/models"
)

// CreateProfile inserts p and sets its ID and CreatedAt.
func (db *DB) CreateProfile(ctx context.Context, p *models.Profile) error {
	p.CreatedAt = time.Now().UTC()
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO profiles (name, description, created_at) VALUES (?, ?, ?) RETURNING id`,
		p.Name, p.Description, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: profile %q", ErrDuplicateName, p.Name)
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// GetProfile returns the profile with id.
func (db *DB) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	var p models.Profile
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM profiles WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %d: %w", id, err)
	}
	return &p, nil
}

// ListProfiles returns every profile ordered by id.
func (db *DB) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, name, description, created_at FROM profiles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []models.Profile
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProfile removes an unused profile and its service list.
func (db *DB) DeleteProfile(ctx context.Context, id int64) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		var users int
		if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM deployments WHERE profile_id = ?`, id).Scan(&users); err != nil {
			return fmt.Errorf("count profile users: %w", err)
		}
		if users > 0 {
			return fmt.Errorf("%w: %d deployments", ErrProfileInUse, users)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM profile_services WHERE profile_id = ?`, id); err != nil {
			return fmt.Errorf("delete profile services: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete profile %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrProfileNotFound
		}
		return nil
	})
}

// AddProfileService enables a service in a profile, appending it to the
// profile's order. Re-adding an enabled service replaces its configuration
// and keeps its position.
func (db *DB) AddProfileService(ctx context.Context, ps *models.ProfileService) error {
	if _, err := db.GetProfile(ctx, ps.ProfileID); err != nil {
		return err
	}
	cfg, err := encodeConfig(ps.Config)
	if err != nil {
		return err
	}
	return db.inTx(ctx, func(tx *sql.Tx) error {
		var pos sql.NullInt64
		err := tx.QueryRowContext(ctx,
			`SELECT "position" FROM profile_services WHERE profile_id = ? AND service = ?`,
			ps.ProfileID, ps.Service).Scan(&pos)
		switch {
		case err == nil:
			ps.Position = int(pos.Int64)
			if _, err := tx.ExecContext(ctx,
				`UPDATE profile_services SET config = ? WHERE profile_id = ? AND service = ?`,
				cfg, ps.ProfileID, ps.Service); err != nil {
				return fmt.Errorf("update profile service: %w", err)
			}
			return nil
		case errors.Is(err, sql.ErrNoRows):
			var next int
			if err := tx.QueryRowContext(ctx,
				`SELECT COALESCE(MAX("position"), -1) + 1 FROM profile_services WHERE profile_id = ?`,
				ps.ProfileID).Scan(&next); err != nil {
				return fmt.Errorf("next profile position: %w", err)
			}
			ps.Position = next
		default:
			return fmt.Errorf("read profile service: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO profile_services (profile_id, service, "position", config) VALUES (?, ?, ?, ?)`,
			ps.ProfileID, ps.Service, ps.Position, cfg)
		if err != nil {
			return fmt.Errorf("insert profile service: %w", err)
		}
		return nil
	})
}

// RemoveProfileService disables a service in a profile.
func (db *DB) RemoveProfileService(ctx context.Context, profileID int64, service string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM profile_services WHERE profile_id = ? AND service = ?`, profileID, service)
	if err != nil {
		return fmt.Errorf("remove profile service: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrServiceNotEnabled
	}
	return nil
}

// ProfileService returns the entry for service in a profile, or
// ErrServiceNotEnabled.
func (db *DB) ProfileService(ctx context.Context, profileID int64, service string) (*models.ProfileService, error) {
	var ps models.ProfileService
	var cfg sql.NullString
	err := db.conn.QueryRowContext(ctx,
		`SELECT profile_id, service, "position", config FROM profile_services WHERE profile_id = ? AND service = ?`,
		profileID, service,
	).Scan(&ps.ProfileID, &ps.Service, &ps.Position, &cfg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrServiceNotEnabled
	}
	if err != nil {
		return nil, fmt.Errorf("get profile service: %w", err)
	}
	if ps.Config, err = decodeConfig(cfg); err != nil {
		return nil, err
	}
	return &ps, nil
}

// ProfileServices returns a profile's enabled services in order.
func (db *DB) ProfileServices(ctx context.Context, profileID int64) ([]models.ProfileService, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT profile_id, service, "position", config FROM profile_services WHERE profile_id = ? ORDER BY "position"`,
		profileID)
	if err != nil {
		return nil, fmt.Errorf("list profile services: %w", err)
	}
	defer rows.Close()

	var out []models.ProfileService
	for rows.Next() {
		var ps models.ProfileService
		var cfg sql.NullString
		if err := rows.Scan(&ps.ProfileID, &ps.Service, &ps.Position, &cfg); err != nil {
			return nil, fmt.Errorf("scan profile service: %w", err)
		}
		if ps.Config, err = decodeConfig(cfg); err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

func encodeConfig(cfg map[string]any) (sql.NullString, error) {
	if len(cfg) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode config: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeConfig(s sql.NullString) (map[string]any, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var cfg map[string]any
	if err := json.Unmarshal([]byte(s.String), &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
