// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/hivekeeper/internal/models"
	"github.com/tomtom215/hivekeeper/internal/plugin"
	"github.com/tomtom215/hivekeeper/internal/schema"
	"github.com/tomtom215/hivekeeper/internal/validation"
)

const defaultQueryLimit = 1000

// quoteIdent quotes a table or column name for DuckDB.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// CreateTable creates a record table. The id column is the primary key.
func (db *DB) CreateTable(ctx context.Context, table string, cols []schema.Column) error {
	if len(cols) == 0 {
		return fmt.Errorf("table %s has no columns", table)
	}
	defs := make([]string, 0, len(cols))
	for _, c := range cols {
		def := quoteIdent(c.Name) + " " + c.SQLType
		if c.Name == schema.ColumnID {
			def += " PRIMARY KEY"
		}
		defs = append(defs, def)
	}
	q := "CREATE TABLE IF NOT EXISTS " + quoteIdent(table) + " (" + strings.Join(defs, ", ") + ")"
	if _, err := db.conn.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}
	return nil
}

// AddColumns adds any of cols missing from table. Existing columns keep
// their type.
func (db *DB) AddColumns(ctx context.Context, table string, cols []schema.Column) error {
	for _, c := range cols {
		q := "ALTER TABLE " + quoteIdent(table) + " ADD COLUMN IF NOT EXISTS " + quoteIdent(c.Name) + " " + c.SQLType
		if _, err := db.conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("add column %s.%s: %w", table, c.Name, err)
		}
	}
	return nil
}

// DropTable drops table if it exists.
func (db *DB) DropTable(ctx context.Context, table string) error {
	if _, err := db.conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return fmt.Errorf("drop %s: %w", table, err)
	}
	return nil
}

// StoreRecord inserts rec into its record table. Every field must name a
// column of that table.
func (db *DB) StoreRecord(ctx context.Context, rec *plugin.Record) error {
	names := make([]string, 0, len(rec.Fields))
	for name := range rec.Fields {
		if !validation.IsIdentifier(name) {
			return fmt.Errorf("record field %q is not an identifier", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	cols := []string{quoteIdent(schema.ColumnID), quoteIdent(schema.ColumnDeploymentID), quoteIdent(schema.ColumnTimestamp)}
	args := []any{rec.ID.String(), rec.DeploymentID, rec.Timestamp.UTC()}
	for _, name := range names {
		v, err := columnValue(rec.Fields[name])
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		cols = append(cols, quoteIdent(strings.ToLower(name)))
		args = append(args, v)
	}

	table := schema.TableName(rec.Plugin, rec.Type)
	q := "INSERT INTO " + quoteIdent(table) + " (" + strings.Join(cols, ", ") +
		") VALUES (" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	if _, err := db.conn.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

// columnValue converts a decoded field value to something the driver binds.
func columnValue(v any) (any, error) {
	switch val := v.(type) {
	case nil, string, bool, int, int32, int64, float32, float64, time.Time:
		return val, nil
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n, nil
		}
		return val.Float64()
	case json.RawMessage:
		return string(val), nil
	case uuid.UUID:
		return val.String(), nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
}

func recordFilter(q plugin.Query) (string, []any) {
	var where []string
	var args []any
	if q.DeploymentID != 0 {
		where = append(where, quoteIdent(schema.ColumnDeploymentID)+" = ?")
		args = append(args, q.DeploymentID)
	}
	if !q.Since.IsZero() {
		where = append(where, quoteIdent(schema.ColumnTimestamp)+" >= ?")
		args = append(args, q.Since.UTC())
	}
	if !q.Until.IsZero() {
		where = append(where, quoteIdent(schema.ColumnTimestamp)+" < ?")
		args = append(args, q.Until.UTC())
	}
	if len(where) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

func queryLimit(q plugin.Query) int {
	if q.Limit <= 0 || q.Limit > defaultQueryLimit {
		return defaultQueryLimit
	}
	return q.Limit
}

// QueryRecords returns stored records of one record type, newest first.
func (db *DB) QueryRecords(ctx context.Context, q plugin.Query) ([]plugin.Record, error) {
	table := schema.TableName(q.Plugin, q.Type)
	where, args := recordFilter(q)
	stmt := "SELECT * FROM " + quoteIdent(table) + where +
		" ORDER BY " + quoteIdent(schema.ColumnTimestamp) + " DESC LIMIT ?"
	args = append(args, queryLimit(q))

	rows, err := db.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []plugin.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		rec := plugin.Record{Plugin: q.Plugin, Type: q.Type, Fields: make(map[string]any, len(cols))}
		for i, col := range cols {
			switch col {
			case schema.ColumnID:
				if s, ok := values[i].(string); ok {
					rec.ID, _ = uuid.Parse(s)
				}
			case schema.ColumnDeploymentID:
				if n, ok := values[i].(int64); ok {
					rec.DeploymentID = n
				}
			case schema.ColumnTimestamp:
				if t, ok := values[i].(time.Time); ok {
					rec.Timestamp = t.UTC()
				}
			default:
				rec.Fields[col] = values[i]
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountBy groups one record type by field and counts each group, largest
// first.
func (db *DB) CountBy(ctx context.Context, q plugin.Query, field string) ([]plugin.Count, error) {
	if !validation.IsIdentifier(field) {
		return nil, fmt.Errorf("field %q is not an identifier", field)
	}
	table := schema.TableName(q.Plugin, q.Type)
	col := quoteIdent(strings.ToLower(field))
	where, args := recordFilter(q)
	stmt := "SELECT COALESCE(CAST(" + col + " AS VARCHAR), '') AS k, count(*) AS n FROM " + quoteIdent(table) + where +
		" GROUP BY k ORDER BY n DESC, k LIMIT ?"
	args = append(args, queryLimit(q))

	rows, err := db.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("count %s by %s: %w", table, field, err)
	}
	defer rows.Close()

	var out []plugin.Count
	for rows.Next() {
		var c plugin.Count
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// StoreSelfReport persists a sensor status message.
func (db *DB) StoreSelfReport(ctx context.Context, r *models.SelfReport) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO self_reports (id, deployment_id, message, "timestamp") VALUES (?, ?, ?, ?)`,
		r.ID, r.DeploymentID, r.Message, r.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("insert self report: %w", err)
	}
	return nil
}

// SelfReports returns a deployment's status messages, newest first.
func (db *DB) SelfReports(ctx context.Context, deploymentID int64, limit int) ([]models.SelfReport, error) {
	if limit <= 0 || limit > defaultQueryLimit {
		limit = defaultQueryLimit
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, deployment_id, message, "timestamp" FROM self_reports
		 WHERE deployment_id = ? ORDER BY "timestamp" DESC LIMIT ?`, deploymentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list self reports: %w", err)
	}
	defer rows.Close()

	var out []models.SelfReport
	for rows.Next() {
		var r models.SelfReport
		if err := rows.Scan(&r.ID, &r.DeploymentID, &r.Message, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan self report: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
