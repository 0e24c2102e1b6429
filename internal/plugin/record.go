// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package plugin

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Event is one authenticated content entry handed to a service plugin.
type Event struct {
	DeploymentID int64
	Timestamp    time.Time
	// Data is the entry's raw "data" value.
	Data json.RawMessage
	// Peer is the transport address the envelope arrived from, if known.
	Peer string
}

// Decode unmarshals the event data into v.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event has no data")
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode event data: %w", err)
	}
	return nil
}

// Record is a typed, plugin-defined entity. It is never mutated after it is
// handed to the rule engine.
type Record struct {
	ID           uuid.UUID      `json:"id"`
	Plugin       string         `json:"plugin"`
	Type         string         `json:"type"`
	DeploymentID int64          `json:"deployment_id"`
	Timestamp    time.Time      `json:"timestamp"`
	Fields       map[string]any `json:"fields"`
}

// NewRecord starts a record of plugin's type typ for ev. Service
// implementations do not know the name they were installed under and pass
// an empty plugin; the collector stamps it before the record is used.
func NewRecord(plugin, typ string, ev Event) *Record {
	return &Record{
		ID:           uuid.New(),
		Plugin:       plugin,
		Type:         typ,
		DeploymentID: ev.DeploymentID,
		Timestamp:    ev.Timestamp.UTC(),
		Fields:       make(map[string]any),
	}
}

// Set assigns a field and returns r for chaining.
func (r *Record) Set(name string, value any) *Record {
	r.Fields[name] = value
	return r
}

// String returns a text field, or "" when absent.
func (r *Record) String(name string) string {
	s, _ := r.Fields[name].(string)
	return s
}

// Int returns an integer field, or 0 when absent.
func (r *Record) Int(name string) int64 {
	switch v := r.Fields[name].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}

// Query selects stored records of one plugin record type.
type Query struct {
	Plugin       string
	Type         string
	DeploymentID int64
	Since        time.Time
	Until        time.Time
	Limit        int
}

// Count is one bucket of an aggregate query.
type Count struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// RecordQuerier is the read side of the record store available to reports.
type RecordQuerier interface {
	QueryRecords(ctx context.Context, q Query) ([]Record, error)
	CountBy(ctx context.Context, q Query, field string) ([]Count, error)
}

type scopedQuerier struct {
	RecordQuerier
	plugin string
}

// ScopeQuerier returns a RecordQuerier that reads plugin's record tables.
// Reports run through it because services build queries without their
// installed name.
func ScopeQuerier(q RecordQuerier, plugin string) RecordQuerier {
	return scopedQuerier{RecordQuerier: q, plugin: plugin}
}

func (s scopedQuerier) QueryRecords(ctx context.Context, q Query) ([]Record, error) {
	q.Plugin = s.plugin
	return s.RecordQuerier.QueryRecords(ctx, q)
}

func (s scopedQuerier) CountBy(ctx context.Context, q Query, field string) ([]Count, error) {
	q.Plugin = s.plugin
	return s.RecordQuerier.CountBy(ctx, q, field)
}
