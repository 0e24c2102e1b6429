// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

// Package schema owns the record tables contributed by service plugins.
//
// Schema mutation is explicit: a plugin's record types are registered and
// unregistered through Registry, which applies DDL through an Executor and
// keeps a durable log of "<plugin>.<type>" entries in the state store. After
// a restart the log alone is enough to know which tables belong to whom.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/hivekeeper/internal/validation"
)

// FieldType is the storage type of a record field.
type FieldType string

const (
	TypeText      FieldType = "text"
	TypeInteger   FieldType = "integer"
	TypeFloat     FieldType = "float"
	TypeBool      FieldType = "bool"
	TypeTimestamp FieldType = "timestamp"
	// TypeJSON values are stored as their JSON encoding.
	TypeJSON FieldType = "json"
)

// SQLType maps t to a DuckDB column type.
func (t FieldType) SQLType() (string, error) {
	switch t {
	case TypeText, TypeJSON:
		return "VARCHAR", nil
	case TypeInteger:
		return "BIGINT", nil
	case TypeFloat:
		return "DOUBLE", nil
	case TypeBool:
		return "BOOLEAN", nil
	case TypeTimestamp:
		return "TIMESTAMP", nil
	}
	return "", fmt.Errorf("unknown field type %q", t)
}

// Implicit columns present on every record table.
const (
	ColumnID           = "id"
	ColumnDeploymentID = "deployment_id"
	ColumnTimestamp    = "timestamp"
)

var implicitColumns = []Column{
	{Name: ColumnID, SQLType: "VARCHAR"},
	{Name: ColumnDeploymentID, SQLType: "BIGINT"},
	{Name: ColumnTimestamp, SQLType: "TIMESTAMP"},
}

// Field is one plugin-declared column.
type Field struct {
	Name string    `json:"name" yaml:"name"`
	Type FieldType `json:"type" yaml:"type"`
}

// RecordType is a named set of fields contributed by a service plugin.
type RecordType struct {
	Name   string  `json:"name" yaml:"name"`
	Fields []Field `json:"fields" yaml:"fields"`
}

// Column is a physical column handed to an Executor.
type Column struct {
	Name    string
	SQLType string
}

var (
	// ErrInvalidRecordType wraps every RecordType validation failure.
	ErrInvalidRecordType = errors.New("invalid record type")

	// ErrInvalidPluginName is returned for plugin names that cannot be
	// mapped to a table name unambiguously.
	ErrInvalidPluginName = errors.New("invalid plugin name for record tables")
)

// tableSeparator joins plugin and record type in a table name, so neither
// part may contain it.
const tableSeparator = "__"

// ValidatePluginName checks that plugin can own record tables.
func ValidatePluginName(plugin string) error {
	if !validation.IsIdentifier(plugin) {
		return fmt.Errorf("%w: %q is not an identifier", ErrInvalidPluginName, plugin)
	}
	if strings.Contains(plugin, tableSeparator) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidPluginName, plugin, tableSeparator)
	}
	return nil
}

// Validate checks names, types, and collisions with the implicit columns.
func (rt RecordType) Validate() error {
	if !validation.IsIdentifier(rt.Name) {
		return fmt.Errorf("%w: name %q is not an identifier", ErrInvalidRecordType, rt.Name)
	}
	if strings.Contains(rt.Name, tableSeparator) {
		return fmt.Errorf("%w: name %q contains %q", ErrInvalidRecordType, rt.Name, tableSeparator)
	}
	seen := make(map[string]bool, len(rt.Fields))
	for _, f := range rt.Fields {
		if !validation.IsIdentifier(f.Name) {
			return fmt.Errorf("%w: %s: field %q is not an identifier", ErrInvalidRecordType, rt.Name, f.Name)
		}
		lower := strings.ToLower(f.Name)
		switch lower {
		case ColumnID, ColumnDeploymentID, ColumnTimestamp:
			return fmt.Errorf("%w: %s: field %q is reserved", ErrInvalidRecordType, rt.Name, f.Name)
		}
		if seen[lower] {
			return fmt.Errorf("%w: %s: duplicate field %q", ErrInvalidRecordType, rt.Name, f.Name)
		}
		seen[lower] = true
		if _, err := f.Type.SQLType(); err != nil {
			return fmt.Errorf("%w: %s.%s: %v", ErrInvalidRecordType, rt.Name, f.Name, err)
		}
	}
	return nil
}

// Columns returns the implicit columns followed by the declared fields.
func (rt RecordType) Columns() ([]Column, error) {
	cols := make([]Column, 0, len(implicitColumns)+len(rt.Fields))
	cols = append(cols, implicitColumns...)
	for _, f := range rt.Fields {
		st, err := f.Type.SQLType()
		if err != nil {
			return nil, err
		}
		cols = append(cols, Column{Name: strings.ToLower(f.Name), SQLType: st})
	}
	return cols, nil
}

// Field returns the declared field called name.
func (rt RecordType) Field(name string) (Field, bool) {
	for _, f := range rt.Fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return Field{}, false
}

// TableName is the physical table backing plugin's record type typ.
// Names are case-folded, so two plugins differing only in case map to the
// same table and Registry refuses the second one.
func TableName(plugin, typ string) string {
	return strings.ToLower("rec_" + plugin + tableSeparator + typ)
}

// EntryName is the log entry for plugin's record type typ.
func EntryName(plugin, typ string) string {
	return plugin + "." + typ
}
