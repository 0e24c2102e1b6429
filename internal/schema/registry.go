// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package schema

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/hivekeeper/internal/kvstore"
	"github.com/tomtom215/hivekeeper/internal/logging"
)

const logPrefix = "schema/"

// ErrTableOwned is returned when a record type would share its table with
// another plugin's record type.
var ErrTableOwned = errors.New("record table already owned")

// Executor applies DDL to the record store. Every method must be idempotent.
type Executor interface {
	// CreateTable creates table with cols if it does not exist.
	CreateTable(ctx context.Context, table string, cols []Column) error
	// AddColumns adds any of cols missing from table.
	AddColumns(ctx context.Context, table string, cols []Column) error
	// DropTable drops table if it exists.
	DropTable(ctx context.Context, table string) error
}

// LogStore is the durable side of the registry. *kvstore.Store implements it.
type LogStore interface {
	PutJSON(key string, v any) error
	Delete(key string) error
	DeletePrefix(prefix string) (int, error)
	List(prefix string) ([]kvstore.Item, error)
}

// Registry tracks which live record tables belong to which service plugin.
//
// The in-memory view is rebuilt from the log by Restore. The log is only
// appended after the DDL succeeds and only trimmed after the drop succeeds,
// so a tracked entry never points at a table that was never created and a
// dropped table never leaves the log first.
type Registry struct {
	exec Executor
	log  LogStore

	mu   sync.RWMutex
	live map[string]map[string]RecordType
}

// NewRegistry creates an empty registry. Call Restore before use after a restart.
func NewRegistry(exec Executor, log LogStore) *Registry {
	return &Registry{
		exec: exec,
		log:  log,
		live: make(map[string]map[string]RecordType),
	}
}

func logKey(plugin, typ string) string {
	return logPrefix + EntryName(plugin, typ)
}

func pluginPrefix(plugin string) string {
	return logPrefix + plugin + "."
}

// Register ensures the table for plugin's record type exists with every
// declared column, then records it in the log.
func (r *Registry) Register(ctx context.Context, plugin string, rt RecordType) error {
	if err := ValidatePluginName(plugin); err != nil {
		return err
	}
	if err := rt.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.register(ctx, plugin, rt)
}

func (r *Registry) register(ctx context.Context, plugin string, rt RecordType) error {
	if p, typ, ok := r.owner(TableName(plugin, rt.Name)); ok && (p != plugin || typ != rt.Name) {
		return fmt.Errorf("%w: %s is owned by %s", ErrTableOwned, TableName(plugin, rt.Name), EntryName(p, typ))
	}
	if err := r.apply(ctx, plugin, rt); err != nil {
		return err
	}
	if err := r.log.PutJSON(logKey(plugin, rt.Name), rt); err != nil {
		return fmt.Errorf("record schema entry %s: %w", EntryName(plugin, rt.Name), err)
	}
	r.setLive(plugin, rt)
	return nil
}

func (r *Registry) apply(ctx context.Context, plugin string, rt RecordType) error {
	cols, err := rt.Columns()
	if err != nil {
		return err
	}
	table := TableName(plugin, rt.Name)
	if err := r.exec.CreateTable(ctx, table, cols); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	if err := r.exec.AddColumns(ctx, table, cols); err != nil {
		return fmt.Errorf("add columns to %s: %w", table, err)
	}
	return nil
}

// owner returns the registered plugin and record type backed by table.
// Caller holds r.mu.
func (r *Registry) owner(table string) (string, string, bool) {
	for p, types := range r.live {
		for typ := range types {
			if TableName(p, typ) == table {
				return p, typ, true
			}
		}
	}
	return "", "", false
}

func (r *Registry) setLive(plugin string, rt RecordType) {
	types, ok := r.live[plugin]
	if !ok {
		types = make(map[string]RecordType)
		r.live[plugin] = types
	}
	types[rt.Name] = rt
}

// Merge registers every type in types. Types the plugin registered earlier
// but no longer declares are left untouched, as are other plugins' types.
func (r *Registry) Merge(ctx context.Context, plugin string, types []RecordType) error {
	if err := ValidatePluginName(plugin); err != nil {
		return err
	}
	for _, rt := range types {
		if err := rt.Validate(); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rt := range types {
		if err := r.register(ctx, plugin, rt); err != nil {
			return err
		}
	}
	return nil
}

// Unregister drops one record type's table and then removes its log entry.
func (r *Registry) Unregister(ctx context.Context, plugin, typ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	table := TableName(plugin, typ)
	if err := r.exec.DropTable(ctx, table); err != nil {
		return fmt.Errorf("drop table %s: %w", table, err)
	}
	if err := r.log.Delete(logKey(plugin, typ)); err != nil {
		return fmt.Errorf("remove schema entry %s: %w", EntryName(plugin, typ), err)
	}
	if types, ok := r.live[plugin]; ok {
		delete(types, typ)
		if len(types) == 0 {
			delete(r.live, plugin)
		}
	}
	return nil
}

// DropPlugin drops every table owned by plugin. The log is left intact so
// that a failure part way through can be retried; call ForgetPlugin once
// the remaining uninstall steps have succeeded.
func (r *Registry) DropPlugin(ctx context.Context, plugin string) error {
	r.mu.RLock()
	names := r.ownedNames(plugin)
	r.mu.RUnlock()

	for _, typ := range names {
		table := TableName(plugin, typ)
		if err := r.exec.DropTable(ctx, table); err != nil {
			return fmt.Errorf("drop table %s: %w", table, err)
		}
		logging.Debug().Str("plugin", plugin).Str("table", table).Msg("Record table dropped")
	}
	return nil
}

// ForgetPlugin removes every log entry of plugin.
func (r *Registry) ForgetPlugin(plugin string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.log.DeletePrefix(pluginPrefix(plugin)); err != nil {
		return fmt.Errorf("remove schema entries of %s: %w", plugin, err)
	}
	delete(r.live, plugin)
	return nil
}

func (r *Registry) ownedNames(plugin string) []string {
	types := r.live[plugin]
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Owned returns plugin's registered record types sorted by name.
func (r *Registry) Owned(plugin string) []RecordType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.ownedNames(plugin)
	out := make([]RecordType, len(names))
	for i, n := range names {
		out[i] = r.live[plugin][n]
	}
	return out
}

// Lookup returns the registered record type typ of plugin.
func (r *Registry) Lookup(plugin, typ string) (RecordType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.live[plugin][typ]
	return rt, ok
}

// Tables returns every live record table, sorted.
func (r *Registry) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tables []string
	for plugin, types := range r.live {
		for typ := range types {
			tables = append(tables, TableName(plugin, typ))
		}
	}
	sort.Strings(tables)
	return tables
}

// Entries returns the durable log as "<plugin>.<type>" strings in key order.
func (r *Registry) Entries() ([]string, error) {
	items, err := r.log.List(logPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = strings.TrimPrefix(it.Key, logPrefix)
	}
	return out, nil
}

// Restore replays the durable log, re-applying DDL so that every tracked
// table exists with its tracked columns. Entries that cannot be decoded or
// applied are reported in the returned error and skipped.
func (r *Registry) Restore(ctx context.Context) error {
	items, err := r.log.List(logPrefix)
	if err != nil {
		return fmt.Errorf("read schema log: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.live = make(map[string]map[string]RecordType)

	var errs []error
	for _, it := range items {
		entry := strings.TrimPrefix(it.Key, logPrefix)
		plugin, typ, ok := strings.Cut(entry, ".")
		if !ok {
			errs = append(errs, fmt.Errorf("malformed schema entry %q", entry))
			continue
		}
		var rt RecordType
		if err := json.Unmarshal(it.Value, &rt); err != nil {
			errs = append(errs, fmt.Errorf("decode schema entry %s: %w", entry, err))
			continue
		}
		if rt.Name != typ {
			errs = append(errs, fmt.Errorf("schema entry %s names type %q", entry, rt.Name))
			continue
		}
		if err := r.apply(ctx, plugin, rt); err != nil {
			errs = append(errs, err)
			continue
		}
		r.setLive(plugin, rt)
	}

	logging.Info().Int("entries", len(items)).Int("errors", len(errs)).Msg("Schema log restored")
	return errors.Join(errs...)
}
