// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package registry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/hivekeeper/internal/kvstore"
	"github.com/tomtom215/hivekeeper/internal/models"
	"github.com/tomtom215/hivekeeper/internal/plugin"
)

const statePrefix = "plugin/"

// StateStore persists plugin lifecycle state. *kvstore.Store implements it.
type StateStore interface {
	PutJSON(key string, v any) error
	GetJSON(key string, v any) error
	Delete(key string) error
	List(prefix string) ([]kvstore.Item, error)
}

// State is the durable lifecycle record of one plugin.
type State struct {
	Name        string             `json:"name"`
	Family      plugin.Family      `json:"family"`
	Status      models.PluginState `json:"status"`
	Description string             `json:"description,omitempty"`
	Version     string             `json:"version,omitempty"`
	Error       string             `json:"error,omitempty"`
	TaskID      string             `json:"task_id,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func stateKey(family plugin.Family, name string) string {
	return statePrefix + string(family) + "/" + name
}

func (r *Registry) putState(s State) error {
	s.UpdatedAt = time.Now().UTC()
	if err := r.state.PutJSON(stateKey(s.Family, s.Name), s); err != nil {
		return fmt.Errorf("record %s state of %s: %w", s.Status, s.Name, err)
	}
	return nil
}

func (r *Registry) getState(family plugin.Family, name string) (State, error) {
	var s State
	err := r.state.GetJSON(stateKey(family, name), &s)
	if errors.Is(err, kvstore.ErrNotFound) {
		return State{}, ErrNotFound
	}
	return s, err
}

func (r *Registry) deleteState(family plugin.Family, name string) error {
	if err := r.state.Delete(stateKey(family, name)); err != nil {
		return fmt.Errorf("delete state of %s: %w", name, err)
	}
	return nil
}

// loadStates returns every recorded state. Undecodable entries are skipped
// with an error.
func (r *Registry) loadStates() ([]State, error) {
	items, err := r.state.List(statePrefix)
	if err != nil {
		return nil, err
	}
	var errs []error
	out := make([]State, 0, len(items))
	for _, it := range items {
		var s State
		if err := json.Unmarshal(it.Value, &s); err != nil {
			errs = append(errs, fmt.Errorf("decode %s: %w", strings.TrimPrefix(it.Key, statePrefix), err))
			continue
		}
		out = append(out, s)
	}
	return out, errors.Join(errs...)
}
