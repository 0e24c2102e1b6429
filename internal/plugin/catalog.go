// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package plugin

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a plugin instance from merged configuration. The returned
// value must satisfy the contract of the family it is installed under.
type Factory func(cfg map[string]any) (any, error)

// Catalog holds the compiled-in plugin implementations keyed by id.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory)}
}

// Register adds f under id. Ids are unique.
func (c *Catalog) Register(id string, f Factory) error {
	if id == "" || f == nil {
		return fmt.Errorf("catalog: empty id or nil factory")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.factories[id]; ok {
		return fmt.Errorf("catalog: implementation %q already registered", id)
	}
	c.factories[id] = f
	return nil
}

// MustRegister is Register for init-time wiring.
func (c *Catalog) MustRegister(id string, f Factory) {
	if err := c.Register(id, f); err != nil {
		panic(err)
	}
}

// Lookup returns the factory registered under id.
func (c *Catalog) Lookup(id string) (Factory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.factories[id]
	return f, ok
}

// IDs returns every registered id, sorted.
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.factories))
	for id := range c.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
