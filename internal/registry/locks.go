// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package registry

import (
	"strings"
	"sync"

	"github.com/tomtom215/hivekeeper/internal/plugin"
)

// nameLocks hands out one RWMutex per family/name. Ingestion holds the
// read side while it uses a plugin; install, update, and uninstall hold the
// write side, so mutating one plugin never blocks traffic for another.
// Names are case-folded: plugins differing only in case share a lock.
type nameLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newNameLocks() *nameLocks {
	return &nameLocks{locks: make(map[string]*sync.RWMutex)}
}

func (n *nameLocks) get(family plugin.Family, name string) *sync.RWMutex {
	key := string(family) + "/" + strings.ToLower(name)
	n.mu.Lock()
	defer n.mu.Unlock()
	l, ok := n.locks[key]
	if !ok {
		l = &sync.RWMutex{}
		n.locks[key] = l
	}
	return l
}
