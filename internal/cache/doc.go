// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

/*
Package cache provides a small in-memory TTL cache.

The collector uses it to avoid a DuckDB round trip per sensor message when
resolving instance keys and profile services. Entries expire after the
configured TTL and are swept by Serve, which runs under the supervisor
tree's storage layer. Callers that change the underlying data call Clear so
readers never wait a full TTL for a deleted deployment to stop resolving.

Usage:

	c := cache.New[string, *models.Deployment](30 * time.Second)
	tree.AddStorageService(c)

	if d, ok := c.Get(key); ok {
	    return d, nil
	}
	d, err := db.DeploymentByInstanceKey(ctx, key)
	if err == nil {
	    c.Set(key, d)
	}

Statistics (hits, misses, evictions) are available through Stats and HitRate.
*/
package cache
