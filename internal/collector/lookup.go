// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package collector

import (
	"context"
	"strconv"
	"time"

	"github.com/tomtom215/hivekeeper/internal/cache"
	"github.com/tomtom215/hivekeeper/internal/models"
)

// CachedDeployments memoizes successful DeploymentSource lookups. Misses are
// never cached, so a freshly provisioned sensor is accepted immediately.
//
// Anything that deletes a deployment or changes a profile's services must
// call Invalidate; otherwise a removed deployment keeps resolving until its
// entry expires.
type CachedDeployments struct {
	source      DeploymentSource
	deployments *cache.Cache[string, *models.Deployment]
	services    *cache.Cache[string, *models.ProfileService]
}

// NewCachedDeployments wraps source with entries that live for ttl.
func NewCachedDeployments(source DeploymentSource, ttl time.Duration) *CachedDeployments {
	return &CachedDeployments{
		source:      source,
		deployments: cache.New[string, *models.Deployment](ttl),
		services:    cache.New[string, *models.ProfileService](ttl),
	}
}

func (c *CachedDeployments) DeploymentByInstanceKey(ctx context.Context, instanceKey string) (*models.Deployment, error) {
	if d, ok := c.deployments.Get(instanceKey); ok {
		return d, nil
	}
	d, err := c.source.DeploymentByInstanceKey(ctx, instanceKey)
	if err != nil {
		return nil, err
	}
	c.deployments.Set(instanceKey, d)
	return d, nil
}

func (c *CachedDeployments) ProfileService(ctx context.Context, profileID int64, service string) (*models.ProfileService, error) {
	key := strconv.FormatInt(profileID, 10) + "/" + service
	if ps, ok := c.services.Get(key); ok {
		return ps, nil
	}
	ps, err := c.source.ProfileService(ctx, profileID, service)
	if err != nil {
		return nil, err
	}
	c.services.Set(key, ps)
	return ps, nil
}

// Invalidate drops every cached lookup.
func (c *CachedDeployments) Invalidate() {
	c.deployments.Clear()
	c.services.Clear()
}

// Serve sweeps expired entries until ctx is canceled.
func (c *CachedDeployments) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- c.services.Serve(ctx) }()
	err := c.deployments.Serve(ctx)
	<-errCh
	return err
}

func (c *CachedDeployments) String() string {
	return "deployment-cache"
}
