// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package notifications

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tomtom215/hivekeeper/internal/plugin"
	"github.com/tomtom215/hivekeeper/internal/validation"
)

// RedisID is the catalog id of the Redis notification.
const RedisID = "builtin.redis"

// Redis delivery modes.
const (
	RedisModePublish = "publish"
	RedisModeList    = "list"
)

// RedisConfig selects the server and the channel or list alerts go to.
type RedisConfig struct {
	URL  string `json:"url" validate:"required"`
	Mode string `json:"mode" validate:"oneof=publish list"`
	Key  string `json:"key" validate:"required"`
	// MaxLen caps a list at its newest entries; zero keeps everything.
	MaxLen int64 `json:"max_len" validate:"gte=0"`
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opt), nil
}

// Redis publishes each alert, msgpack encoded, on a channel or pushes it
// onto a list for a worker to pop.
type Redis struct {
	plugin.NoInstallHooks
	cfg       RedisConfig
	newClient func(url string) (*redis.Client, error)
}

// NewRedis is the catalog factory for Redis.
func NewRedis(cfg map[string]any) (any, error) {
	c := RedisConfig{URL: "redis://127.0.0.1:6379/0", Mode: RedisModePublish, Key: "hivekeeper:alerts"}
	if err := plugin.DecodeConfig(cfg, &c); err != nil {
		return nil, err
	}
	return &Redis{cfg: c, newClient: newRedisClient}, nil
}

func (r *Redis) RequiresExtraConfig() bool { return false }

func (r *Redis) ExtraConfigSample() map[string]any {
	return map[string]any{"url": "redis://127.0.0.1:6379/0", "mode": RedisModeList, "key": "hivekeeper:alerts", "max_len": 10000}
}

func (r *Redis) ValidateConfig(cfg map[string]any) error {
	c := r.cfg
	if err := plugin.ValidateConfig(cfg, &c); err != nil {
		return err
	}
	if _, err := redis.ParseURL(c.URL); err != nil {
		return fmt.Errorf("plugin config: url: %w", err)
	}
	return nil
}

func (r *Redis) Process(ctx context.Context, msg plugin.Message) error {
	if err := validation.Struct(&r.cfg); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	payload, err := msgpack.Marshal(&msg)
	if err != nil {
		return fmt.Errorf("redis: encode message: %w", err)
	}
	client, err := r.newClient(r.cfg.URL)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer client.Close()

	switch r.cfg.Mode {
	case RedisModeList:
		if err := client.RPush(ctx, r.cfg.Key, payload).Err(); err != nil {
			return fmt.Errorf("redis: push to %s: %w", r.cfg.Key, err)
		}
		if r.cfg.MaxLen > 0 {
			if err := client.LTrim(ctx, r.cfg.Key, -r.cfg.MaxLen, -1).Err(); err != nil {
				return fmt.Errorf("redis: trim %s: %w", r.cfg.Key, err)
			}
		}
	default:
		if err := client.Publish(ctx, r.cfg.Key, payload).Err(); err != nil {
			return fmt.Errorf("redis: publish to %s: %w", r.cfg.Key, err)
		}
	}
	return nil
}
