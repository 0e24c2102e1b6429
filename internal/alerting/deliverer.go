// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package alerting

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/hivekeeper/internal/config"
	"github.com/tomtom215/hivekeeper/internal/logging"
	"github.com/tomtom215/hivekeeper/internal/metrics"
	"github.com/tomtom215/hivekeeper/internal/plugin"
)

// ErrCircuitOpen is returned while a notification plugin's breaker is open.
var ErrCircuitOpen = errors.New("notification circuit open")

// NotificationResolver runs fn with an instance of the named notification
// plugin. *registry.Registry implements it.
type NotificationResolver interface {
	WithNotification(ctx context.Context, name string, cfg map[string]any, fn func(plugin.Notification) error) error
}

// Deliverer delivers alerts synchronously with per-plugin throttling and
// circuit breaking.
type Deliverer struct {
	resolver NotificationResolver
	cfg      config.AlertsConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

// NewDeliverer creates a Deliverer. Zero rate settings disable throttling
// and a zero breaker threshold disables the breaker.
func NewDeliverer(resolver NotificationResolver, cfg config.AlertsConfig) *Deliverer {
	return &Deliverer{
		resolver: resolver,
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

func (d *Deliverer) limiter(name string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.limiters[name]
	if !ok {
		limit := rate.Inf
		if d.cfg.RatePerSecond > 0 {
			limit = rate.Limit(d.cfg.RatePerSecond)
		}
		burst := d.cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		l = rate.NewLimiter(limit, burst)
		d.limiters[name] = l
	}
	return l
}

func (d *Deliverer) breaker(name string) *gobreaker.CircuitBreaker[struct{}] {
	d.mu.Lock()
	defer d.mu.Unlock()
	cb, ok := d.breakers[name]
	if !ok {
		threshold := d.cfg.BreakerFailures
		cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        "notification." + name,
			MaxRequests: 1,
			Timeout:     d.cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return threshold > 0 && counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(breaker string, from, to gobreaker.State) {
				logging.Warn().
					Str("breaker", breaker).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("Notification circuit breaker state changed")
			},
		})
		d.breakers[name] = cb
	}
	return cb
}

// BreakerState reports the breaker state of a notification plugin, or
// "closed" if it has never been used.
func (d *Deliverer) BreakerState(name string) string {
	d.mu.Lock()
	cb, ok := d.breakers[name]
	d.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed.String()
	}
	return cb.State().String()
}

// Dispatch delivers a synchronously.
func (d *Deliverer) Dispatch(ctx context.Context, a Alert) error {
	return d.Deliver(ctx, a)
}

// Deliver waits for the plugin's rate limiter, then runs the plugin's
// Process through its circuit breaker.
func (d *Deliverer) Deliver(ctx context.Context, a Alert) error {
	if a.Notification == "" {
		return fmt.Errorf("alert %s names no notification plugin", a.ID)
	}
	if err := d.limiter(a.Notification).Wait(ctx); err != nil {
		metrics.RecordNotification(a.Notification, "throttled")
		return fmt.Errorf("wait for %s rate limit: %w", a.Notification, err)
	}

	_, err := d.breaker(a.Notification).Execute(func() (struct{}, error) {
		return struct{}{}, d.resolver.WithNotification(ctx, a.Notification, a.Config, func(n plugin.Notification) error {
			dctx := ctx
			if d.cfg.DeliveryTimeout > 0 {
				var cancel context.CancelFunc
				dctx, cancel = context.WithTimeout(ctx, d.cfg.DeliveryTimeout)
				defer cancel()
			}
			return n.Process(dctx, a.PluginMessage())
		})
	})

	switch {
	case err == nil:
		metrics.RecordNotification(a.Notification, "delivered")
		logging.Debug().Str("alert_id", a.ID).Str("notification", a.Notification).Msg("Alert delivered")
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordNotification(a.Notification, "circuit_open")
		return fmt.Errorf("%w: %s", ErrCircuitOpen, a.Notification)
	default:
		metrics.RecordNotification(a.Notification, "failed")
		return fmt.Errorf("deliver alert %s via %s: %w", a.ID, a.Notification, err)
	}
}
