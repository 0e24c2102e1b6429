// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/hivekeeper/internal/models"
	"github.com/tomtom215/hivekeeper/internal/plugin"
	"github.com/tomtom215/hivekeeper/internal/validation"
)

var (
	// ErrInvalidRule wraps every rule validation failure.
	ErrInvalidRule = errors.New("invalid rule")
	// ErrPluginInactive is returned when a rule names a plugin that is not installed and active.
	ErrPluginInactive = errors.New("plugin not active")
)

// Validate checks the fields a rule must carry regardless of installed plugins.
func Validate(r *models.Rule) error {
	if !r.Condition.Valid() {
		return fmt.Errorf("%w: unknown condition %q", ErrInvalidRule, r.Condition)
	}
	if !r.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidRule, r.Action)
	}
	if err := validation.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return nil
}

// RuleStore is the persistence side of rule management.
type RuleStore interface {
	RuleSource
	CreateRule(ctx context.Context, r *models.Rule) error
	GetRule(ctx context.Context, id int64) (*models.Rule, error)
	DeleteRule(ctx context.Context, id int64) error
	ListRules(ctx context.Context) ([]models.Rule, error)
}

// PluginLookup exposes the plugin registry to rule management.
type PluginLookup interface {
	IsActive(family plugin.Family, name string) bool
	WithNotification(ctx context.Context, name string, cfg map[string]any, fn func(plugin.Notification) error) error
}

// Manager creates and removes rules.
type Manager struct {
	store   RuleStore
	plugins PluginLookup
}

// NewManager creates a Manager.
func NewManager(store RuleStore, plugins PluginLookup) *Manager {
	return &Manager{store: store, plugins: plugins}
}

// Create validates r against the installed plugins and stores it.
func (m *Manager) Create(ctx context.Context, r *models.Rule) error {
	if err := Validate(r); err != nil {
		return err
	}
	if !m.plugins.IsActive(plugin.FamilyService, r.Service) {
		return fmt.Errorf("%w: service %s", ErrPluginInactive, r.Service)
	}
	if r.HasNotification() {
		if !m.plugins.IsActive(plugin.FamilyNotification, r.Notification) {
			return fmt.Errorf("%w: notification %s", ErrPluginInactive, r.Notification)
		}
		err := m.plugins.WithNotification(ctx, r.Notification, r.NotificationConfig, func(n plugin.Notification) error {
			if n.RequiresExtraConfig() && len(r.NotificationConfig) == 0 {
				return errors.New("notification configuration is required")
			}
			return n.ValidateConfig(r.NotificationConfig)
		})
		if err != nil {
			return fmt.Errorf("%w: %s configuration: %v", ErrInvalidRule, r.Notification, err)
		}
	} else if len(r.NotificationConfig) > 0 {
		return fmt.Errorf("%w: notification configuration without a notification plugin", ErrInvalidRule)
	}
	return m.store.CreateRule(ctx, r)
}

// Get returns one rule.
func (m *Manager) Get(ctx context.Context, id int64) (*models.Rule, error) {
	return m.store.GetRule(ctx, id)
}

// Delete removes one rule.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	return m.store.DeleteRule(ctx, id)
}

// List returns every rule.
func (m *Manager) List(ctx context.Context) ([]models.Rule, error) {
	return m.store.ListRules(ctx)
}

// ForService returns a service's rules in evaluation order.
func (m *Manager) ForService(ctx context.Context, service string) ([]models.Rule, error) {
	return m.store.RulesForService(ctx, service)
}
