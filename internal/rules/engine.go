// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

// Package rules decides what happens to each record a service plugin
// produces: store it, or drop it and optionally raise an alert.
package rules

import (
	"context"
	"fmt"
	"sort"

	"github.com/tomtom215/hivekeeper/internal/alerting"
	"github.com/tomtom215/hivekeeper/internal/logging"
	"github.com/tomtom215/hivekeeper/internal/models"
	"github.com/tomtom215/hivekeeper/internal/plugin"
)

// Decision is the result of evaluating a service's rules for one severity.
type Decision struct {
	// Rule is the first matching rule, nil when nothing matched.
	Rule   *models.Rule
	Action models.Action
}

// Notify reports whether the decision raises an alert. Only drop rules
// naming a notification plugin do.
func (d Decision) Notify() bool {
	return d.Rule != nil && d.Action == models.ActionDrop && d.Rule.HasNotification()
}

// Evaluate picks the first rule, by ascending level with ties broken by id,
// whose condition holds for severity. Without a match the record is stored.
func Evaluate(rules []models.Rule, severity int) Decision {
	sorted := make([]models.Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Level != sorted[j].Level {
			return sorted[i].Level < sorted[j].Level
		}
		return sorted[i].ID < sorted[j].ID
	})
	for i := range sorted {
		if sorted[i].Matches(severity) {
			r := sorted[i]
			return Decision{Rule: &r, Action: r.Action}
		}
	}
	return Decision{Action: models.ActionStore}
}

// Outcome is what Apply did with a record.
type Outcome string

const (
	OutcomeStored  Outcome = "stored"
	OutcomeDropped Outcome = "dropped"
)

// RuleSource returns a service's rules.
type RuleSource interface {
	RulesForService(ctx context.Context, service string) ([]models.Rule, error)
}

// RecordWriter persists a record atomically.
type RecordWriter interface {
	StoreRecord(ctx context.Context, rec *plugin.Record) error
}

// Engine applies rules to records.
type Engine struct {
	rules      RuleSource
	records    RecordWriter
	dispatcher alerting.Dispatcher
}

// NewEngine creates an Engine.
func NewEngine(rules RuleSource, records RecordWriter, dispatcher alerting.Dispatcher) *Engine {
	return &Engine{rules: rules, records: records, dispatcher: dispatcher}
}

// Apply evaluates rec's service rules at severity and stores or drops it.
// A dropped record matched by a rule that names a notification plugin is
// dispatched as an alert rendered by svc. A failed dispatch is logged and
// does not change the outcome.
func (e *Engine) Apply(ctx context.Context, svc plugin.Service, rec *plugin.Record, severity int) (Outcome, error) {
	rules, err := e.rules.RulesForService(ctx, rec.Plugin)
	if err != nil {
		return "", fmt.Errorf("load rules for %s: %w", rec.Plugin, err)
	}

	d := Evaluate(rules, severity)
	if d.Action == models.ActionStore {
		if err := e.records.StoreRecord(ctx, rec); err != nil {
			return "", fmt.Errorf("store %s record: %w", rec.Plugin, err)
		}
		logging.Ctx(ctx).Debug().Str("service", rec.Plugin).Str("record_id", rec.ID.String()).Int("severity", severity).Msg("Record stored")
		return OutcomeStored, nil
	}

	logging.Ctx(ctx).Debug().Str("service", rec.Plugin).Str("record_id", rec.ID.String()).Int64("rule_id", d.Rule.ID).Msg("Record dropped")
	if d.Notify() && e.dispatcher != nil {
		a := alerting.NewAlert(d.Rule.Notification, d.Rule.NotificationConfig, rec.Plugin, rec.DeploymentID, severity, svc.Message(rec, severity))
		if err := e.dispatcher.Dispatch(ctx, a); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("notification", a.Notification).Str("alert_id", a.ID).Msg("Alert dispatch failed")
		}
	}
	return OutcomeDropped, nil
}
