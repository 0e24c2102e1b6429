// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package models

import (
	"fmt"
	"time"
)

// Condition compares a record's severity (left) against a rule's level (right).
type Condition string

const (
	ConditionLess         Condition = "<"
	ConditionGreater      Condition = ">"
	ConditionEqual        Condition = "=="
	ConditionLessEqual    Condition = "<="
	ConditionGreaterEqual Condition = ">="
	ConditionNotEqual     Condition = "!="
)

// ParseCondition validates s as a comparison operator.
func ParseCondition(s string) (Condition, error) {
	c := Condition(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown condition %q", s)
	}
	return c, nil
}

// Valid reports whether c is one of the six supported operators.
func (c Condition) Valid() bool {
	switch c {
	case ConditionLess, ConditionGreater, ConditionEqual,
		ConditionLessEqual, ConditionGreaterEqual, ConditionNotEqual:
		return true
	}
	return false
}

// Holds evaluates "severity <c> level". Unknown operators never hold.
func (c Condition) Holds(severity, level int) bool {
	switch c {
	case ConditionLess:
		return severity < level
	case ConditionGreater:
		return severity > level
	case ConditionEqual:
		return severity == level
	case ConditionLessEqual:
		return severity <= level
	case ConditionGreaterEqual:
		return severity >= level
	case ConditionNotEqual:
		return severity != level
	}
	return false
}

// Action decides the fate of a record matched by a rule.
type Action string

const (
	ActionStore Action = "store"
	ActionDrop  Action = "drop"
)

// Valid reports whether a is store or drop.
func (a Action) Valid() bool {
	return a == ActionStore || a == ActionDrop
}

// Rule belongs to one service plugin and optionally names one notification plugin.
// At most one rule exists per (Service, Notification, Condition).
type Rule struct {
	ID                 int64          `json:"id"`
	Service            string         `json:"service" validate:"required,identifier"`
	Notification       string         `json:"notification,omitempty" validate:"omitempty,identifier"`
	Condition          Condition      `json:"condition" validate:"required,condition"`
	Level              int            `json:"level" validate:"gte=0"`
	Action             Action         `json:"action" validate:"required,oneof=store drop"`
	NotificationConfig map[string]any `json:"notification_config,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}

// Matches reports whether the rule's condition holds for severity.
func (r *Rule) Matches(severity int) bool {
	return r.Condition.Holds(severity, r.Level)
}

// HasNotification reports whether the rule dispatches an alert when it drops a record.
func (r *Rule) HasNotification() bool {
	return r.Notification != ""
}
