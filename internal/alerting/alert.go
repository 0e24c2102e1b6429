// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package alerting

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/hivekeeper/internal/plugin"
)

// Alert is one notification request produced when a rule drops a record.
type Alert struct {
	ID           string         `json:"id"`
	Notification string         `json:"notification"`
	Config       map[string]any `json:"config,omitempty"`
	Message      string         `json:"message"`
	Service      string         `json:"service"`
	DeploymentID int64          `json:"deployment_id"`
	Level        int            `json:"level"`
	CreatedAt    time.Time      `json:"created_at"`
}

// NewAlert stamps a new alert with an ID and creation time.
func NewAlert(notification string, cfg map[string]any, service string, deploymentID int64, level int, text string) Alert {
	return Alert{
		ID:           uuid.NewString(),
		Notification: notification,
		Config:       cfg,
		Message:      text,
		Service:      service,
		DeploymentID: deploymentID,
		Level:        level,
		CreatedAt:    time.Now().UTC(),
	}
}

// PluginMessage is the form handed to the notification plugin.
func (a Alert) PluginMessage() plugin.Message {
	return plugin.Message{
		ID:           a.ID,
		Text:         a.Message,
		Service:      a.Service,
		DeploymentID: a.DeploymentID,
		Level:        a.Level,
		CreatedAt:    a.CreatedAt,
	}
}

// Dispatcher hands an alert to its notification channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, a Alert) error
}
