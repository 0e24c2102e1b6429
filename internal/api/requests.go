// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package api

import "github.com/tomtom215/hivekeeper/internal/models"

// CreateRuleRequest is the POST /rules body.
type CreateRuleRequest struct {
	Service            string         `json:"service" validate:"required,identifier"`
	Notification       string         `json:"notification" validate:"omitempty,identifier"`
	Condition          string         `json:"condition" validate:"required,condition"`
	Level              int            `json:"level" validate:"gte=0"`
	Action             string         `json:"action" validate:"required,oneof=store drop"`
	NotificationConfig map[string]any `json:"notification_config"`
}

func (req *CreateRuleRequest) rule() *models.Rule {
	return &models.Rule{
		Service:            req.Service,
		Notification:       req.Notification,
		Condition:          models.Condition(req.Condition),
		Level:              req.Level,
		Action:             models.Action(req.Action),
		NotificationConfig: req.NotificationConfig,
	}
}

// CreateProfileRequest is the POST /profiles body.
type CreateProfileRequest struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=512"`
}

// ProfileServiceRequest is the PUT /profiles/{id}/services/{service} body.
type ProfileServiceRequest struct {
	Config map[string]any `json:"config"`
}

// CreateDeploymentRequest is the POST /deployments body.
type CreateDeploymentRequest struct {
	Name          string `json:"name" validate:"required,max=64"`
	ProfileID     int64  `json:"profile_id" validate:"required,gt=0"`
	Hostname      string `json:"hostname" validate:"omitempty,hostname"`
	Interface     string `json:"interface" validate:"max=32"`
	CollectorType string `json:"collector_type" validate:"omitempty,oneof=udp tcp"`
	Debug         bool   `json:"debug"`
}

// ProfileDetail is a profile with its enabled services.
type ProfileDetail struct {
	models.Profile
	Services []models.ProfileService `json:"services"`
}

// ReportResponse is a service report and its template arguments.
type ReportResponse struct {
	Service      string         `json:"service"`
	Report       string         `json:"report"`
	DeploymentID int64          `json:"deployment_id"`
	Data         any            `json:"data"`
	Template     map[string]any `json:"template"`
}
