// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package notifications

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/hivekeeper/internal/plugin"
	"github.com/tomtom215/hivekeeper/internal/sensorcrypto"
	"github.com/tomtom215/hivekeeper/internal/validation"
)

// WebhookID is the catalog id of the Webhook notification.
const WebhookID = "builtin.webhook"

// SignatureHeader carries the hex HMAC-SHA256 of the request body when a
// secret is configured.
const SignatureHeader = "X-Hivekeeper-Signature"

// WebhookConfig configures the endpoint alerts are posted to.
type WebhookConfig struct {
	URL            string            `json:"url" validate:"required,url"`
	Secret         string            `json:"secret"`
	Headers        map[string]string `json:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" validate:"gte=0"`
}

// Webhook posts each alert as JSON.
type Webhook struct {
	plugin.NoInstallHooks
	cfg    WebhookConfig
	client *http.Client
}

// NewWebhook is the catalog factory for Webhook.
func NewWebhook(cfg map[string]any) (any, error) {
	var c WebhookConfig
	if err := plugin.DecodeConfig(cfg, &c); err != nil {
		return nil, err
	}
	return &Webhook{cfg: c, client: &http.Client{Timeout: timeoutOr(time.Duration(c.TimeoutSeconds) * time.Second)}}, nil
}

func (w *Webhook) RequiresExtraConfig() bool { return true }

func (w *Webhook) ExtraConfigSample() map[string]any {
	return map[string]any{"url": "https://hooks.example.org/hivekeeper", "secret": "optional-shared-secret"}
}

func (w *Webhook) ValidateConfig(cfg map[string]any) error {
	c := w.cfg
	return plugin.ValidateConfig(cfg, &c)
}

func (w *Webhook) Process(ctx context.Context, msg plugin.Message) error {
	if err := validation.Struct(&w.cfg); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("webhook: encode message: %w", err)
	}
	headers := make(map[string]string, len(w.cfg.Headers)+1)
	for k, v := range w.cfg.Headers {
		headers[k] = v
	}
	if w.cfg.Secret != "" {
		headers[SignatureHeader] = "sha256=" + sensorcrypto.Authenticate([]byte(w.cfg.Secret), payload)
	}
	if _, err := post(ctx, w.client, w.cfg.URL, payload, headers); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}
