// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/hivekeeper/internal/plugin"
	"github.com/tomtom215/hivekeeper/internal/validation"
)

// TelegramID is the catalog id of the Telegram notification.
const TelegramID = "builtin.telegram"

// TelegramConfig configures the bot and the chats alerts go to.
type TelegramConfig struct {
	Token          string  `json:"token" validate:"required"`
	ChatIDs        []int64 `json:"chat_ids" validate:"required,min=1"`
	APIURL         string  `json:"api_url" validate:"required,url"`
	TimeoutSeconds int     `json:"timeout_seconds" validate:"gte=0"`
}

// Telegram sends alerts through the Telegram Bot API.
type Telegram struct {
	plugin.NoInstallHooks
	cfg    TelegramConfig
	client *http.Client
}

// NewTelegram is the catalog factory for Telegram.
func NewTelegram(cfg map[string]any) (any, error) {
	c := TelegramConfig{APIURL: "https://api.telegram.org"}
	if err := plugin.DecodeConfig(cfg, &c); err != nil {
		return nil, err
	}
	return &Telegram{cfg: c, client: &http.Client{Timeout: timeoutOr(time.Duration(c.TimeoutSeconds) * time.Second)}}, nil
}

func (t *Telegram) RequiresExtraConfig() bool { return true }

func (t *Telegram) ExtraConfigSample() map[string]any {
	return map[string]any{"token": "123456:ABC", "chat_ids": []int64{123456, 1234567}}
}

func (t *Telegram) ValidateConfig(cfg map[string]any) error {
	c := t.cfg
	return plugin.ValidateConfig(cfg, &c)
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Process sends msg to every configured chat. All chats are attempted;
// the errors are joined.
func (t *Telegram) Process(ctx context.Context, msg plugin.Message) error {
	if err := validation.Struct(&t.cfg); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	endpoint := strings.TrimRight(t.cfg.APIURL, "/") + "/bot" + t.cfg.Token + "/sendMessage"

	var errs []error
	for _, chat := range t.cfg.ChatIDs {
		body, err := postJSON(ctx, t.client, endpoint, map[string]any{"chat_id": chat, "text": msg.Text}, nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("telegram chat %d: %w", chat, err))
			continue
		}
		var resp telegramResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			errs = append(errs, fmt.Errorf("telegram chat %d: decode response: %w", chat, err))
			continue
		}
		if !resp.OK {
			errs = append(errs, fmt.Errorf("telegram chat %d: %s", chat, resp.Description))
		}
	}
	return errors.Join(errs...)
}
