// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

// Package services holds the compiled-in service plugin implementations.
package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/tomtom215/hivekeeper/internal/plugin"
	"github.com/tomtom215/hivekeeper/internal/schema"
)

// TelnetID is the catalog id of the Telnet service.
const TelnetID = "builtin.telnet"

// LoginAttemptType is the record type of one telnet password attempt.
const LoginAttemptType = "LoginAttempt"

// Telnet severity levels.
const (
	TelnetLevelKnown   = 1
	TelnetLevelUnknown = 2
)

// TelnetConfig configures a Telnet service instance.
type TelnetConfig struct {
	Port int `json:"port" validate:"min=1,max=65535"`
	// KnownPasswords are scored at the low level; everything else is high.
	KnownPasswords []string `json:"known_passwords"`
}

// Telnet records password attempts against the sensor's fake telnet
// prompt.
type Telnet struct {
	plugin.NoInstallHooks
	plugin.Reports
	cfg TelnetConfig
}

// NewTelnet is the catalog factory for Telnet.
func NewTelnet(cfg map[string]any) (any, error) {
	c := TelnetConfig{Port: 23, KnownPasswords: []string{"admin"}}
	if err := plugin.DecodeConfig(cfg, &c); err != nil {
		return nil, err
	}
	t := &Telnet{cfg: c}
	t.Reports = plugin.Reports{
		{
			Name:        "entries",
			DefaultArgs: map[string]any{"time": 7},
			Fetch:       recentEntries(LoginAttemptType),
			Template:    func(data any) map[string]any { return map[string]any{"entries": data} },
		},
		{
			Name:        "top_passwords",
			DefaultArgs: map[string]any{"time": 7, "limit": 10},
			Fetch:       topValues(LoginAttemptType, "password"),
		},
	}
	return t, nil
}

func (t *Telnet) Transport() plugin.Transport { return plugin.TransportStream }
func (t *Telnet) Port() int                   { return t.cfg.Port }
func (t *Telnet) Resources() []plugin.Resource {
	return plugin.NetworkResources(t)
}

func (t *Telnet) RecordTypes() []schema.RecordType {
	return []schema.RecordType{{
		Name: LoginAttemptType,
		Fields: []schema.Field{
			{Name: "src_host", Type: schema.TypeText},
			{Name: "src_port", Type: schema.TypeInteger},
			{Name: "username", Type: schema.TypeText},
			{Name: "password", Type: schema.TypeText},
		},
	}}
}

type telnetEvent struct {
	SrcHost  string  `json:"src_host"`
	SrcPort  *int64  `json:"src_port"`
	Username string  `json:"username"`
	Password *string `json:"password"`
}

// CreateRecord builds a LoginAttempt. The sensor reports the attacker
// address; the transport peer is only a fallback.
func (t *Telnet) CreateRecord(ev plugin.Event) (*plugin.Record, error) {
	var e telnetEvent
	if err := ev.Decode(&e); err != nil {
		return nil, err
	}
	if e.Password == nil {
		return nil, errors.New("telnet event without password")
	}
	rec := plugin.NewRecord("", LoginAttemptType, ev)
	rec.Set("username", e.Username).Set("password", *e.Password)
	if e.SrcHost != "" {
		rec.Set("src_host", e.SrcHost)
	}
	if e.SrcPort != nil {
		rec.Set("src_port", *e.SrcPort)
	}
	rec.Fields = plugin.WithPeer(rec.Fields, ev.Peer)
	return rec, nil
}

func (t *Telnet) Severity(rec *plugin.Record) int {
	if slices.Contains(t.cfg.KnownPasswords, rec.String("password")) {
		return TelnetLevelKnown
	}
	return TelnetLevelUnknown
}

func (t *Telnet) SeverityLevels() []plugin.Level {
	return []plugin.Level{
		{Value: TelnetLevelKnown, Label: "known password"},
		{Value: TelnetLevelUnknown, Label: "unknown password"},
	}
}

func (t *Telnet) Message(rec *plugin.Record, level int) string {
	msg := fmt.Sprintf("Telnet login attempt with password %s", rec.String("password"))
	if host := rec.String("src_host"); host != "" {
		msg += " from " + host
	}
	if level == TelnetLevelUnknown {
		msg += "\nPlease take action!"
	}
	return msg
}

// recentEntries lists a record type's rows from the last "time" days.
func recentEntries(recordType string) plugin.ReportFunc {
	return func(ctx context.Context, q plugin.RecordQuerier, deploymentID int64, args map[string]any) (any, error) {
		days := plugin.IntArg(args, "time", 7)
		return q.QueryRecords(ctx, plugin.Query{
			Type:         recordType,
			DeploymentID: deploymentID,
			Since:        time.Now().UTC().AddDate(0, 0, -days),
			Limit:        plugin.IntArg(args, "limit", 500),
		})
	}
}

// topValues counts a field's most frequent values over the last "time" days.
func topValues(recordType, field string) plugin.ReportFunc {
	return func(ctx context.Context, q plugin.RecordQuerier, deploymentID int64, args map[string]any) (any, error) {
		days := plugin.IntArg(args, "time", 7)
		return q.CountBy(ctx, plugin.Query{
			Type:         recordType,
			DeploymentID: deploymentID,
			Since:        time.Now().UTC().AddDate(0, 0, -days),
			Limit:        plugin.IntArg(args, "limit", 10),
		}, field)
	}
}
