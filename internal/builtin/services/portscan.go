// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package services

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tomtom215/hivekeeper/internal/plugin"
	"github.com/tomtom215/hivekeeper/internal/schema"
)

// PortScanID is the catalog id of the PortScan service.
const PortScanID = "builtin.portscan"

// ProbeType is the record type of one detected scan.
const ProbeType = "Probe"

// PortScan severity levels.
const (
	ScanLevelLow    = 1
	ScanLevelMedium = 2
	ScanLevelHigh   = 3
)

// PortScanConfig sets the port counts at which a scan is rated medium and high.
type PortScanConfig struct {
	MediumThreshold int `json:"medium_threshold"`
	HighThreshold   int `json:"high_threshold"`
}

// PortScan records scans detected by the sensor's packet watcher. It does
// not listen on any port itself.
type PortScan struct {
	plugin.NoInstallHooks
	plugin.Reports
	cfg PortScanConfig
}

// NewPortScan is the catalog factory for PortScan.
func NewPortScan(cfg map[string]any) (any, error) {
	c := PortScanConfig{MediumThreshold: 10, HighThreshold: 100}
	if err := plugin.DecodeConfig(cfg, &c); err != nil {
		return nil, err
	}
	if c.MediumThreshold < 1 || c.HighThreshold <= c.MediumThreshold {
		return nil, fmt.Errorf("portscan thresholds must satisfy 1 <= medium < high, got %d/%d", c.MediumThreshold, c.HighThreshold)
	}
	return &PortScan{
		cfg: c,
		Reports: plugin.Reports{
			{
				Name:        "entries",
				DefaultArgs: map[string]any{"time": 7},
				Fetch:       recentEntries(ProbeType),
				Template:    func(data any) map[string]any { return map[string]any{"entries": data} },
			},
			{
				Name:        "top_sources",
				DefaultArgs: map[string]any{"time": 7, "limit": 10},
				Fetch:       topValues(ProbeType, "src_host"),
			},
		},
	}, nil
}

func (p *PortScan) Resources() []plugin.Resource { return nil }

func (p *PortScan) RecordTypes() []schema.RecordType {
	return []schema.RecordType{{
		Name: ProbeType,
		Fields: []schema.Field{
			{Name: "src_host", Type: schema.TypeText},
			{Name: "protocol", Type: schema.TypeText},
			{Name: "ports", Type: schema.TypeJSON},
			{Name: "port_count", Type: schema.TypeInteger},
		},
	}}
}

type probeEvent struct {
	SrcHost  string `json:"src_host"`
	Protocol string `json:"protocol"`
	Ports    []int  `json:"ports"`
}

func (p *PortScan) CreateRecord(ev plugin.Event) (*plugin.Record, error) {
	var e probeEvent
	if err := ev.Decode(&e); err != nil {
		return nil, err
	}
	if e.SrcHost == "" {
		return nil, errors.New("port scan event without src_host")
	}
	if len(e.Ports) == 0 {
		return nil, errors.New("port scan event without ports")
	}
	ports := uniquePorts(e.Ports)
	if e.Protocol == "" {
		e.Protocol = "tcp"
	}
	rec := plugin.NewRecord("", ProbeType, ev)
	rec.Set("src_host", e.SrcHost).
		Set("protocol", e.Protocol).
		Set("ports", ports).
		Set("port_count", int64(len(ports)))
	return rec, nil
}

func uniquePorts(in []int) []int {
	seen := make(map[int]bool, len(in))
	out := make([]int, 0, len(in))
	for _, port := range in {
		if port < 0 || port > 65535 || seen[port] {
			continue
		}
		seen[port] = true
		out = append(out, port)
	}
	sort.Ints(out)
	return out
}

func (p *PortScan) Severity(rec *plugin.Record) int {
	n := int(rec.Int("port_count"))
	switch {
	case n >= p.cfg.HighThreshold:
		return ScanLevelHigh
	case n >= p.cfg.MediumThreshold:
		return ScanLevelMedium
	}
	return ScanLevelLow
}

func (p *PortScan) SeverityLevels() []plugin.Level {
	return []plugin.Level{
		{Value: ScanLevelLow, Label: fmt.Sprintf("fewer than %d ports", p.cfg.MediumThreshold)},
		{Value: ScanLevelMedium, Label: fmt.Sprintf("%d or more ports", p.cfg.MediumThreshold)},
		{Value: ScanLevelHigh, Label: fmt.Sprintf("%d or more ports", p.cfg.HighThreshold)},
	}
}

func (p *PortScan) Message(rec *plugin.Record, level int) string {
	return fmt.Sprintf("Port scan from %s touching %d %s ports (level %d)",
		rec.String("src_host"), rec.Int("port_count"), rec.String("protocol"), level)
}
