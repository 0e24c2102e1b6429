// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package plugin

import (
	"context"
	"fmt"
)

// ReportFunc fetches the data for one report.
type ReportFunc func(ctx context.Context, q RecordQuerier, deploymentID int64, args map[string]any) (any, error)

// ReportDef declares one dashboard report.
type ReportDef struct {
	Name        string
	DefaultArgs map[string]any
	Fetch       ReportFunc
	// Template shapes fetched data for rendering. Nil means {"data": data}.
	Template func(data any) map[string]any
}

// Reports implements the report half of Service from a table of definitions.
// Services embed it.
type Reports []ReportDef

func (r Reports) find(name string) (ReportDef, bool) {
	for _, d := range r {
		if d.Name == name {
			return d, true
		}
	}
	return ReportDef{}, false
}

func (r Reports) ReportTypes() []string {
	out := make([]string, len(r))
	for i, d := range r {
		out[i] = d.Name
	}
	return out
}

// DefaultReportArgs returns a copy of the report's default arguments.
func (r Reports) DefaultReportArgs(reportType string) map[string]any {
	d, ok := r.find(reportType)
	if !ok {
		return nil
	}
	out := make(map[string]any, len(d.DefaultArgs))
	for k, v := range d.DefaultArgs {
		out[k] = v
	}
	return out
}

// ReportData merges args over the defaults and runs the report's fetcher.
func (r Reports) ReportData(ctx context.Context, q RecordQuerier, deploymentID int64, reportType string, args map[string]any) (any, error) {
	d, ok := r.find(reportType)
	if !ok || d.Fetch == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReport, reportType)
	}
	merged := r.DefaultReportArgs(reportType)
	for k, v := range args {
		merged[k] = v
	}
	return d.Fetch(ctx, q, deploymentID, merged)
}

func (r Reports) TemplateArgs(reportType string, data any) map[string]any {
	if d, ok := r.find(reportType); ok && d.Template != nil {
		return d.Template(data)
	}
	return map[string]any{"report": reportType, "data": data}
}

// IntArg reads an integer argument that may have arrived as a JSON number or string.
func IntArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return def
}
