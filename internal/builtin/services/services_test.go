// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/hivekeeper/internal/plugin"
)

func event(t *testing.T, data string, peer string) plugin.Event {
	t.Helper()
	return plugin.Event{
		DeploymentID: 3,
		Timestamp:    time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		Data:         json.RawMessage(data),
		Peer:         peer,
	}
}

func newTelnet(t *testing.T, cfg map[string]any) *Telnet {
	t.Helper()
	inst, err := NewTelnet(cfg)
	if err != nil {
		t.Fatalf("NewTelnet() error = %v", err)
	}
	return inst.(*Telnet)
}

func TestTelnet_Contract(t *testing.T) {
	t.Parallel()
	var svc plugin.NetworkService = newTelnet(t, nil)

	if svc.Port() != 23 || svc.Transport() != plugin.TransportStream {
		t.Errorf("default resource = %d/%s, want 23/stream", svc.Port(), svc.Transport())
	}
	if res := svc.Resources(); len(res) != 1 || res[0].Port != 23 {
		t.Errorf("Resources() = %+v", res)
	}
	for _, rt := range svc.RecordTypes() {
		if err := rt.Validate(); err != nil {
			t.Errorf("record type %s invalid: %v", rt.Name, err)
		}
	}

	custom := newTelnet(t, map[string]any{"port": 2323})
	if custom.Port() != 2323 {
		t.Errorf("configured port = %d, want 2323", custom.Port())
	}
}

func TestTelnet_CreateRecordAndSeverity(t *testing.T) {
	t.Parallel()
	svc := newTelnet(t, nil)

	rec, err := svc.CreateRecord(event(t, `{"password":"admin","src_host":"198.51.100.7","src_port":40000}`, "10.0.0.1:9999"))
	if err != nil {
		t.Fatalf("CreateRecord() error = %v", err)
	}
	if rec.Type != LoginAttemptType || rec.DeploymentID != 3 {
		t.Errorf("record header = %s/%d", rec.Type, rec.DeploymentID)
	}
	if rec.String("src_host") != "198.51.100.7" || rec.Int("src_port") != 40000 {
		t.Errorf("sensor address not kept: %v", rec.Fields)
	}
	if svc.Severity(rec) != TelnetLevelKnown {
		t.Errorf("Severity(admin) = %d, want %d", svc.Severity(rec), TelnetLevelKnown)
	}
	if msg := svc.Message(rec, TelnetLevelKnown); strings.Contains(msg, "take action") {
		t.Errorf("low-level message = %q", msg)
	}

	rec, err = svc.CreateRecord(event(t, `{"password":"hunter2"}`, "203.0.113.9:2201"))
	if err != nil {
		t.Fatalf("CreateRecord() error = %v", err)
	}
	if rec.String("src_host") != "203.0.113.9" || rec.Int("src_port") != 2201 {
		t.Errorf("peer fallback not applied: %v", rec.Fields)
	}
	if svc.Severity(rec) != TelnetLevelUnknown {
		t.Errorf("Severity(hunter2) = %d, want %d", svc.Severity(rec), TelnetLevelUnknown)
	}
	msg := svc.Message(rec, TelnetLevelUnknown)
	if !strings.Contains(msg, "hunter2") || !strings.HasSuffix(msg, "Please take action!") {
		t.Errorf("high-level message = %q", msg)
	}

	if _, err := svc.CreateRecord(event(t, `{"username":"root"}`, "")); err == nil {
		t.Error("CreateRecord accepted an event without password")
	}
	if _, err := svc.CreateRecord(event(t, `"not an object"`, "")); err == nil {
		t.Error("CreateRecord accepted a non-object event")
	}
}

type fakeQuerier struct {
	gotQuery plugin.Query
	gotField string
}

func (f *fakeQuerier) QueryRecords(_ context.Context, q plugin.Query) ([]plugin.Record, error) {
	f.gotQuery = q
	return []plugin.Record{{Type: q.Type}}, nil
}

func (f *fakeQuerier) CountBy(_ context.Context, q plugin.Query, field string) ([]plugin.Count, error) {
	f.gotQuery = q
	f.gotField = field
	return []plugin.Count{{Key: "admin", Count: 4}}, nil
}

func TestTelnet_Reports(t *testing.T) {
	t.Parallel()
	svc := newTelnet(t, nil)

	if got := svc.ReportTypes(); len(got) != 2 || got[0] != "entries" {
		t.Fatalf("ReportTypes() = %v", got)
	}
	if args := svc.DefaultReportArgs("entries"); args["time"] != 7 {
		t.Errorf("DefaultReportArgs(entries) = %v", args)
	}

	q := &fakeQuerier{}
	scoped := plugin.ScopeQuerier(q, "TelnetService")
	data, err := svc.ReportData(context.Background(), scoped, 3, "entries", map[string]any{"time": 1})
	if err != nil {
		t.Fatalf("ReportData(entries) error = %v", err)
	}
	if q.gotQuery.Plugin != "TelnetService" || q.gotQuery.Type != LoginAttemptType || q.gotQuery.DeploymentID != 3 {
		t.Errorf("query = %+v", q.gotQuery)
	}
	if since := time.Since(q.gotQuery.Since); since < 23*time.Hour || since > 25*time.Hour {
		t.Errorf("time=1 produced Since %v ago", since)
	}
	if tmpl := svc.TemplateArgs("entries", data); tmpl["entries"] == nil {
		t.Errorf("TemplateArgs(entries) = %v", tmpl)
	}

	if _, err := svc.ReportData(context.Background(), scoped, 3, "top_passwords", nil); err != nil {
		t.Fatalf("ReportData(top_passwords) error = %v", err)
	}
	if q.gotField != "password" {
		t.Errorf("CountBy field = %q, want password", q.gotField)
	}

	if _, err := svc.ReportData(context.Background(), scoped, 3, "nope", nil); err == nil {
		t.Error("ReportData accepted an unknown report type")
	}
}

func TestPortScan(t *testing.T) {
	t.Parallel()
	inst, err := NewPortScan(map[string]any{"medium_threshold": 3, "high_threshold": 5})
	if err != nil {
		t.Fatalf("NewPortScan() error = %v", err)
	}
	svc := inst.(*PortScan)
	if _, ok := inst.(plugin.NetworkService); ok {
		t.Error("PortScan must not be a network service")
	}

	tests := []struct {
		data  string
		count int64
		level int
	}{
		{`{"src_host":"192.0.2.1","ports":[22,22,23]}`, 2, ScanLevelLow},
		{`{"src_host":"192.0.2.1","ports":[21,22,23]}`, 3, ScanLevelMedium},
		{`{"src_host":"192.0.2.1","protocol":"udp","ports":[1,2,3,4,5,6]}`, 6, ScanLevelHigh},
	}
	for _, tt := range tests {
		rec, err := svc.CreateRecord(event(t, tt.data, ""))
		if err != nil {
			t.Fatalf("CreateRecord(%s) error = %v", tt.data, err)
		}
		if rec.Int("port_count") != tt.count {
			t.Errorf("port_count = %d, want %d", rec.Int("port_count"), tt.count)
		}
		if got := svc.Severity(rec); got != tt.level {
			t.Errorf("Severity(%s) = %d, want %d", tt.data, got, tt.level)
		}
	}

	for _, bad := range []string{`{"ports":[1]}`, `{"src_host":"x","ports":[]}`} {
		if _, err := svc.CreateRecord(event(t, bad, "")); err == nil {
			t.Errorf("CreateRecord(%s) succeeded", bad)
		}
	}

	if _, err := NewPortScan(map[string]any{"medium_threshold": 10, "high_threshold": 10}); err == nil {
		t.Error("NewPortScan accepted high == medium")
	}
}
