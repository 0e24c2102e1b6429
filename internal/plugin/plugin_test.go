// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package plugin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/tomtom215/hivekeeper/internal/schema"
)

type stubService struct {
	Reports
	cfg map[string]any
}

func (s *stubService) RecordTypes() []schema.RecordType {
	return []schema.RecordType{{Name: "Hit", Fields: []schema.Field{{Name: "path", Type: schema.TypeText}}}}
}

func (s *stubService) CreateRecord(ev Event) (*Record, error) {
	var d struct {
		Path string `json:"path"`
	}
	if err := ev.Decode(&d); err != nil {
		return nil, err
	}
	return NewRecord("Stub", "Hit", ev).Set("path", d.Path), nil
}

func (s *stubService) Severity(*Record) int              { return 1 }
func (s *stubService) SeverityLevels() []Level           { return []Level{{Value: 1, Label: "hit"}} }
func (s *stubService) Message(rec *Record, _ int) string { return "hit " + rec.String("path") }
func (s *stubService) Resources() []Resource             { return nil }

type stubNotification struct {
	NoInstallHooks
}

func (stubNotification) RequiresExtraConfig() bool              { return false }
func (stubNotification) ExtraConfigSample() map[string]any      { return nil }
func (stubNotification) ValidateConfig(map[string]any) error    { return nil }
func (stubNotification) Process(context.Context, Message) error { return nil }

type installableNotification struct {
	stubNotification
	hookCalls *int
}

func (n installableNotification) Dependencies() []Dependency {
	return []Dependency{{Manager: "pip", Packages: []string{"requests", "six"}}}
}

func (n installableNotification) AfterInstall(context.Context) error {
	*n.hookCalls++
	return nil
}

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c := NewCatalog()
	c.MustRegister("test.service", func(cfg map[string]any) (any, error) {
		return &stubService{cfg: cfg}, nil
	})
	c.MustRegister("test.notification", func(map[string]any) (any, error) {
		return stubNotification{}, nil
	})
	c.MustRegister("test.panics", func(map[string]any) (any, error) {
		panic("boom")
	})
	c.MustRegister("test.fails", func(map[string]any) (any, error) {
		return nil, errors.New("missing native library")
	})
	return c
}

func writeManifest(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name+".yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoader_Load(t *testing.T) {
	t.Parallel()
	loader := NewLoader(testCatalog(t))

	tests := []struct {
		name     string
		family   Family
		plugin   string
		manifest string
		wantKind ErrorKind
	}{
		{
			name: "valid service", family: FamilyService, plugin: "Stub",
			manifest: "name: Stub\nimplementation: test.service\n",
		},
		{
			name: "valid notification", family: FamilyNotification, plugin: "Note",
			manifest: "name: Note\nimplementation: test.notification\n",
		},
		{
			name: "broken yaml", family: FamilyService, plugin: "Stub",
			manifest: "name: [Stub\n", wantKind: SyntaxInvalid,
		},
		{
			name: "missing implementation", family: FamilyService, plugin: "Stub",
			manifest: "name: Stub\n", wantKind: SyntaxInvalid,
		},
		{
			name: "unknown key", family: FamilyService, plugin: "Stub",
			manifest: "name: Stub\nimplementation: test.service\nentrypoint: main\n", wantKind: SyntaxInvalid,
		},
		{
			name: "name mismatch", family: FamilyService, plugin: "Other",
			manifest: "name: Stub\nimplementation: test.service\n", wantKind: SyntaxInvalid,
		},
		{
			name: "unknown implementation", family: FamilyService, plugin: "Stub",
			manifest: "name: Stub\nimplementation: test.nowhere\n", wantKind: ImportFailure,
		},
		{
			name: "factory panics", family: FamilyService, plugin: "Stub",
			manifest: "name: Stub\nimplementation: test.panics\n", wantKind: ImportFailure,
		},
		{
			name: "factory fails", family: FamilyNotification, plugin: "Stub",
			manifest: "name: Stub\nimplementation: test.fails\n", wantKind: ImportFailure,
		},
		{
			name: "service loaded as notification", family: FamilyNotification, plugin: "Stub",
			manifest: "name: Stub\nimplementation: test.service\n", wantKind: CapabilityMissing,
		},
		{
			name: "notification loaded as service", family: FamilyService, plugin: "Stub",
			manifest: "name: Stub\nimplementation: test.notification\n", wantKind: CapabilityMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeManifest(t, tt.plugin, tt.manifest)
			h, err := loader.Load(tt.family, tt.plugin, path)
			if tt.wantKind == "" {
				if err != nil {
					t.Fatalf("Load() error = %v", err)
				}
				if h.Name != tt.plugin || h.Family != tt.family {
					t.Errorf("Load() handle = %+v", h)
				}
				return
			}
			kind, ok := KindOf(err)
			if !ok {
				t.Fatalf("Load() error = %v, want *LoaderError", err)
			}
			if kind != tt.wantKind {
				t.Errorf("Load() kind = %s, want %s (%v)", kind, tt.wantKind, err)
			}
		})
	}
}

func TestLoader_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := NewLoader(NewCatalog()).Load(FamilyService, "Gone", filepath.Join(t.TempDir(), "Gone.yaml"))
	if kind, _ := KindOf(err); kind != ImportFailure {
		t.Errorf("Load() kind = %q, want %q", kind, ImportFailure)
	}
}

func TestHandle_ConfigMerge(t *testing.T) {
	t.Parallel()
	loader := NewLoader(testCatalog(t))
	path := writeManifest(t, "Stub", "name: Stub\nimplementation: test.service\nconfig:\n  banner: hello\n  port: 23\n")
	h, err := loader.Load(FamilyService, "Stub", path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	svc, err := h.NewService(map[string]any{"port": 2323})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	cfg := svc.(*stubService).cfg
	if cfg["banner"] != "hello" || cfg["port"] != 2323 {
		t.Errorf("merged config = %v", cfg)
	}
	if got := h.RecordTypeNames(); !reflect.DeepEqual(got, []string{"Hit"}) {
		t.Errorf("RecordTypeNames() = %v", got)
	}
	if _, err := h.NewNotification(nil); err == nil {
		t.Error("NewNotification() on a service handle succeeded")
	}
}

func TestHandle_DependenciesAndHook(t *testing.T) {
	t.Parallel()
	calls := 0
	c := NewCatalog()
	c.MustRegister("test.installable", func(map[string]any) (any, error) {
		return installableNotification{hookCalls: &calls}, nil
	})
	path := writeManifest(t, "Pager", "name: Pager\nimplementation: test.installable\ndependencies:\n  - manager: pip\n    packages: [requests]\n  - manager: apt\n    packages: [libssl-dev]\n")
	h, err := NewLoader(c).Load(FamilyNotification, "Pager", path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := []Dependency{
		{Manager: "pip", Packages: []string{"requests", "six"}},
		{Manager: "apt", Packages: []string{"libssl-dev"}},
	}
	if got := h.Dependencies(); !reflect.DeepEqual(got, want) {
		t.Errorf("Dependencies() = %+v, want %+v", got, want)
	}
	if err := h.AfterInstall(context.Background()); err != nil {
		t.Fatalf("AfterInstall() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("AfterInstall hook called %d times, want 1", calls)
	}
}

func TestParseManifest_RejectsBadDependencyManager(t *testing.T) {
	t.Parallel()
	_, err := ParseManifest([]byte("name: X\nimplementation: a\ndependencies:\n  - manager: brew\n    packages: [x]\n"))
	if err == nil {
		t.Error("ParseManifest() accepted unknown package manager")
	}
}

func TestCatalog_DuplicateRegistration(t *testing.T) {
	t.Parallel()
	c := NewCatalog()
	f := func(map[string]any) (any, error) { return nil, nil }
	if err := c.Register("a", f); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := c.Register("a", f); err == nil {
		t.Error("duplicate Register() succeeded")
	}
	if got := c.IDs(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("IDs() = %v", got)
	}
}

func TestWithPeer(t *testing.T) {
	t.Parallel()

	got := WithPeer(map[string]any{"username": "root"}, "203.0.113.9:40122")
	if got["src_host"] != "203.0.113.9" || got["src_port"] != int64(40122) || got["username"] != "root" {
		t.Errorf("WithPeer() = %v", got)
	}

	kept := WithPeer(map[string]any{"src_host": "198.51.100.1"}, "203.0.113.9:1")
	if kept["src_host"] != "198.51.100.1" {
		t.Errorf("WithPeer() overwrote src_host: %v", kept)
	}

	v6 := WithPeer(nil, "[2001:db8::1]:23")
	if v6["src_host"] != "2001:db8::1" {
		t.Errorf("WithPeer() ipv6 = %v", v6)
	}

	if bad := WithPeer(nil, "not-an-addr"); len(bad) != 0 {
		t.Errorf("WithPeer() with bad peer = %v", bad)
	}
}

func TestReports(t *testing.T) {
	t.Parallel()
	var gotArgs map[string]any
	r := Reports{{
		Name:        "top",
		DefaultArgs: map[string]any{"limit": 10, "field": "username"},
		Fetch: func(_ context.Context, _ RecordQuerier, dep int64, args map[string]any) (any, error) {
			gotArgs = args
			return dep, nil
		},
	}}

	data, err := r.ReportData(context.Background(), nil, 7, "top", map[string]any{"limit": 3})
	if err != nil {
		t.Fatalf("ReportData() error = %v", err)
	}
	if data != int64(7) || gotArgs["limit"] != 3 || gotArgs["field"] != "username" {
		t.Errorf("ReportData() = %v, args %v", data, gotArgs)
	}
	if r.DefaultReportArgs("top")["limit"] != 10 {
		t.Error("ReportData() mutated defaults")
	}
	if _, err := r.ReportData(context.Background(), nil, 7, "nope", nil); !errors.Is(err, ErrUnknownReport) {
		t.Errorf("ReportData(unknown) error = %v", err)
	}
	if args := r.TemplateArgs("top", 1); args["data"] != 1 {
		t.Errorf("TemplateArgs() = %v", args)
	}
	if IntArg(map[string]any{"n": "12"}, "n", 0) != 12 || IntArg(nil, "n", 5) != 5 {
		t.Error("IntArg() mismatch")
	}
}

func TestRecordAccessors(t *testing.T) {
	t.Parallel()
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := NewRecord("Stub", "Hit", Event{DeploymentID: 4, Timestamp: ts})
	rec.Set("name", "x").Set("port", 23)

	if rec.String("name") != "x" || rec.Int("port") != 23 || rec.Int("missing") != 0 {
		t.Errorf("accessors returned wrong values: %+v", rec.Fields)
	}
	if rec.DeploymentID != 4 || !rec.Timestamp.Equal(ts) {
		t.Errorf("NewRecord() = %+v", rec)
	}
}
