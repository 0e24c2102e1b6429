// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/hivekeeper/internal/config"
	"github.com/tomtom215/hivekeeper/internal/database"
	"github.com/tomtom215/hivekeeper/internal/models"
	"github.com/tomtom215/hivekeeper/internal/plugin"
	"github.com/tomtom215/hivekeeper/internal/registry"
	"github.com/tomtom215/hivekeeper/internal/rules"
	"github.com/tomtom215/hivekeeper/internal/schema"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// testDBSemaphore serializes DuckDB usage across tests.
var testDBSemaphore = make(chan struct{}, 1)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	type result struct {
		db  *database.DB
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 1})
		resultCh <- result{db: db, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("Failed to create test database: %v", res.err)
		}
		t.Cleanup(func() { _ = res.db.Close() })
		return res.db
	case <-time.After(120 * time.Second):
		t.Fatal("Timeout creating test database")
		return nil
	}
}

// fakeNotification accepts any config with a "url" key.
type fakeNotification struct {
	plugin.NoInstallHooks
}

func (fakeNotification) RequiresExtraConfig() bool { return true }
func (fakeNotification) ExtraConfigSample() map[string]any {
	return map[string]any{"url": "https://example.com"}
}
func (fakeNotification) ValidateConfig(cfg map[string]any) error {
	if _, ok := cfg["url"].(string); !ok {
		return fmt.Errorf("url is required")
	}
	return nil
}
func (fakeNotification) Process(context.Context, plugin.Message) error { return nil }

// fakeService has one report, "echo", that returns its arguments.
type fakeService struct {
	plugin.Reports
}

func newFakeService() fakeService {
	return fakeService{Reports: plugin.Reports{{
		Name:        "echo",
		DefaultArgs: map[string]any{"time": 7},
		Fetch: func(_ context.Context, _ plugin.RecordQuerier, deploymentID int64, args map[string]any) (any, error) {
			return map[string]any{"deployment": deploymentID, "args": args}, nil
		},
	}}}
}

func (fakeService) RecordTypes() []schema.RecordType                  { return nil }
func (fakeService) CreateRecord(plugin.Event) (*plugin.Record, error) { return nil, nil }
func (fakeService) Severity(*plugin.Record) int                       { return 0 }
func (fakeService) SeverityLevels() []plugin.Level                    { return nil }
func (fakeService) Message(*plugin.Record, int) string                { return "" }
func (fakeService) Resources() []plugin.Resource                      { return nil }

type fakeRegistry struct {
	mu            sync.Mutex
	services      map[string]plugin.Service
	notifications map[string]plugin.Notification
	uploads       map[string]string

	installErr    error
	installResult *registry.InstallResult
	updateErr     error
	uninstallErr  error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		services:      map[string]plugin.Service{"SSHLogin": newFakeService()},
		notifications: map[string]plugin.Notification{"Hook": fakeNotification{}},
		uploads:       map[string]string{},
	}
}

func (f *fakeRegistry) Install(_ context.Context, family plugin.Family, src registry.Source) (*registry.InstallResult, error) {
	body, err := io.ReadAll(src.Reader)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads[src.Filename] = string(body)
	if f.installErr != nil {
		return nil, f.installErr
	}
	if f.installResult != nil {
		return f.installResult, nil
	}
	return &registry.InstallResult{Name: "Uploaded", Family: family, Status: models.PluginActive}, nil
}

func (f *fakeRegistry) Update(_ context.Context, _ plugin.Family, _ string, src registry.Source) error {
	body, _ := io.ReadAll(src.Reader)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads[src.Filename] = string(body)
	return f.updateErr
}

func (f *fakeRegistry) Uninstall(context.Context, plugin.Family, string) error {
	return f.uninstallErr
}

func (f *fakeRegistry) List(family plugin.Family) []registry.Info {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []registry.Info
	if family == plugin.FamilyService {
		for name := range f.services {
			out = append(out, registry.Info{Name: name, Family: family, Status: models.PluginActive})
		}
	} else {
		for name := range f.notifications {
			out = append(out, registry.Info{Name: name, Family: family, Status: models.PluginActive})
		}
	}
	return out
}

func (f *fakeRegistry) Get(family plugin.Family, name string) (registry.Info, error) {
	if !f.IsActive(family, name) {
		return registry.Info{}, fmt.Errorf("%w: %s %s", registry.ErrNotFound, family, name)
	}
	return registry.Info{Name: name, Family: family, Status: models.PluginActive}, nil
}

func (f *fakeRegistry) IsActive(family plugin.Family, name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if family == plugin.FamilyService {
		_, ok := f.services[name]
		return ok
	}
	_, ok := f.notifications[name]
	return ok
}

func (f *fakeRegistry) WithService(_ context.Context, name string, cfg map[string]any, fn func(plugin.Service) error) error {
	f.mu.Lock()
	svc, ok := f.services[name]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", registry.ErrNotFound, name)
	}
	if port, ok := cfg["port"]; ok {
		if _, isNum := port.(float64); !isNum {
			return fmt.Errorf("decode %s config: port must be a number", name)
		}
	}
	return fn(svc)
}

func (f *fakeRegistry) WithNotification(_ context.Context, name string, _ map[string]any, fn func(plugin.Notification) error) error {
	f.mu.Lock()
	n, ok := f.notifications[name]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", registry.ErrNotFound, name)
	}
	return fn(n)
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (c *countingInvalidator) Invalidate() {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

func (c *countingInvalidator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fakeTables struct{}

func (fakeTables) Tables() []string { return nil }

type testServer struct {
	db       *database.DB
	registry *fakeRegistry
	lookups  *countingInvalidator
	jwt      *JWTManager
	token    string
	handler  http.Handler
}

func newTestServer(t *testing.T, cfg RouterConfig) *testServer {
	t.Helper()
	db := setupTestDB(t)
	reg := newFakeRegistry()
	lookups := &countingInvalidator{}
	jwtManager, err := NewJWTManager(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	token, err := jwtManager.GenerateToken("operator", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	h := NewHandler(HandlerDeps{
		Plugins: reg,
		Rules:   rules.NewManager(db, reg),
		Store:   db,
		Tables:  fakeTables{},
		Lookups: lookups,
		Collector: config.CollectorConfig{
			UDPAddr: "collector.example.net:5555",
			TCPAddr: "collector.example.net:5556",
		},
		MaxUploadBytes: 1 << 16,
	})
	return &testServer{
		db:       db,
		registry: reg,
		lookups:  lookups,
		jwt:      jwtManager,
		token:    token,
		handler:  NewRouter(h, jwtManager, cfg).SetupChi(),
	}
}

type testResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, testResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+s.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.serve(t, req)
}

func (s *testServer) upload(t *testing.T, method, path, filename, content string) (*httptest.ResponseRecorder, testResponse) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte(content))
	_ = mw.Close()

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token)
	return s.serve(t, req)
}

func (s *testServer) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, testResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	var resp testResponse
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("response is not JSON: %v: %s", err, w.Body.String())
		}
	}
	return w, resp
}

func decodeData(t *testing.T, resp testResponse, v any) {
	t.Helper()
	if err := json.Unmarshal(resp.Data, v); err != nil {
		t.Fatalf("decode data: %v: %s", err, resp.Data)
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", w.Code, want, w.Body.String())
	}
}

func expectErrorCode(t *testing.T, resp testResponse, want string) {
	t.Helper()
	if resp.Error == nil {
		t.Fatalf("expected error %s, got none", want)
	}
	if resp.Error.Code != want {
		t.Errorf("error_code = %s, want %s (%s)", resp.Error.Code, want, resp.Error.Message)
	}
}
