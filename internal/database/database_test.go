// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/hivekeeper/internal/config"
	"github.com/tomtom215/hivekeeper/internal/models"
	"github.com/tomtom215/hivekeeper/internal/plugin"
	"github.com/tomtom215/hivekeeper/internal/schema"
)

// testDBSemaphore serializes DuckDB usage across tests. Concurrent CGO
// connections from parallel tests can hang under CI resource pressure, so
// the semaphore is held for the whole test and released in t.Cleanup.
var testDBSemaphore = make(chan struct{}, 1)

var testDBMutex sync.Mutex

// setupTestDB creates an in-memory database, failing fast if DuckDB hangs.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "512MB",
		Threads:   2,
	}

	type result struct {
		db  *DB
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		testDBMutex.Lock()
		db, err := New(cfg)
		testDBMutex.Unlock()
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

func createTestProfile(t *testing.T, db *DB, name string) *models.Profile {
	t.Helper()
	p := &models.Profile{Name: name, Description: "test profile"}
	if err := db.CreateProfile(context.Background(), p); err != nil {
		t.Fatalf("CreateProfile(%s) error = %v", name, err)
	}
	return p
}

func createTestDeployment(t *testing.T, db *DB, profileID int64, instance string) *models.Deployment {
	t.Helper()
	d := &models.Deployment{
		Name:          "sensor-" + instance,
		ProfileID:     profileID,
		InstanceKey:   instance,
		MACKey:        "bWFj",
		EncryptionKey: "ZW5j",
		Hostname:      "honey01",
	}
	if err := db.CreateDeployment(context.Background(), d); err != nil {
		t.Fatalf("CreateDeployment(%s) error = %v", instance, err)
	}
	return d
}

func TestMigrate_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.migrate(ctx); err != nil {
		t.Fatalf("second migrate error = %v", err)
	}
	v, err := db.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if want := migrations()[len(migrations())-1].Version; v != want {
		t.Errorf("SchemaVersion() = %d, want %d", v, want)
	}
}

func TestDeployment_CRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	p := createTestProfile(t, db, "default")

	d := createTestDeployment(t, db, p.ID, "inst-1")
	if d.ID == 0 {
		t.Fatal("CreateDeployment did not assign an id")
	}
	if d.CollectorType != models.CollectorUDP {
		t.Errorf("CollectorType = %q, want udp default", d.CollectorType)
	}

	got, err := db.DeploymentByInstanceKey(ctx, "inst-1")
	if err != nil {
		t.Fatalf("DeploymentByInstanceKey() error = %v", err)
	}
	if got.ID != d.ID || got.MACKey != "bWFj" || got.EncryptionKey != "ZW5j" {
		t.Errorf("DeploymentByInstanceKey() = %+v", got)
	}

	if _, err := db.DeploymentByInstanceKey(ctx, "missing"); !errors.Is(err, ErrDeploymentNotFound) {
		t.Errorf("unknown instance error = %v, want ErrDeploymentNotFound", err)
	}

	dup := &models.Deployment{Name: "dup", ProfileID: p.ID, InstanceKey: "inst-1", MACKey: "a", EncryptionKey: "b"}
	if err := db.CreateDeployment(ctx, dup); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("duplicate instance key error = %v, want ErrDuplicateName", err)
	}

	orphan := &models.Deployment{Name: "orphan", ProfileID: 9999, InstanceKey: "inst-x", MACKey: "a", EncryptionKey: "b"}
	if err := db.CreateDeployment(ctx, orphan); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("unknown profile error = %v, want ErrProfileNotFound", err)
	}

	list, err := db.ListDeployments(ctx)
	if err != nil {
		t.Fatalf("ListDeployments() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("ListDeployments() returned %d, want 1", len(list))
	}
}

func TestDeleteDeployment_CascadesRecordsAndReports(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	p := createTestProfile(t, db, "default")
	keep := createTestDeployment(t, db, p.ID, "keep")
	gone := createTestDeployment(t, db, p.ID, "gone")

	rt := schema.RecordType{Name: "login", Fields: []schema.Field{{Name: "username", Type: schema.TypeText}}}
	cols, err := rt.Columns()
	if err != nil {
		t.Fatal(err)
	}
	table := schema.TableName("telnet", "login")
	if err := db.CreateTable(ctx, table, cols); err != nil {
		t.Fatalf("CreateTable() error = %v", err)
	}

	for _, d := range []*models.Deployment{keep, gone} {
		rec := plugin.NewRecord("telnet", "login", plugin.Event{DeploymentID: d.ID, Timestamp: time.Now()})
		rec.Set("username", "root")
		if err := db.StoreRecord(ctx, rec); err != nil {
			t.Fatalf("StoreRecord() error = %v", err)
		}
		if err := db.StoreSelfReport(ctx, &models.SelfReport{DeploymentID: d.ID, Message: "up"}); err != nil {
			t.Fatalf("StoreSelfReport() error = %v", err)
		}
	}

	if err := db.DeleteDeployment(ctx, gone.ID, []string{table}); err != nil {
		t.Fatalf("DeleteDeployment() error = %v", err)
	}
	if _, err := db.GetDeployment(ctx, gone.ID); !errors.Is(err, ErrDeploymentNotFound) {
		t.Errorf("GetDeployment after delete error = %v", err)
	}

	recs, err := db.QueryRecords(ctx, plugin.Query{Plugin: "telnet", Type: "login"})
	if err != nil {
		t.Fatalf("QueryRecords() error = %v", err)
	}
	if len(recs) != 1 || recs[0].DeploymentID != keep.ID {
		t.Errorf("remaining records = %+v, want only deployment %d", recs, keep.ID)
	}
	reports, err := db.SelfReports(ctx, gone.ID, 10)
	if err != nil {
		t.Fatalf("SelfReports() error = %v", err)
	}
	if len(reports) != 0 {
		t.Errorf("self reports of deleted deployment = %d, want 0", len(reports))
	}

	if err := db.DeleteDeployment(ctx, gone.ID, nil); !errors.Is(err, ErrDeploymentNotFound) {
		t.Errorf("second delete error = %v, want ErrDeploymentNotFound", err)
	}
}

func TestProfileServices(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	p := createTestProfile(t, db, "web")

	for _, svc := range []string{"telnet", "portscan"} {
		ps := &models.ProfileService{ProfileID: p.ID, Service: svc, Config: map[string]any{"port": 23}}
		if err := db.AddProfileService(ctx, ps); err != nil {
			t.Fatalf("AddProfileService(%s) error = %v", svc, err)
		}
	}

	// Re-adding replaces the config but keeps the position.
	if err := db.AddProfileService(ctx, &models.ProfileService{
		ProfileID: p.ID, Service: "telnet", Config: map[string]any{"port": 2323},
	}); err != nil {
		t.Fatalf("AddProfileService(replace) error = %v", err)
	}

	list, err := db.ProfileServices(ctx, p.ID)
	if err != nil {
		t.Fatalf("ProfileServices() error = %v", err)
	}
	if len(list) != 2 || list[0].Service != "telnet" || list[1].Service != "portscan" {
		t.Fatalf("ProfileServices() = %+v, want telnet then portscan", list)
	}

	ps, err := db.ProfileService(ctx, p.ID, "telnet")
	if err != nil {
		t.Fatalf("ProfileService() error = %v", err)
	}
	if port, _ := ps.Config["port"].(float64); port != 2323 {
		t.Errorf("telnet config port = %v, want 2323", ps.Config["port"])
	}

	if err := db.RemoveProfileService(ctx, p.ID, "portscan"); err != nil {
		t.Fatalf("RemoveProfileService() error = %v", err)
	}
	if _, err := db.ProfileService(ctx, p.ID, "portscan"); !errors.Is(err, ErrServiceNotEnabled) {
		t.Errorf("removed service error = %v, want ErrServiceNotEnabled", err)
	}
}

func TestDeleteProfile_InUse(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	p := createTestProfile(t, db, "busy")
	d := createTestDeployment(t, db, p.ID, "inst")

	if err := db.DeleteProfile(ctx, p.ID); !errors.Is(err, ErrProfileInUse) {
		t.Fatalf("DeleteProfile(in use) error = %v, want ErrProfileInUse", err)
	}
	if err := db.DeleteDeployment(ctx, d.ID, nil); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteProfile(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProfile() error = %v", err)
	}
	if _, err := db.GetProfile(ctx, p.ID); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("GetProfile after delete error = %v", err)
	}
}

func TestRules_OrderAndUniqueness(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rules := []*models.Rule{
		{Service: "telnet", Notification: "webhook", Condition: models.ConditionGreaterEqual, Level: 3, Action: models.ActionStore},
		{Service: "telnet", Condition: models.ConditionLess, Level: 1, Action: models.ActionDrop},
		{Service: "telnet", Notification: "telegram", Condition: models.ConditionGreaterEqual, Level: 1, Action: models.ActionStore},
		{Service: "portscan", Condition: models.ConditionEqual, Level: 0, Action: models.ActionStore},
	}
	for _, r := range rules {
		if err := db.CreateRule(ctx, r); err != nil {
			t.Fatalf("CreateRule(%+v) error = %v", r, err)
		}
	}

	dup := &models.Rule{Service: "telnet", Condition: models.ConditionLess, Level: 5, Action: models.ActionStore}
	if err := db.CreateRule(ctx, dup); !errors.Is(err, ErrDuplicateRule) {
		t.Errorf("duplicate rule error = %v, want ErrDuplicateRule", err)
	}

	got, err := db.RulesForService(ctx, "telnet")
	if err != nil {
		t.Fatalf("RulesForService() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("RulesForService() returned %d rules, want 3", len(got))
	}
	// Level 1 rules first, in creation order.
	if got[0].ID != rules[1].ID || got[1].ID != rules[2].ID || got[2].ID != rules[0].ID {
		t.Errorf("rule order = [%d %d %d], want [%d %d %d]",
			got[0].ID, got[1].ID, got[2].ID, rules[1].ID, rules[2].ID, rules[0].ID)
	}

	if err := db.DeleteRule(ctx, rules[1].ID); err != nil {
		t.Fatalf("DeleteRule() error = %v", err)
	}
	if _, err := db.GetRule(ctx, rules[1].ID); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("GetRule after delete error = %v", err)
	}
}

func TestDeletePlugins_CascadeRules(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	p := createTestProfile(t, db, "default")

	if err := db.SaveServicePlugin(ctx, models.ServicePluginDescriptor{Name: "telnet", RecordTypes: []string{"login"}, InstalledAt: now}); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveNotificationPlugin(ctx, models.NotificationPluginDescriptor{Name: "webhook", InstalledAt: now}); err != nil {
		t.Fatal(err)
	}
	if err := db.AddProfileService(ctx, &models.ProfileService{ProfileID: p.ID, Service: "telnet"}); err != nil {
		t.Fatal(err)
	}
	for _, r := range []*models.Rule{
		{Service: "telnet", Notification: "webhook", Condition: models.ConditionGreater, Level: 1, Action: models.ActionStore},
		{Service: "telnet", Condition: models.ConditionLess, Level: 1, Action: models.ActionDrop},
	} {
		if err := db.CreateRule(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	if err := db.DeleteNotificationPlugin(ctx, "webhook"); err != nil {
		t.Fatalf("DeleteNotificationPlugin() error = %v", err)
	}
	left, _ := db.RulesForService(ctx, "telnet")
	if len(left) != 1 || left[0].Notification != "" {
		t.Errorf("rules after notification delete = %+v, want only the unnotified rule", left)
	}

	if err := db.DeleteServicePlugin(ctx, "telnet"); err != nil {
		t.Fatalf("DeleteServicePlugin() error = %v", err)
	}
	if left, _ := db.RulesForService(ctx, "telnet"); len(left) != 0 {
		t.Errorf("rules after service delete = %d, want 0", len(left))
	}
	if _, err := db.ProfileService(ctx, p.ID, "telnet"); !errors.Is(err, ErrServiceNotEnabled) {
		t.Errorf("profile service after service delete error = %v", err)
	}
	plugins, err := db.ListServicePlugins(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(plugins) != 0 {
		t.Errorf("ListServicePlugins() = %+v, want empty", plugins)
	}
}

func TestRecords_QueryAndCount(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rt := schema.RecordType{Name: "probe", Fields: []schema.Field{
		{Name: "src_host", Type: schema.TypeText},
		{Name: "ports", Type: schema.TypeJSON},
		{Name: "count", Type: schema.TypeInteger},
	}}
	cols, _ := rt.Columns()
	table := schema.TableName("portscan", "probe")
	if err := db.CreateTable(ctx, table, cols); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateTable(ctx, table, cols); err != nil {
		t.Fatalf("CreateTable must be idempotent: %v", err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	hosts := []string{"10.0.0.1", "10.0.0.2", "10.0.0.1"}
	for i, h := range hosts {
		rec := plugin.NewRecord("portscan", "probe", plugin.Event{DeploymentID: 7, Timestamp: base.Add(time.Duration(i) * time.Minute)})
		rec.Set("src_host", h).Set("ports", []int{22, 23}).Set("count", 2)
		if err := db.StoreRecord(ctx, rec); err != nil {
			t.Fatalf("StoreRecord() error = %v", err)
		}
	}

	recs, err := db.QueryRecords(ctx, plugin.Query{Plugin: "portscan", Type: "probe", DeploymentID: 7, Limit: 2})
	if err != nil {
		t.Fatalf("QueryRecords() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("QueryRecords() returned %d, want 2", len(recs))
	}
	if !recs[0].Timestamp.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("first record timestamp = %v, want newest", recs[0].Timestamp)
	}
	if recs[0].Fields["ports"] != "[22,23]" {
		t.Errorf("ports = %v, want JSON text", recs[0].Fields["ports"])
	}

	counts, err := db.CountBy(ctx, plugin.Query{Plugin: "portscan", Type: "probe"}, "src_host")
	if err != nil {
		t.Fatalf("CountBy() error = %v", err)
	}
	if len(counts) != 2 || counts[0].Key != "10.0.0.1" || counts[0].Count != 2 {
		t.Errorf("CountBy() = %+v", counts)
	}

	if _, err := db.CountBy(ctx, plugin.Query{Plugin: "portscan", Type: "probe"}, "x; DROP"); err == nil {
		t.Error("CountBy accepted a non-identifier field")
	}

	// Adding a column later keeps stored rows.
	cols = append(cols, schema.Column{Name: "banner", SQLType: "VARCHAR"})
	if err := db.AddColumns(ctx, table, cols); err != nil {
		t.Fatalf("AddColumns() error = %v", err)
	}
	if recs, _ := db.QueryRecords(ctx, plugin.Query{Plugin: "portscan", Type: "probe"}); len(recs) != 3 {
		t.Errorf("records after AddColumns = %d, want 3", len(recs))
	}

	if err := db.DropTable(ctx, table); err != nil {
		t.Fatalf("DropTable() error = %v", err)
	}
	if _, err := db.QueryRecords(ctx, plugin.Query{Plugin: "portscan", Type: "probe"}); err == nil {
		t.Error("QueryRecords succeeded on a dropped table")
	}
}

func TestStoreRecord_UnknownFieldFails(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rt := schema.RecordType{Name: "login"}
	cols, _ := rt.Columns()
	if err := db.CreateTable(ctx, schema.TableName("telnet", "login"), cols); err != nil {
		t.Fatal(err)
	}
	rec := plugin.NewRecord("telnet", "login", plugin.Event{DeploymentID: 1, Timestamp: time.Now()})
	rec.Set("nope", "x")
	if err := db.StoreRecord(ctx, rec); err == nil {
		t.Error("StoreRecord accepted a field with no column")
	}
}
