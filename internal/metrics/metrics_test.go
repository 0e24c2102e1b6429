// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordMessage(t *testing.T) {
	before := testutil.ToFloat64(CollectorMessages.WithLabelValues("udp", "rejected"))
	RecordMessage("udp", "rejected", time.Millisecond)
	after := testutil.ToFloat64(CollectorMessages.WithLabelValues("udp", "rejected"))
	if after-before != 1 {
		t.Errorf("counter delta = %v, want 1", after-before)
	}
}

func TestRecordPluginOperation(t *testing.T) {
	ok := PluginOperations.WithLabelValues("service", "install", "success")
	bad := PluginOperations.WithLabelValues("service", "install", "error")
	okBefore, badBefore := testutil.ToFloat64(ok), testutil.ToFloat64(bad)

	RecordPluginOperation("service", "install", nil)
	RecordPluginOperation("service", "install", errors.New("boom"))

	if testutil.ToFloat64(ok)-okBefore != 1 {
		t.Error("success counter not incremented")
	}
	if testutil.ToFloat64(bad)-badBefore != 1 {
		t.Error("error counter not incremented")
	}
}
