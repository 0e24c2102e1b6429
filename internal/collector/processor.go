// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/hivekeeper/internal/database"
	"github.com/tomtom215/hivekeeper/internal/logging"
	"github.com/tomtom215/hivekeeper/internal/metrics"
	"github.com/tomtom215/hivekeeper/internal/models"
	"github.com/tomtom215/hivekeeper/internal/plugin"
	"github.com/tomtom215/hivekeeper/internal/rules"
	"github.com/tomtom215/hivekeeper/internal/sensorcrypto"
)

// TimestampLayout is the form sensors use for entry timestamps (UTC).
const TimestampLayout = "2006-01-02 15:04:05"

// DefaultSelfReportService is the service name sensors use for status reports.
const DefaultSelfReportService = "PiPot"

// Reason says why a message was rejected.
type Reason string

const (
	ReasonMalformedEnvelope Reason = "malformed_envelope"
	ReasonUnknownInstance   Reason = "unknown_instance"
	ReasonDecryptFailed     Reason = "decrypt_failed"
	ReasonMalformedPayload  Reason = "malformed_payload"
	ReasonBadTag            Reason = "bad_tag"
	ReasonMalformedContent  Reason = "malformed_content"
	ReasonLookupFailed      Reason = "lookup_failed"
)

// EntryOutcome is what happened to one content entry.
type EntryOutcome string

const (
	EntryStored     EntryOutcome = "stored"
	EntryDropped    EntryOutcome = "dropped"
	EntrySkipped    EntryOutcome = "skipped"
	EntryFailed     EntryOutcome = "failed"
	EntrySelfReport EntryOutcome = "self_report"
)

// EntryResult describes one processed entry.
type EntryResult struct {
	Service string
	Outcome EntryOutcome
	Err     error
}

// Result summarizes one message. It is for metrics, logs and tests only.
type Result struct {
	Accepted     bool
	Reason       Reason
	DeploymentID int64
	Entries      []EntryResult
}

// MetricResult maps the result onto the collector message counter's label.
// Unknown instances and bad tags share "rejected".
func (r Result) MetricResult() string {
	if r.Accepted {
		return "accepted"
	}
	switch r.Reason {
	case ReasonMalformedEnvelope:
		return "malformed"
	case ReasonLookupFailed:
		return "dropped"
	default:
		return "rejected"
	}
}

// DeploymentSource resolves deployments and their enabled services.
type DeploymentSource interface {
	DeploymentByInstanceKey(ctx context.Context, instanceKey string) (*models.Deployment, error)
	ProfileService(ctx context.Context, profileID int64, service string) (*models.ProfileService, error)
}

// SelfReportWriter persists sensor status messages.
type SelfReportWriter interface {
	StoreSelfReport(ctx context.Context, r *models.SelfReport) error
}

// ServiceResolver runs fn with a configured instance of an active service plugin.
type ServiceResolver interface {
	WithService(ctx context.Context, name string, cfg map[string]any, fn func(plugin.Service) error) error
}

// RuleApplier decides whether a record is stored and whether it raises an alert.
type RuleApplier interface {
	Apply(ctx context.Context, svc plugin.Service, rec *plugin.Record, severity int) (rules.Outcome, error)
}

// Processor authenticates envelopes and dispatches their entries.
type Processor struct {
	deployments DeploymentSource
	selfReports SelfReportWriter
	services    ServiceResolver
	rules       RuleApplier

	selfReportService string
	now               func() time.Time
}

// NewProcessor creates a Processor. An empty selfReportService means
// DefaultSelfReportService.
func NewProcessor(deployments DeploymentSource, selfReports SelfReportWriter, services ServiceResolver, applier RuleApplier, selfReportService string) *Processor {
	if selfReportService == "" {
		selfReportService = DefaultSelfReportService
	}
	return &Processor{
		deployments:       deployments,
		selfReports:       selfReports,
		services:          services,
		rules:             applier,
		selfReportService: selfReportService,
		now:               time.Now,
	}
}

type envelope struct {
	Instance *string `json:"instance"`
	Data     *string `json:"data"`
}

type contentEntry struct {
	Service   string
	Timestamp json.RawMessage
	Data      json.RawMessage
}

// Dummy key material keeps the unknown-instance path doing the same work as
// a bad tag.
var dummyEncKey, dummyMACKey = mustDummyKeys()

func mustDummyKeys() ([]byte, []byte) {
	enc, err := sensorcrypto.GenerateKey(32)
	if err != nil {
		panic(fmt.Sprintf("collector: generate dummy key: %v", err))
	}
	mac, err := sensorcrypto.GenerateKey(32)
	if err != nil {
		panic(fmt.Sprintf("collector: generate dummy key: %v", err))
	}
	return []byte(enc), []byte(mac)
}

// Handle processes raw as a message that arrived over transport from peer
// and records the message metrics.
func (p *Processor) Handle(ctx context.Context, transport, peer string, raw []byte) Result {
	start := time.Now()
	ctx = logging.ContextWithNewCorrelationID(ctx)
	if peer != "" {
		ctx = logging.ContextWithPeer(ctx, peer)
	}
	res := p.Process(ctx, raw)
	metrics.RecordMessage(transport, res.MetricResult(), time.Since(start))
	return res
}

// Process authenticates one envelope and processes its entries. The peer
// address, if any, is taken from ctx.
func (p *Processor) Process(ctx context.Context, raw []byte) Result {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Instance == nil || env.Data == nil {
		return p.reject(ctx, ReasonMalformedEnvelope, nil)
	}

	dep, err := p.deployments.DeploymentByInstanceKey(ctx, *env.Instance)
	if err != nil {
		if !errors.Is(err, database.ErrDeploymentNotFound) {
			return p.reject(ctx, ReasonLookupFailed, err)
		}
		// Same decrypt and verify cost as a real deployment.
		_, _ = sensorcrypto.Open(dummyEncKey, dummyMACKey, *env.Data)
		return p.reject(ctx, ReasonUnknownInstance, nil)
	}

	content, err := sensorcrypto.Open([]byte(dep.EncryptionKey), []byte(dep.MACKey), *env.Data)
	switch {
	case errors.Is(err, sensorcrypto.ErrBadTag):
		return p.reject(ctx, ReasonBadTag, nil)
	case errors.Is(err, sensorcrypto.ErrMalformedPayload):
		return p.reject(ctx, ReasonMalformedPayload, nil)
	case err != nil:
		return p.reject(ctx, ReasonDecryptFailed, err)
	}

	entries, err := parseContent(content)
	if err != nil {
		return p.reject(ctx, ReasonMalformedContent, err)
	}

	received := p.now().UTC()
	res := Result{Accepted: true, DeploymentID: dep.ID, Entries: make([]EntryResult, 0, len(entries))}
	for _, e := range entries {
		er := p.processEntry(ctx, dep, e, received)
		if er.Err != nil {
			logging.Ctx(ctx).Error().Err(er.Err).
				Int64("deployment_id", dep.ID).
				Str("service", e.Service).
				Msg("entry processing failed")
		}
		metrics.RecordEntry(string(er.Outcome))
		res.Entries = append(res.Entries, er)
	}

	logging.Ctx(ctx).Debug().
		Int64("deployment_id", dep.ID).
		Int("entries", len(entries)).
		Msg("message processed")
	return res
}

func (p *Processor) reject(ctx context.Context, reason Reason, err error) Result {
	ev := logging.Rejected(ctx).Str("reason", string(reason))
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("message rejected")
	return Result{Reason: reason}
}

// parseContent requires an array of objects, each with a string "service"
// and a "data" member.
func parseContent(content json.RawMessage) ([]contentEntry, error) {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(content, &items); err != nil {
		return nil, fmt.Errorf("content is not an array of objects: %w", err)
	}
	entries := make([]contentEntry, 0, len(items))
	for i, item := range items {
		if item == nil {
			return nil, fmt.Errorf("entry %d is not an object", i)
		}
		rawService, ok := item["service"]
		if !ok {
			return nil, fmt.Errorf("entry %d has no service", i)
		}
		var service string
		if err := json.Unmarshal(rawService, &service); err != nil {
			return nil, fmt.Errorf("entry %d service is not a string", i)
		}
		data, ok := item["data"]
		if !ok {
			return nil, fmt.Errorf("entry %d has no data", i)
		}
		entries = append(entries, contentEntry{Service: service, Timestamp: item["timestamp"], Data: data})
	}
	return entries, nil
}

// entryTime parses the entry timestamp, falling back to the receipt time.
func entryTime(raw json.RawMessage, received time.Time) time.Time {
	if len(raw) == 0 {
		return received
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return received
	}
	t, err := time.ParseInLocation(TimestampLayout, s, time.UTC)
	if err != nil {
		return received
	}
	return t
}

// selfReportMessage returns data verbatim when it is a JSON string and its
// compact JSON text otherwise.
func selfReportMessage(data json.RawMessage) string {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return string(data)
	}
	return buf.String()
}

func (p *Processor) processEntry(ctx context.Context, dep *models.Deployment, e contentEntry, received time.Time) EntryResult {
	ts := entryTime(e.Timestamp, received)
	res := EntryResult{Service: e.Service}

	if e.Service == p.selfReportService {
		report := &models.SelfReport{
			DeploymentID: dep.ID,
			Message:      selfReportMessage(e.Data),
			Timestamp:    ts,
		}
		if err := p.selfReports.StoreSelfReport(ctx, report); err != nil {
			res.Outcome, res.Err = EntryFailed, fmt.Errorf("store self report: %w", err)
			return res
		}
		res.Outcome = EntrySelfReport
		return res
	}

	ps, err := p.deployments.ProfileService(ctx, dep.ProfileID, e.Service)
	if errors.Is(err, database.ErrServiceNotEnabled) {
		logging.Ctx(ctx).Debug().
			Int64("deployment_id", dep.ID).
			Str("service", e.Service).
			Msg("service not enabled for deployment, entry skipped")
		res.Outcome = EntrySkipped
		return res
	}
	if err != nil {
		res.Outcome, res.Err = EntryFailed, err
		return res
	}

	ev := plugin.Event{
		DeploymentID: dep.ID,
		Timestamp:    ts,
		Data:         e.Data,
		Peer:         logging.PeerFromContext(ctx),
	}
	err = p.services.WithService(ctx, e.Service, ps.Config, func(svc plugin.Service) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %s: %v", ErrPluginPanic, e.Service, r)
			}
		}()
		rec, err := svc.CreateRecord(ev)
		if err != nil {
			return fmt.Errorf("create record: %w", err)
		}
		rec.Plugin = e.Service
		rec.DeploymentID = dep.ID

		outcome, err := p.rules.Apply(ctx, svc, rec, svc.Severity(rec))
		if err != nil {
			return err
		}
		if outcome == rules.OutcomeDropped {
			res.Outcome = EntryDropped
		} else {
			res.Outcome = EntryStored
		}
		return nil
	})
	if err != nil {
		res.Outcome, res.Err = EntryFailed, err
	}
	return res
}
