// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey int

const (
	correlationIDKey contextKey = iota
	peerKey
)

// GenerateCorrelationID returns the first 8 characters of a random UUID.
func GenerateCorrelationID() string {
	return uuid.New().String()[:8]
}

// ContextWithCorrelationID returns a new context with the given correlation ID.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// ContextWithNewCorrelationID tags ctx with a fresh correlation ID. The
// collector calls it once per inbound message, the API once per request.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

// CorrelationIDFromContext returns the correlation ID, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// ContextWithPeer records the remote address a message arrived from.
func ContextWithPeer(ctx context.Context, peer string) context.Context {
	return context.WithValue(ctx, peerKey, peer)
}

// PeerFromContext returns the remote address stored by ContextWithPeer.
func PeerFromContext(ctx context.Context) string {
	p, _ := ctx.Value(peerKey).(string)
	return p
}

// Ctx returns the global logger with correlation_id and peer fields taken from ctx.
//
//	logging.Ctx(ctx).Info().Str("service", name).Msg("entry skipped")
func Ctx(ctx context.Context) *zerolog.Logger {
	l := withRequestFields(ctx, Logger())
	return &l
}

// Rejected starts a warn-level event for a message the collector refused.
// Rejections are burst-sampled (see Config.RejectBurst) so a sensor scan or
// a flood of forged envelopes cannot drown the rest of the log.
func Rejected(ctx context.Context) *zerolog.Event {
	l := withRequestFields(ctx, rejectLogger())
	return l.Warn()
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func withRequestFields(ctx context.Context, l zerolog.Logger) zerolog.Logger {
	id, peer := CorrelationIDFromContext(ctx), PeerFromContext(ctx)
	if id == "" && peer == "" {
		return l
	}
	zctx := l.With()
	if id != "" {
		zctx = zctx.Str("correlation_id", id)
	}
	if peer != "" {
		zctx = zctx.Str("peer", peer)
	}
	return zctx.Logger()
}
