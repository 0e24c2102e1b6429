// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

// Package logging provides centralized zerolog-based structured logging for Hivekeeper.
//
// The collector, plugin registry, and admin API all log through the global
// logger configured here. Ingestion code attaches a per-message correlation ID
// and the sensor's peer address to the context so every line emitted while a
// message is processed can be joined back together.
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	ctx = logging.ContextWithNewCorrelationID(ctx)
//	ctx = logging.ContextWithPeer(ctx, addr.String())
//	logging.Rejected(ctx).Str("reason", "bad_tag").Msg("message rejected")
//
// Rejected writes through a burst-sampled copy of the global logger, so a
// flood of forged or unknown-instance envelopes costs at most RejectBurst
// lines per RejectPeriod. Everything else goes through Ctx or the level
// helpers and is never sampled.
//
// # Third-Party Loggers
//
// Suture (through sutureslog) and Watermill both accept a *slog.Logger.
// NewSlogLogger returns one backed by the global zerolog logger so their
// output shares format and level with the rest of the process.
package logging
