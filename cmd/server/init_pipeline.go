// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package main

import (
	"fmt"

	"github.com/tomtom215/hivekeeper/internal/alerting"
	"github.com/tomtom215/hivekeeper/internal/collector"
	"github.com/tomtom215/hivekeeper/internal/config"
	"github.com/tomtom215/hivekeeper/internal/logging"
	"github.com/tomtom215/hivekeeper/internal/registry"
	"github.com/tomtom215/hivekeeper/internal/rules"
	"github.com/tomtom215/hivekeeper/internal/supervisor"
)

type alertPipeline struct {
	dispatcher alerting.Dispatcher
	pubsub     *alerting.PubSub
}

func (a *alertPipeline) Close() {
	if a.pubsub == nil {
		return
	}
	if err := a.pubsub.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing alert transport")
	}
}

// initAlerting returns the dispatcher the rule engine hands alerts to. In
// queue mode the consumer runs under the plugin layer and delivery happens
// off the ingestion path.
func initAlerting(cfg config.AlertsConfig, reg *registry.Registry, tree *supervisor.SupervisorTree) (*alertPipeline, error) {
	deliverer := alerting.NewDeliverer(reg, cfg)

	switch cfg.Mode {
	case "direct":
		logging.Info().Msg("Alerts delivered inline")
		return &alertPipeline{dispatcher: deliverer}, nil
	case "", "queue":
	default:
		return nil, fmt.Errorf("unknown alerts mode %q", cfg.Mode)
	}

	logger := alerting.NewLogger()
	ps, err := alerting.NewPubSub(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("alert transport: %w", err)
	}
	consumer := alerting.NewConsumer(cfg, ps.Subscriber, ps.Publisher, deliverer, logger)
	tree.AddPluginService(consumer)

	logging.Info().Str("transport", cfg.Transport).Str("topic", cfg.Topic).Msg("Alerts queued")
	return &alertPipeline{
		dispatcher: alerting.NewQueueDispatcher(ps.Publisher, cfg.Topic, consumer.Ready()),
		pubsub:     ps,
	}, nil
}

// initCollector returns the lookup cache, if enabled, so the API can invalidate it.
func initCollector(cfg config.CollectorConfig, core *core, dispatcher alerting.Dispatcher, tree *supervisor.SupervisorTree) (*collector.CachedDeployments, error) {
	if !cfg.UDPEnabled && !cfg.TCPEnabled {
		return nil, fmt.Errorf("collector: at least one of UDP or TCP must be enabled")
	}

	var deployments collector.DeploymentSource = core.db
	var lookups *collector.CachedDeployments
	if cfg.LookupCacheTTL > 0 {
		lookups = collector.NewCachedDeployments(core.db, cfg.LookupCacheTTL)
		tree.AddStorageService(lookups)
		deployments = lookups
	}

	engine := rules.NewEngine(core.db, core.db, dispatcher)
	processor := collector.NewProcessor(deployments, core.db, core.registry, engine, cfg.SelfReportService)
	if cfg.UDPEnabled {
		tree.AddIngestService(collector.NewUDPListener(collector.UDPOptions{
			Addr:            cfg.UDPAddr,
			ReadBufferBytes: cfg.ReadBufferBytes,
			MaxMessageBytes: cfg.MaxMessageBytes,
			Workers:         cfg.Workers,
			QueueSize:       cfg.QueueSize,
		}, processor))
	}
	if cfg.TCPEnabled {
		tree.AddIngestService(collector.NewTCPListener(collector.TCPOptions{
			Addr:            cfg.TCPAddr,
			TLSCertFile:     cfg.TLSCertFile,
			TLSKeyFile:      cfg.TLSKeyFile,
			MaxMessageBytes: cfg.MaxMessageBytes,
			IdleTimeout:     cfg.IdleTimeout,
			MaxConnections:  cfg.MaxConnections,
		}, processor))
	}
	return lookups, nil
}
