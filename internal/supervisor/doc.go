// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

/*
Package supervisor runs every long-lived Hivekeeper component under a suture v4
supervisor tree.

The tree is split into layers so a crash in one does not restart the others:

	RootSupervisor ("hivekeeper")
	├── StorageSupervisor ("storage-layer")
	│   └── kvstore.Store (value-log GC)
	├── IngestSupervisor ("ingest-layer")
	│   ├── collector.UDPListener
	│   └── collector.TCPListener
	├── PluginSupervisor ("plugin-layer")
	│   ├── installer.Worker
	│   └── alerting.Consumer (queue mode only)
	└── APISupervisor ("api-layer")
	    └── services.HTTPServerService

A listener that fails to bind is restarted with backoff while the API keeps
serving, and an install subprocess that panics the worker does not drop
telemetry.

Supervisor events (start, stop, failure, backoff) are logged through
sutureslog using the slog bridge from the logging package.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{})
	if err != nil {
	    return err
	}
	tree.AddIngestService(udpListener)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    return err
	}
*/
package supervisor
