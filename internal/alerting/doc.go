// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

/*
Package alerting delivers alerts raised by the rule engine to notification
plugins.

Two Dispatcher implementations exist:

  - Deliverer calls the notification plugin inline. Each plugin gets its
    own token bucket (golang.org/x/time/rate) and circuit breaker
    (sony/gobreaker), so a slow or failing channel cannot starve the others.
  - QueueDispatcher publishes the alert as JSON to a Watermill topic. A
    Consumer subscribed to that topic delivers through a Deliverer with
    retry, panic recovery, and a poison queue for alerts that keep failing.

The queue runs on an in-process gochannel by default. Building with
-tags nats switches NewPubSub to NATS JetStream through watermill-nats.
*/
package alerting
