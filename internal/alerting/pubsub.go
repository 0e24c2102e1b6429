// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package alerting

import (
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/hivekeeper/internal/config"
	"github.com/tomtom215/hivekeeper/internal/logging"
)

// ErrNATSUnavailable is returned by NewPubSub when the nats transport is
// requested from a binary built without the nats tag.
var ErrNATSUnavailable = errors.New("nats transport requires building with -tags nats")

// PubSub is the Watermill transport carrying queued alerts.
type PubSub struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// NewLogger adapts the process logger for Watermill.
func NewLogger() watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logging.NewSlogLogger("alerting"))
}

// NewPubSub builds the transport selected by cfg.Transport.
func NewPubSub(cfg config.AlertsConfig, logger watermill.LoggerAdapter) (*PubSub, error) {
	switch cfg.Transport {
	case "", "gochannel":
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
		return &PubSub{Publisher: ch, Subscriber: ch}, nil
	case "nats":
		return newNATSPubSub(cfg, logger)
	}
	return nil, fmt.Errorf("unknown alert transport %q", cfg.Transport)
}

// Close closes the publisher and, if it is a separate object, the subscriber.
func (p *PubSub) Close() error {
	err := p.Publisher.Close()
	if any(p.Subscriber) != any(p.Publisher) {
		err = errors.Join(err, p.Subscriber.Close())
	}
	return err
}
