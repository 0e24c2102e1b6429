// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"

	"github.com/tomtom215/hivekeeper/internal/config"
	"github.com/tomtom215/hivekeeper/internal/logging"
	"github.com/tomtom215/hivekeeper/internal/metrics"
)

const metadataNotification = "notification"

// QueueDispatcher publishes alerts to a Watermill topic for a Consumer.
type QueueDispatcher struct {
	pub   message.Publisher
	topic string
	ready <-chan struct{}
}

// NewQueueDispatcher creates a dispatcher publishing to topic. If ready is
// non-nil, Dispatch waits for it to close before the first publish so that
// alerts are not lost on transports that drop messages nobody subscribed to.
func NewQueueDispatcher(pub message.Publisher, topic string, ready <-chan struct{}) *QueueDispatcher {
	return &QueueDispatcher{pub: pub, topic: topic, ready: ready}
}

// Dispatch serializes a and publishes it. Delivery happens asynchronously.
func (q *QueueDispatcher) Dispatch(ctx context.Context, a Alert) error {
	if q.ready != nil {
		select {
		case <-q.ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	msg := message.NewMessage(a.ID, payload)
	msg.Metadata.Set(metadataNotification, a.Notification)
	if err := q.pub.Publish(q.topic, msg); err != nil {
		metrics.RecordNotification(a.Notification, "publish_failed")
		return fmt.Errorf("publish alert %s: %w", a.ID, err)
	}
	metrics.RecordNotification(a.Notification, "queued")
	return nil
}

// Consumer delivers queued alerts. It implements suture.Service; each run
// builds a fresh Watermill router.
type Consumer struct {
	cfg       config.AlertsConfig
	sub       message.Subscriber
	poison    message.Publisher
	deliverer *Deliverer
	logger    watermill.LoggerAdapter

	readyOnce sync.Once
	ready     chan struct{}
}

// NewConsumer creates a consumer reading cfg.Topic from sub. Alerts that
// still fail after cfg.RetryMax retries are published to cfg.PoisonTopic
// on poison, when both are set.
func NewConsumer(cfg config.AlertsConfig, sub message.Subscriber, poison message.Publisher, d *Deliverer, logger watermill.LoggerAdapter) *Consumer {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &Consumer{
		cfg:       cfg,
		sub:       sub,
		poison:    poison,
		deliverer: d,
		logger:    logger,
		ready:     make(chan struct{}),
	}
}

// Ready is closed once the consumer has subscribed for the first time.
func (c *Consumer) Ready() <-chan struct{} {
	return c.ready
}

func (c *Consumer) newRouter() (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, c.logger)
	if err != nil {
		return nil, fmt.Errorf("create alert router: %w", err)
	}

	// First added is outermost: poison queue sees the error only after
	// every retry is spent, and Retry sees panics as errors.
	if c.poison != nil && c.cfg.PoisonTopic != "" {
		pq, err := middleware.PoisonQueue(c.poison, c.cfg.PoisonTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue: %w", err)
		}
		router.AddMiddleware(pq)
	}
	retry := middleware.Retry{
		MaxRetries:      c.cfg.RetryMax,
		InitialInterval: c.cfg.RetryInitialInterval,
		MaxInterval:     30 * time.Second,
		Multiplier:      2,
		Logger:          c.logger,
	}
	router.AddMiddleware(retry.Middleware, middleware.Recoverer)

	router.AddConsumerHandler("alert-delivery", c.cfg.Topic, c.sub, c.handle)
	return router, nil
}

func (c *Consumer) handle(msg *message.Message) error {
	var a Alert
	if err := json.Unmarshal(msg.Payload, &a); err != nil {
		// Retrying cannot fix a payload that does not decode.
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Discarding undecodable alert")
		metrics.RecordNotification(msg.Metadata.Get(metadataNotification), "malformed")
		return nil
	}
	return c.deliverer.Deliver(msg.Context(), a)
}

// Serve runs the router until ctx is canceled.
func (c *Consumer) Serve(ctx context.Context) error {
	router, err := c.newRouter()
	if err != nil {
		return err
	}
	go func() {
		select {
		case <-router.Running():
			c.readyOnce.Do(func() { close(c.ready) })
		case <-ctx.Done():
		}
	}()
	if err := router.Run(ctx); err != nil {
		return fmt.Errorf("alert router: %w", err)
	}
	return ctx.Err()
}

func (c *Consumer) String() string {
	return "alert-consumer"
}
