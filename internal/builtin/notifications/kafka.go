// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"github.com/tomtom215/hivekeeper/internal/plugin"
	"github.com/tomtom215/hivekeeper/internal/validation"
)

// KafkaID is the catalog id of the Kafka notification.
const KafkaID = "builtin.kafka"

// KafkaConfig selects the brokers and topic alerts are written to.
type KafkaConfig struct {
	Brokers      []string `json:"brokers" validate:"required,min=1,dive,hostname_port"`
	Topic        string   `json:"topic" validate:"required"`
	RequiredAcks string   `json:"required_acks" validate:"omitempty,oneof=none one all"`
}

func (c KafkaConfig) acks() kafka.RequiredAcks {
	switch c.RequiredAcks {
	case "none":
		return kafka.RequireNone
	case "one":
		return kafka.RequireOne
	}
	return kafka.RequireAll
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func newKafkaWriter(c KafkaConfig) messageWriter {
	return &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        c.Topic,
		RequiredAcks: c.acks(),
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
	}
}

// Kafka writes each alert as a JSON message keyed by service, so one
// service's alerts stay ordered within a partition.
type Kafka struct {
	plugin.NoInstallHooks
	cfg       KafkaConfig
	newWriter func(KafkaConfig) messageWriter
}

// NewKafka is the catalog factory for Kafka.
func NewKafka(cfg map[string]any) (any, error) {
	var c KafkaConfig
	if err := plugin.DecodeConfig(cfg, &c); err != nil {
		return nil, err
	}
	return &Kafka{cfg: c, newWriter: newKafkaWriter}, nil
}

func (k *Kafka) RequiresExtraConfig() bool { return true }

func (k *Kafka) ExtraConfigSample() map[string]any {
	return map[string]any{"brokers": []string{"redpanda:9092"}, "topic": "honeypot-alerts", "required_acks": "all"}
}

func (k *Kafka) ValidateConfig(cfg map[string]any) error {
	c := k.cfg
	return plugin.ValidateConfig(cfg, &c)
}

func (k *Kafka) Process(ctx context.Context, msg plugin.Message) error {
	if err := validation.Struct(&k.cfg); err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("kafka: encode message: %w", err)
	}
	w := k.newWriter(k.cfg)
	defer w.Close()

	err = w.WriteMessages(ctx, kafka.Message{
		Key:     []byte(msg.Service),
		Value:   payload,
		Time:    msg.CreatedAt,
		Headers: []kafka.Header{{Key: "alert_id", Value: []byte(msg.ID)}},
	})
	if err != nil {
		return fmt.Errorf("kafka: write to %s: %w", k.cfg.Topic, err)
	}
	return nil
}
