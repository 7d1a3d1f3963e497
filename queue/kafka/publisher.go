// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// MessageIDHeader carries a unique identifier for every published message.
const MessageIDHeader = "message-id"

type producer interface {
	ProduceSync(context.Context, ...*kgo.Record) kgo.ProduceResults
}

// Publisher synchronously produces messages to a single topic.
type Publisher struct {
	log     *slog.Logger
	client  producer
	topic   string
	metrics producerMetrics
	newID   func() string
}

// NewPublisher returns a [Publisher] which produces to topic using client.
func NewPublisher(client producer, topic string) *Publisher {
	log := logger().With(TopicAttr(topic))

	return &Publisher{
		log:     log,
		client:  client,
		topic:   topic,
		metrics: initProducerMetrics(log),
		newID:   uuid.NewString,
	}
}

// Publish implements the [queue.Publisher] interface.
//
// A [MessageIDHeader] is added when msg does not already have one. Publish
// returns once the record has been acknowledged by the brokers.
func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	id, ok := msg.Header(MessageIDHeader)
	if !ok {
		id = []byte(p.newID())
		msg.Headers = append(msg.Headers, Header{Key: MessageIDHeader, Value: id})
	}

	record := &kgo.Record{
		Topic:   p.topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: make([]kgo.RecordHeader, len(msg.Headers)),
	}
	for i, h := range msg.Headers {
		record.Headers[i] = kgo.RecordHeader{Key: h.Key, Value: h.Value}
	}

	err := p.client.ProduceSync(ctx, record).FirstErr()
	if err != nil {
		return fmt.Errorf("kafka: publish to %s: %w", p.topic, err)
	}

	p.metrics.messagesPublished.Add(ctx, 1, metric.WithAttributes(
		semconv.MessagingSystemKafka,
		semconv.MessagingDestinationName(p.topic),
	))
	p.log.DebugContext(
		ctx,
		"published kafka record",
		KeyAttr(msg.Key),
		MessageIDAttr(string(id)),
		PartitionAttr(record.Partition),
		OffsetAttr(record.Offset),
	)
	return nil
}
