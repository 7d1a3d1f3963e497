// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/z5labs/nutrition/queue"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
)

type recordProcessor struct {
	log               *slog.Logger
	tracer            trace.Tracer
	processor         queue.Processor[Message]
	messagesProcessed metric.Int64Counter
}

func newMessage(record *kgo.Record) Message {
	headers := make([]Header, len(record.Headers))
	for i, hdr := range record.Headers {
		headers[i] = Header{
			Key:   hdr.Key,
			Value: hdr.Value,
		}
	}

	return Message{
		Headers:   headers,
		Key:       record.Key,
		Value:     record.Value,
		Timestamp: record.Timestamp,
		Topic:     record.Topic,
		Partition: record.Partition,
		Offset:    record.Offset,
	}
}

func (rp recordProcessor) process(ctx context.Context, record *kgo.Record) {
	topicAttr := semconv.MessagingDestinationName(record.Topic)
	partitionIDAttr := semconv.MessagingDestinationPartitionID(strconv.FormatInt(int64(record.Partition), 10))
	spanOpts := []trace.SpanStartOption{
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationTypeProcess,
			topicAttr,
			partitionIDAttr,
			semconv.MessagingKafkaOffset(int(record.Offset)),
		),
	}

	if record.Context != nil {
		if s := trace.SpanContextFromContext(record.Context); s.IsValid() {
			spanOpts = append(spanOpts, trace.WithLinks(trace.Link{SpanContext: s}))
		}
	}

	spanCtx, span := rp.tracer.Start(ctx, "process "+record.Topic, spanOpts...)
	defer span.End()

	msg := newMessage(record)
	if id, ok := msg.Header(MessageIDHeader); ok {
		span.SetAttributes(semconv.MessagingMessageID(string(id)))
	}

	err := rp.processor.Process(spanCtx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		rp.log.ErrorContext(
			spanCtx,
			"failed to process kafka record",
			TopicAttr(record.Topic),
			PartitionAttr(record.Partition),
			OffsetAttr(record.Offset),
			slog.Any("error", err),
		)
	}

	rp.messagesProcessed.Add(spanCtx, 1, metric.WithAttributes(
		semconv.MessagingSystemKafka,
		topicAttr,
		partitionIDAttr,
		attribute.String("messaging.process.status", processStatus(err)),
	))
}

func processStatus(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
