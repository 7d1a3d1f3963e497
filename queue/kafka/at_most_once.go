// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/z5labs/nutrition/queue"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// atMostOnceOrchestrator commits each fetch before any of its records are
// processed. A record whose processing fails is therefore never redelivered.
type atMostOnceOrchestrator struct {
	groupID   string
	processor queue.Processor[Message]
}

func newAtMostOnceOrchestrator(groupID string, processor queue.Processor[Message]) partitionOrchestrator {
	return atMostOnceOrchestrator{
		groupID:   groupID,
		processor: processor,
	}
}

func (o atMostOnceOrchestrator) Orchestrate(
	consumer queue.Consumer[fetch],
	acknowledger queue.Acknowledger[[]*kgo.Record],
) queue.QueueRuntime {
	log := logger().With(GroupIDAttr(o.groupID))
	metrics := initConsumerMetrics(log)

	return atMostOncePartitionRuntime{
		log:      log,
		consumer: consumer,
		processor: recordProcessor{
			log:               log,
			tracer:            tracer(),
			processor:         o.processor,
			messagesProcessed: metrics.messagesProcessed,
		},
		acknowledger:      acknowledger,
		messagesCommitted: metrics.messagesCommitted,
	}
}

type atMostOncePartitionRuntime struct {
	log               *slog.Logger
	consumer          queue.Consumer[fetch]
	processor         recordProcessor
	acknowledger      queue.Acknowledger[[]*kgo.Record]
	messagesCommitted metric.Int64Counter
}

// ProcessQueue commits each fetch and then processes its records in offset
// order. It returns nil once the partition is released or ctx is cancelled.
func (rt atMostOncePartitionRuntime) ProcessQueue(ctx context.Context) error {
	for {
		f, err := rt.consumer.Consume(ctx)
		if errors.Is(err, queue.ErrEndOfQueue) {
			rt.log.InfoContext(ctx, "encountered end of queue")
			return nil
		}
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil
		}
		if err != nil {
			return err
		}

		if !rt.commit(ctx, f) {
			continue
		}
		for _, record := range f.records {
			if ctx.Err() != nil {
				rt.log.WarnContext(ctx, "context cancelled after committing records", slog.Any("error", ctx.Err()))
				return nil
			}
			rt.processor.process(ctx, record)
		}
	}
}

// commit reports whether the records of f were committed. Uncommitted
// records are skipped so whichever member owns the partition next can
// receive them.
func (rt atMostOncePartitionRuntime) commit(ctx context.Context, f fetch) bool {
	err := rt.acknowledger.Acknowledge(ctx, f.records)
	if err != nil {
		rt.log.ErrorContext(
			ctx,
			"failed to commit kafka records",
			TopicAttr(f.topic),
			PartitionAttr(f.partition),
			slog.Any("error", err),
		)
		return false
	}

	rt.messagesCommitted.Add(ctx, int64(len(f.records)), metric.WithAttributes(
		semconv.MessagingSystemKafka,
		semconv.MessagingDestinationName(f.topic),
		semconv.MessagingDestinationPartitionID(strconv.FormatInt(int64(f.partition), 10)),
	))
	return true
}
