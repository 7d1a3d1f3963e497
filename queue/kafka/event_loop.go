// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"context"
	"log/slog"

	"github.com/z5labs/nutrition/queue"

	"github.com/sourcegraph/conc/pool"
	"github.com/twmb/franz-go/pkg/kgo"
)

type topicPartition struct {
	topic     string
	partition int32
}

func (tp topicPartition) attrs() []any {
	return []any{TopicAttr(tp.topic), PartitionAttr(tp.partition)}
}

type fetch struct {
	topicPartition

	records []*kgo.Record
}

// partitionOrchestrator builds the runtime which owns a single assigned partition.
type partitionOrchestrator interface {
	Orchestrate(queue.Consumer[fetch], queue.Acknowledger[[]*kgo.Record]) queue.QueueRuntime
}

type assignedPartition struct {
	topicPartition

	orchestrator partitionOrchestrator
	committer    recordsCommitter
}

type releaseReason string

const (
	partitionLost    releaseReason = "lost"
	partitionRevoked releaseReason = "revoked"
)

type releasedPartition struct {
	topicPartition

	reason releaseReason
}

// eventLoop owns topicPartitions. Group rebalance callbacks and the fetch
// poller only talk to it over channels.
type eventLoop struct {
	log *slog.Logger

	fetches  chan kgo.FetchTopic
	assigned chan assignedPartition
	released chan releasedPartition

	topicOrchestrators map[string]partitionOrchestrator
	topicPartitions    map[topicPartition]chan fetch
	partitionPool      *pool.ContextPool
}

func newEventLoop(ctx context.Context, log *slog.Logger, topics map[string]partitionOrchestrator) eventLoop {
	return eventLoop{
		log:                log,
		fetches:            make(chan kgo.FetchTopic),
		assigned:           make(chan assignedPartition),
		released:           make(chan releasedPartition),
		topicOrchestrators: topics,
		topicPartitions:    make(map[topicPartition]chan fetch),
		partitionPool:      pool.New().WithContext(ctx),
	}
}

type onPartitionCallback[C any] func(ctx context.Context, client C, partitions map[string][]int32)

type recordsCommitter interface {
	CommitRecords(context.Context, ...*kgo.Record) error
}

// send delivers v unless ctx is done first.
func send[T any](ctx context.Context, ch chan<- T, v T) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- v:
		return true
	}
}

func forEachPartition(partitions map[string][]int32, f func(topicPartition) bool) {
	for topic, ids := range partitions {
		for _, id := range ids {
			if !f(topicPartition{topic: topic, partition: id}) {
				return
			}
		}
	}
}

func (loop eventLoop) onPartitionsAssigned(ctx context.Context) onPartitionCallback[recordsCommitter] {
	return func(_ context.Context, client recordsCommitter, assigned map[string][]int32) {
		forEachPartition(assigned, func(tp topicPartition) bool {
			orchestrator, ok := loop.topicOrchestrators[tp.topic]
			if !ok {
				return true
			}
			return send(ctx, loop.assigned, assignedPartition{
				topicPartition: tp,
				orchestrator:   orchestrator,
				committer:      client,
			})
		})
	}
}

func (loop eventLoop) onPartitionsReleased(ctx context.Context, reason releaseReason) onPartitionCallback[*kgo.Client] {
	return func(_ context.Context, _ *kgo.Client, released map[string][]int32) {
		forEachPartition(released, func(tp topicPartition) bool {
			return send(ctx, loop.released, releasedPartition{topicPartition: tp, reason: reason})
		})
	}
}

func (loop eventLoop) onPartitionsLost(ctx context.Context) onPartitionCallback[*kgo.Client] {
	return loop.onPartitionsReleased(ctx, partitionLost)
}

func (loop eventLoop) onPartitionsRevoked(ctx context.Context) onPartitionCallback[*kgo.Client] {
	return loop.onPartitionsReleased(ctx, partitionRevoked)
}

type pollFetcher interface {
	PollFetches(context.Context) kgo.Fetches
}

// fetchRecords polls client until ctx is done, forwarding every fetched
// topic to the loop.
func (loop eventLoop) fetchRecords(client pollFetcher) func(context.Context) error {
	return func(ctx context.Context) error {
		for ctx.Err() == nil {
			fetches := client.PollFetches(ctx)
			for _, f := range fetches {
				for _, topic := range f.Topics {
					if !send(ctx, loop.fetches, topic) {
						break
					}
				}
			}
		}

		loop.log.InfoContext(ctx, "stopped fetching", slog.Any("error", ctx.Err()))
		return nil
	}
}

func (loop eventLoop) run(ctx context.Context) error {
	for {
		err := loop.tick(ctx)
		if err == nil {
			continue
		}
		loop.log.InfoContext(ctx, "shutting down event loop", slog.Any("error", err))
		return loop.shutdown()
	}
}

func (loop eventLoop) shutdown() error {
	for tp, ch := range loop.topicPartitions {
		close(ch)
		delete(loop.topicPartitions, tp)
	}
	return loop.partitionPool.Wait()
}

func (loop eventLoop) tick(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case ap := <-loop.assigned:
		return loop.handleAssignedPartition(ctx, ap)
	case rp := <-loop.released:
		return loop.releasePartition(ctx, rp.topicPartition, rp.reason)
	case ft := <-loop.fetches:
		return loop.handleFetch(ctx, ft)
	}
}

// channelConsumer hands a partition runtime the fetches routed to it. A
// closed channel means the partition was released.
type channelConsumer struct {
	fetches <-chan fetch
}

func (c *channelConsumer) Consume(ctx context.Context) (fetch, error) {
	select {
	case <-ctx.Done():
		return fetch{}, ctx.Err()
	case f, ok := <-c.fetches:
		if !ok {
			return fetch{}, queue.ErrEndOfQueue
		}
		return f, nil
	}
}

type committerAcknowledger struct {
	committer recordsCommitter
}

func (a *committerAcknowledger) Acknowledge(ctx context.Context, records []*kgo.Record) error {
	return a.committer.CommitRecords(ctx, records...)
}

func (loop eventLoop) handleAssignedPartition(ctx context.Context, ap assignedPartition) error {
	loop.log.InfoContext(ctx, "topic partition assigned", ap.attrs()...)

	ch := make(chan fetch)
	loop.topicPartitions[ap.topicPartition] = ch

	rt := ap.orchestrator.Orchestrate(
		&channelConsumer{fetches: ch},
		&committerAcknowledger{committer: ap.committer},
	)
	loop.partitionPool.Go(rt.ProcessQueue)
	return nil
}

func (loop eventLoop) handleLostPartition(ctx context.Context, tp topicPartition) error {
	return loop.releasePartition(ctx, tp, partitionLost)
}

func (loop eventLoop) handleRevokedPartition(ctx context.Context, tp topicPartition) error {
	return loop.releasePartition(ctx, tp, partitionRevoked)
}

// releasePartition lets the partition runtime finish the fetch it holds and
// then stop.
func (loop eventLoop) releasePartition(ctx context.Context, tp topicPartition, reason releaseReason) error {
	loop.log.InfoContext(ctx, "topic partition "+string(reason), tp.attrs()...)

	ch, ok := loop.topicPartitions[tp]
	if !ok {
		loop.log.WarnContext(ctx, "released topic partition was never assigned", tp.attrs()...)
		return nil
	}
	close(ch)
	delete(loop.topicPartitions, tp)
	return nil
}

// handleFetch routes each partition's records to its runtime. Records for a
// partition this loop does not own are dropped.
func (loop eventLoop) handleFetch(ctx context.Context, ft kgo.FetchTopic) error {
	for _, p := range ft.Partitions {
		tp := topicPartition{topic: ft.Topic, partition: p.Partition}

		ch, ok := loop.topicPartitions[tp]
		if !ok {
			loop.log.WarnContext(ctx, "dropping records for unowned topic partition", tp.attrs()...)
			continue
		}
		if !send(ctx, ch, fetch{topicPartition: tp, records: p.Records}) {
			return ctx.Err()
		}
	}
	return nil
}
