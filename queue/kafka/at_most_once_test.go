// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/z5labs/nutrition/queue"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

type callRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *callRecorder) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *callRecorder) getCalls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.calls...)
}

func fetchesOf(fetches ...fetch) queue.Consumer[fetch] {
	return queue.ConsumerFunc[fetch](func(ctx context.Context) (fetch, error) {
		if len(fetches) == 0 {
			return fetch{}, queue.ErrEndOfQueue
		}
		f := fetches[0]
		fetches = fetches[1:]
		return f, nil
	})
}

func testFetch(partition int32, values ...string) fetch {
	records := make([]*kgo.Record, len(values))
	for i, v := range values {
		records[i] = &kgo.Record{
			Topic:     "nutrition",
			Partition: partition,
			Offset:    int64(i),
			Value:     []byte(v),
		}
	}
	return fetch{
		topicPartition: topicPartition{topic: "nutrition", partition: partition},
		records:        records,
	}
}

func TestAtMostOnce_ProcessQueue(t *testing.T) {
	t.Run("will commit records before processing them", func(t *testing.T) {
		recorder := &callRecorder{}

		acknowledger := queue.AcknowledgerFunc[[]*kgo.Record](func(ctx context.Context, records []*kgo.Record) error {
			recorder.record("commit")
			return nil
		})
		processor := queue.ProcessorFunc[Message](func(ctx context.Context, msg Message) error {
			recorder.record("process " + string(msg.Value))
			return nil
		})

		rt := newAtMostOnceOrchestrator("nutrition-consumer", processor).Orchestrate(
			fetchesOf(testFetch(0, "a", "b", "c")),
			acknowledger,
		)

		err := rt.ProcessQueue(context.Background())
		require.NoError(t, err)
		require.Equal(t, []string{"commit", "process a", "process b", "process c"}, recorder.getCalls())
	})

	t.Run("will process records one at a time", func(t *testing.T) {
		var inFlight, maxInFlight atomic.Int32
		processor := queue.ProcessorFunc[Message](func(ctx context.Context, msg Message) error {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				m := maxInFlight.Load()
				if n <= m || maxInFlight.CompareAndSwap(m, n) {
					break
				}
			}
			return nil
		})

		acknowledger := queue.AcknowledgerFunc[[]*kgo.Record](func(context.Context, []*kgo.Record) error {
			return nil
		})

		rt := newAtMostOnceOrchestrator("nutrition-consumer", processor).Orchestrate(
			fetchesOf(testFetch(0, "a", "b", "c", "d", "e"), testFetch(0, "f", "g")),
			acknowledger,
		)

		err := rt.ProcessQueue(context.Background())
		require.NoError(t, err)
		require.Equal(t, int32(1), maxInFlight.Load())
	})

	t.Run("will keep processing", func(t *testing.T) {
		t.Run("if the processor returns an error", func(t *testing.T) {
			var processed []string
			processor := queue.ProcessorFunc[Message](func(ctx context.Context, msg Message) error {
				processed = append(processed, string(msg.Value))
				if string(msg.Value) == "b" {
					return errors.New("malformed")
				}
				return nil
			})

			acknowledger := queue.AcknowledgerFunc[[]*kgo.Record](func(context.Context, []*kgo.Record) error {
				return nil
			})

			rt := newAtMostOnceOrchestrator("nutrition-consumer", processor).Orchestrate(
				fetchesOf(testFetch(0, "a", "b", "c")),
				acknowledger,
			)

			err := rt.ProcessQueue(context.Background())
			require.NoError(t, err)
			require.Equal(t, []string{"a", "b", "c"}, processed)
		})
	})

	t.Run("will skip the records of a fetch", func(t *testing.T) {
		t.Run("if they could not be committed", func(t *testing.T) {
			commits := 0
			acknowledger := queue.AcknowledgerFunc[[]*kgo.Record](func(context.Context, []*kgo.Record) error {
				commits++
				if commits == 1 {
					return errors.New("coordinator not available")
				}
				return nil
			})

			var processed []string
			processor := queue.ProcessorFunc[Message](func(ctx context.Context, msg Message) error {
				processed = append(processed, string(msg.Value))
				return nil
			})

			rt := newAtMostOnceOrchestrator("nutrition-consumer", processor).Orchestrate(
				fetchesOf(testFetch(0, "a", "b"), testFetch(0, "c")),
				acknowledger,
			)

			err := rt.ProcessQueue(context.Background())
			require.NoError(t, err)
			require.Equal(t, []string{"c"}, processed)
		})
	})

	t.Run("will stop without processing the rest of a fetch", func(t *testing.T) {
		t.Run("if the context is cancelled after committing", func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var processed []string
			processor := queue.ProcessorFunc[Message](func(ctx context.Context, msg Message) error {
				processed = append(processed, string(msg.Value))
				cancel()
				return nil
			})
			consumer := queue.ConsumerFunc[fetch](func(ctx context.Context) (fetch, error) {
				if ctx.Err() != nil {
					return fetch{}, ctx.Err()
				}
				return testFetch(0, "a", "b"), nil
			})
			acknowledger := queue.AcknowledgerFunc[[]*kgo.Record](func(ctx context.Context, records []*kgo.Record) error {
				return nil
			})

			rt := newAtMostOnceOrchestrator("nutrition-consumer", processor).Orchestrate(consumer, acknowledger)

			err := rt.ProcessQueue(ctx)
			require.NoError(t, err)
			require.Equal(t, []string{"a"}, processed)
		})
	})

	t.Run("will convert records into messages", func(t *testing.T) {
		var got Message
		processor := queue.ProcessorFunc[Message](func(ctx context.Context, msg Message) error {
			got = msg
			return nil
		})

		f := testFetch(2, "Date: 2024-06-10, Protein: 130.0")
		f.records[0].Key = []byte("2024-06-10")
		f.records[0].Headers = []kgo.RecordHeader{{Key: MessageIDHeader, Value: []byte("id-1")}}

		rt := newAtMostOnceOrchestrator("nutrition-consumer", processor).Orchestrate(
			fetchesOf(f),
			queue.AcknowledgerFunc[[]*kgo.Record](func(context.Context, []*kgo.Record) error { return nil }),
		)

		err := rt.ProcessQueue(context.Background())
		require.NoError(t, err)
		require.Equal(t, "2024-06-10", string(got.Key))
		require.Equal(t, "Date: 2024-06-10, Protein: 130.0", string(got.Value))
		require.Equal(t, int32(2), got.Partition)

		id, ok := got.Header(MessageIDHeader)
		require.True(t, ok)
		require.Equal(t, "id-1", string(id))
	})
}

func TestValues(t *testing.T) {
	t.Run("will pass the message value to the processor", func(t *testing.T) {
		var body []byte
		p := Values(queue.ProcessorFunc[[]byte](func(ctx context.Context, b []byte) error {
			body = b
			return nil
		}))

		err := p.Process(context.Background(), Message{Key: []byte("k"), Value: []byte("v")})
		require.NoError(t, err)
		require.Equal(t, "v", string(body))
	})
}
