// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/z5labs/nutrition/app"

	"github.com/stretchr/testify/require"
)

type captureHandler struct {
	slog.Handler
	records []slog.Record
}

func (h *captureHandler) Handle(ctx context.Context, record slog.Record) error {
	h.records = append(h.records, record)
	return nil
}

func errorAttr(t *testing.T, record slog.Record) error {
	t.Helper()

	var caughtErr error
	record.Attrs(func(a slog.Attr) bool {
		if a.Key != "error" {
			return true
		}

		err, ok := a.Value.Any().(error)
		require.True(t, ok, "expected attr to be error: %v", a.Value)
		caughtErr = err
		return false
	})
	return caughtErr
}

func TestRun(t *testing.T) {
	t.Run("will handle error", func(t *testing.T) {
		t.Run("if it fails to build the runtime", func(t *testing.T) {
			buildErr := errors.New("failed to build runtime")
			b := app.BuilderFunc[Runtime](func(ctx context.Context) (Runtime, error) {
				return Runtime{}, buildErr
			})

			logHandler := &captureHandler{
				Handler: slog.Default().Handler(),
			}

			err := Run(context.Background(), b, LogHandler(logHandler))
			require.ErrorIs(t, err, buildErr)

			records := logHandler.records
			require.Len(t, records, 1)
			require.ErrorIs(t, errorAttr(t, records[0]), buildErr)
		})

		t.Run("if the runtime returns an error while running", func(t *testing.T) {
			runtimeErr := errors.New("failed to process queue")
			qr := QueueRuntimeFunc(func(ctx context.Context) error {
				return runtimeErr
			})

			logHandler := &captureHandler{
				Handler: slog.Default().Handler(),
			}

			err := Run(context.Background(), Build(qr), LogHandler(logHandler))
			require.ErrorIs(t, err, runtimeErr)

			records := logHandler.records
			require.Len(t, records, 1)
			require.ErrorIs(t, errorAttr(t, records[0]), runtimeErr)
		})
	})

	t.Run("will not log anything", func(t *testing.T) {
		t.Run("if the queue is exhausted", func(t *testing.T) {
			consumer := ConsumerFunc[string](func(ctx context.Context) (string, error) {
				return "", ErrEndOfQueue
			})

			logHandler := &captureHandler{
				Handler: slog.Default().Handler(),
			}

			p := ProcessAtMostOnce(consumer, &mockProcessor[string]{}, &mockAcknowledger[string]{})
			err := Run(context.Background(), Build(p), LogHandler(logHandler))
			require.NoError(t, err)
			require.Empty(t, logHandler.records)
		})
	})
}

// Mock implementations for testing

type callRecorder struct {
	calls []string
	mu    sync.Mutex
}

func (r *callRecorder) record(method string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, method)
}

func (r *callRecorder) getCalls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.calls...)
}

type mockConsumer[T any] struct {
	consumeFunc func(context.Context) (T, error)
	callCount   int
	recorder    *callRecorder
}

func (m *mockConsumer[T]) Consume(ctx context.Context) (T, error) {
	m.callCount++
	if m.recorder != nil {
		m.recorder.record("Consume")
	}
	if m.consumeFunc != nil {
		return m.consumeFunc(ctx)
	}
	var zero T
	return zero, nil
}

type mockProcessor[T any] struct {
	processFunc func(context.Context, T) error
	callCount   int
	lastItem    T
	recorder    *callRecorder
}

func (m *mockProcessor[T]) Process(ctx context.Context, item T) error {
	m.callCount++
	m.lastItem = item
	if m.recorder != nil {
		m.recorder.record("Process")
	}
	if m.processFunc != nil {
		return m.processFunc(ctx, item)
	}
	return nil
}

type mockAcknowledger[T any] struct {
	ackFunc   func(context.Context, T) error
	callCount int
	lastItem  T
	recorder  *callRecorder
}

func (m *mockAcknowledger[T]) Acknowledge(ctx context.Context, item T) error {
	m.callCount++
	m.lastItem = item
	if m.recorder != nil {
		m.recorder.record("Acknowledge")
	}
	if m.ackFunc != nil {
		return m.ackFunc(ctx, item)
	}
	return nil
}

func TestProcessAtMostOnce(t *testing.T) {
	t.Run("will process item successfully", func(t *testing.T) {
		t.Run("when all operations succeed", func(t *testing.T) {
			ctx := context.Background()
			recorder := &callRecorder{}

			consumer := &mockConsumer[string]{
				consumeFunc: func(ctx context.Context) (string, error) {
					return "test-message", nil
				},
				recorder: recorder,
			}

			processor := &mockProcessor[string]{
				recorder: recorder,
			}

			acknowledger := &mockAcknowledger[string]{
				recorder: recorder,
			}

			p := ProcessAtMostOnce(consumer, processor, acknowledger)
			err := p.ProcessItem(ctx)

			require.NoError(t, err)
			require.Equal(t, 1, consumer.callCount)
			require.Equal(t, 1, processor.callCount)
			require.Equal(t, 1, acknowledger.callCount)
			require.Equal(t, "test-message", processor.lastItem)
			require.Equal(t, "test-message", acknowledger.lastItem)

			// Verify call order: Consume → Acknowledge → Process
			calls := recorder.getCalls()
			require.Equal(t, []string{"Consume", "Acknowledge", "Process"}, calls)
		})
	})

	t.Run("will handle error", func(t *testing.T) {
		t.Run("if consumer returns an error", func(t *testing.T) {
			ctx := context.Background()
			consumerErr := errors.New("consume failed")

			consumer := &mockConsumer[string]{
				consumeFunc: func(ctx context.Context) (string, error) {
					return "", consumerErr
				},
			}

			processor := &mockProcessor[string]{}
			acknowledger := &mockAcknowledger[string]{}

			p := ProcessAtMostOnce(consumer, processor, acknowledger)
			err := p.ProcessItem(ctx)

			require.ErrorIs(t, err, consumerErr)
			require.Equal(t, 1, consumer.callCount)
			require.Equal(t, 0, processor.callCount)
			require.Equal(t, 0, acknowledger.callCount)
		})

		t.Run("if consumer returns ErrEndOfQueue", func(t *testing.T) {
			ctx := context.Background()

			consumer := &mockConsumer[string]{
				consumeFunc: func(ctx context.Context) (string, error) {
					return "", ErrEndOfQueue
				},
			}

			processor := &mockProcessor[string]{}
			acknowledger := &mockAcknowledger[string]{}

			p := ProcessAtMostOnce(consumer, processor, acknowledger)
			err := p.ProcessItem(ctx)

			require.ErrorIs(t, err, ErrEndOfQueue)
			require.Equal(t, 1, consumer.callCount)
			require.Equal(t, 0, processor.callCount)
			require.Equal(t, 0, acknowledger.callCount)
		})

		t.Run("if acknowledger returns an error", func(t *testing.T) {
			ctx := context.Background()
			ackErr := errors.New("acknowledge failed")

			consumer := &mockConsumer[string]{
				consumeFunc: func(ctx context.Context) (string, error) {
					return "test-message", nil
				},
			}

			processor := &mockProcessor[string]{}

			acknowledger := &mockAcknowledger[string]{
				ackFunc: func(ctx context.Context, item string) error {
					return ackErr
				},
			}

			p := ProcessAtMostOnce(consumer, processor, acknowledger)
			err := p.ProcessItem(ctx)

			require.ErrorIs(t, err, ackErr)
			require.Equal(t, 1, consumer.callCount)
			require.Equal(t, 1, acknowledger.callCount)
			// Processor should NOT be called when acknowledge fails
			require.Equal(t, 0, processor.callCount)
		})

		t.Run("if processor returns an error", func(t *testing.T) {
			ctx := context.Background()
			processErr := errors.New("process failed")

			consumer := &mockConsumer[string]{
				consumeFunc: func(ctx context.Context) (string, error) {
					return "test-message", nil
				},
			}

			processor := &mockProcessor[string]{
				processFunc: func(ctx context.Context, item string) error {
					return processErr
				},
			}

			acknowledger := &mockAcknowledger[string]{}

			p := ProcessAtMostOnce(consumer, processor, acknowledger)
			err := p.ProcessItem(ctx)

			require.ErrorIs(t, err, processErr)
			require.Equal(t, 1, consumer.callCount)
			// Message was already acknowledged (at-most-once semantics)
			require.Equal(t, 1, acknowledger.callCount)
			require.Equal(t, 1, processor.callCount)
		})
	})
}


func TestAtMostOnceProcessor_ProcessQueue(t *testing.T) {
	t.Run("will keep consuming", func(t *testing.T) {
		t.Run("if the processor returns an error", func(t *testing.T) {
			items := []string{"a", "b", "c"}
			consumer := ConsumerFunc[string](func(ctx context.Context) (string, error) {
				if len(items) == 0 {
					return "", ErrEndOfQueue
				}
				item := items[0]
				items = items[1:]
				return item, nil
			})

			var processed []string
			processor := ProcessorFunc[string](func(ctx context.Context, item string) error {
				processed = append(processed, item)
				if item == "b" {
					return errors.New("bad item")
				}
				return nil
			})

			acknowledger := &mockAcknowledger[string]{}

			p := ProcessAtMostOnce(consumer, processor, acknowledger)
			err := p.ProcessQueue(context.Background())

			require.NoError(t, err)
			require.Equal(t, []string{"a", "b", "c"}, processed)
			require.Equal(t, 3, acknowledger.callCount)
		})
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the acknowledger fails", func(t *testing.T) {
			ackErr := errors.New("commit failed")
			consumer := ConsumerFunc[string](func(ctx context.Context) (string, error) {
				return "a", nil
			})
			acknowledger := AcknowledgerFunc[string](func(ctx context.Context, s string) error {
				return ackErr
			})
			processor := &mockProcessor[string]{}

			p := ProcessAtMostOnce(consumer, processor, acknowledger)
			err := p.ProcessQueue(context.Background())

			require.ErrorIs(t, err, ackErr)
			require.Equal(t, 0, processor.callCount)
		})

		t.Run("if the context is cancelled", func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var mu sync.Mutex
			count := 0
			consumer := ConsumerFunc[string](func(ctx context.Context) (string, error) {
				mu.Lock()
				defer mu.Unlock()
				count++
				if count == 2 {
					cancel()
				}
				return "a", nil
			})

			p := ProcessAtMostOnce(consumer, &mockProcessor[string]{}, &mockAcknowledger[string]{})
			err := p.ProcessQueue(ctx)

			require.ErrorIs(t, err, context.Canceled)
			require.Equal(t, 2, count)
		})
	})
}
