//go:build testcontainers

// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/z5labs/nutrition/queue"

	"github.com/stretchr/testify/require"
)

type messageLog struct {
	mu       sync.Mutex
	messages []Message
}

func (l *messageLog) Process(ctx context.Context, msg Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
	return nil
}

func (l *messageLog) values() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	values := make([]string, len(l.messages))
	for i, msg := range l.messages {
		values[i] = string(msg.Value)
	}
	return values
}

func startRuntime(rt Runtime) (context.CancelFunc, <-chan error) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- rt.ProcessQueue(ctx)
	}()
	return cancel, done
}

func TestRuntime_ProcessQueue(t *testing.T) {
	brokers := setupKafkaContainer(t)

	t.Run("will consume messages in publish order", func(t *testing.T) {
		topic := "nutrition-order"

		var values []string
		for i := range 10 {
			values = append(values, fmt.Sprintf("Date: 2024-06-%02d, Protein: %d.0", i+1, 100+i))
		}
		publishValues(t, brokers, topic, values...)

		consumed := &messageLog{}
		cancel, done := startRuntime(newTestRuntime(t, brokers, "nutrition-order-group", topic, consumed))

		require.Eventually(t, func() bool {
			return len(consumed.values()) >= len(values)
		}, 20*time.Second, 100*time.Millisecond)

		cancel()
		requireStopped(t, done)

		require.Equal(t, values, consumed.values())

		consumed.mu.Lock()
		defer consumed.mu.Unlock()
		for _, msg := range consumed.messages {
			_, ok := msg.Header(MessageIDHeader)
			require.True(t, ok, "every message should carry a message id")
		}
	})

	t.Run("will not redeliver a message whose processing failed", func(t *testing.T) {
		topic := "nutrition-at-most-once"
		groupID := "nutrition-at-most-once-group"

		publishValues(t, brokers, topic, "a", "b", "c")

		var mu sync.Mutex
		var attempts []string
		failing := queue.ProcessorFunc[Message](func(ctx context.Context, msg Message) error {
			mu.Lock()
			defer mu.Unlock()
			attempts = append(attempts, string(msg.Value))
			return errors.New("processing failed")
		})

		cancel, done := startRuntime(newTestRuntime(t, brokers, groupID, topic, failing))
		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(attempts) >= 3
		}, 20*time.Second, 100*time.Millisecond)

		cancel()
		requireStopped(t, done)

		publishValues(t, brokers, topic, "d")

		consumed := &messageLog{}
		cancel, done = startRuntime(newTestRuntime(t, brokers, groupID, topic, consumed))
		require.Eventually(t, func() bool {
			return len(consumed.values()) >= 1
		}, 20*time.Second, 100*time.Millisecond)

		cancel()
		requireStopped(t, done)

		require.Equal(t, []string{"d"}, consumed.values())
	})
}

func TestDeclarer_Declare_Existing(t *testing.T) {
	brokers := setupKafkaContainer(t)

	t.Run("will succeed", func(t *testing.T) {
		t.Run("if the topic already exists", func(t *testing.T) {
			ctx := context.Background()
			d := NewDeclarer(newTestClient(t, brokers))

			require.NoError(t, d.Declare(ctx, "nutrition"))
			require.NoError(t, d.Declare(ctx, "nutrition"))
		})
	})
}
