// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package memory provides an in-process broker of named FIFO queues. The
// cmd tests use it in place of Kafka.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/z5labs/nutrition/queue"
)

// ErrQueueNotDeclared is returned when publishing to or consuming from a
// queue which has not been declared.
var ErrQueueNotDeclared = errors.New("memory: queue not declared")

// ErrBrokerClosed is returned when publishing after the broker was closed.
var ErrBrokerClosed = errors.New("memory: broker closed")

// Broker holds named queues of message bodies.
type Broker struct {
	mu     sync.Mutex
	queues map[string]*fifo
	closed bool
}

// NewBroker returns an empty [Broker].
func NewBroker() *Broker {
	return &Broker{
		queues: make(map[string]*fifo),
	}
}

// Declare implements the [queue.Declarer] interface.
func (b *Broker) Declare(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBrokerClosed
	}
	if _, ok := b.queues[name]; ok {
		return nil
	}
	b.queues[name] = newFIFO()
	return nil
}

func (b *Broker) lookup(name string) (*fifo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrQueueNotDeclared, name)
	}
	return q, nil
}

// Len returns the number of messages waiting in the named queue.
func (b *Broker) Len(name string) int {
	q, err := b.lookup(name)
	if err != nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close marks every queue as closed. Consumers drain the remaining messages
// and then receive [queue.ErrEndOfQueue].
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for _, q := range b.queues {
		q.close()
	}
	return nil
}

// Publisher returns a [queue.Publisher] appending to the named queue.
func (b *Broker) Publisher(name string) queue.Publisher[[]byte] {
	return queue.PublisherFunc[[]byte](func(ctx context.Context, body []byte) error {
		q, err := b.lookup(name)
		if err != nil {
			return err
		}
		return q.push(body)
	})
}

// Consumer returns a [queue.Consumer] receiving from the named queue in
// publish order. Consume blocks until a message is available.
func (b *Broker) Consumer(name string) queue.Consumer[[]byte] {
	return queue.ConsumerFunc[[]byte](func(ctx context.Context) ([]byte, error) {
		q, err := b.lookup(name)
		if err != nil {
			return nil, err
		}
		return q.pop(ctx)
	})
}

// Acknowledger returns a [queue.Acknowledger] for messages received from
// a [Broker]. Messages are removed from their queue once consumed so there
// is nothing left to acknowledge.
func Acknowledger() queue.Acknowledger[[]byte] {
	return queue.AcknowledgerFunc[[]byte](func(context.Context, []byte) error {
		return nil
	})
}

type fifo struct {
	mu     sync.Mutex
	items  [][]byte
	notify chan struct{}
	closed bool
}

func newFIFO() *fifo {
	return &fifo{
		notify: make(chan struct{}),
	}
}

func (q *fifo) push(body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrBrokerClosed
	}

	q.items = append(q.items, append([]byte(nil), body...))
	close(q.notify)
	q.notify = make(chan struct{})
	return nil
}

func (q *fifo) pop(ctx context.Context) ([]byte, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, queue.ErrEndOfQueue
		}
		notify := q.notify
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-notify:
		}
	}
}

func (q *fifo) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	close(q.notify)
}
