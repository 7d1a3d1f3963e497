// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package queue provides the abstractions shared by the nutrition producer
// and consumer for talking to a message broker.
//
// Consuming is split into three phases:
//
//   - Consumer: retrieves messages from a queue
//   - Processor: executes business logic on messages
//   - Acknowledger: confirms receipt back to the queue
//
// Producing uses a [Publisher] and a [Declarer], which creates the named
// queue if it does not already exist.
//
// # Processing Semantics
//
// [ProcessAtMostOnce] acknowledges every message before processing it. If
// processing fails the message is lost and will not be redelivered:
//
//	p := queue.ProcessAtMostOnce(consumer, processor, acknowledger)
//	for {
//	    err := p.ProcessItem(ctx)
//	    if errors.Is(err, queue.ErrEndOfQueue) {
//	        return nil
//	    }
//	    // Continue even on errors - message already acknowledged
//	}
//
// The returned processor also implements [QueueRuntime] so it can be passed
// straight to [Build]:
//
//	err := queue.Run(ctx, queue.Build(p))
//
// When a [Consumer] returns [ErrEndOfQueue] the queue is exhausted and the
// runtime shuts down gracefully.
package queue
