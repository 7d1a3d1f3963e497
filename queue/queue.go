// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queue

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/z5labs/nutrition"
	"github.com/z5labs/nutrition/app"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrEndOfQueue should be returned by [Consumer] that are consuming
// from a finite queue. This should then signify to [QueueRuntime]
// implementations to shut down.
var ErrEndOfQueue = errors.New("queue: no more items")

// ErrConnectionFailure is returned when the broker cannot be reached.
var ErrConnectionFailure = errors.New("queue: failed to connect to broker")

// Consumer consumes message(s), T, from a queue.
//
// Implementations should return [ErrEndOfQueue] when the queue is exhausted to signal
// graceful shutdown to [QueueRuntime] implementations.
type Consumer[T any] interface {
	Consume(context.Context) (T, error)
}

// ConsumerFunc is an adapter to allow the use of ordinary functions as [Consumer]s.
type ConsumerFunc[T any] func(context.Context) (T, error)

// Consume implements the [Consumer] interface.
func (f ConsumerFunc[T]) Consume(ctx context.Context) (T, error) {
	return f(ctx)
}

// Processor implements the business logic for processing message(s), T.
type Processor[T any] interface {
	Process(context.Context, T) error
}

// ProcessorFunc is an adapter to allow the use of ordinary functions as [Processor]s.
type ProcessorFunc[T any] func(context.Context, T) error

// Process implements the [Processor] interface.
func (f ProcessorFunc[T]) Process(ctx context.Context, t T) error {
	return f(ctx, t)
}

// Acknowledger tells the queue that message(s), T, have been received.
type Acknowledger[T any] interface {
	Acknowledge(context.Context, T) error
}

// AcknowledgerFunc is an adapter to allow the use of ordinary functions as [Acknowledger]s.
type AcknowledgerFunc[T any] func(context.Context, T) error

// Acknowledge implements the [Acknowledger] interface.
func (f AcknowledgerFunc[T]) Acknowledge(ctx context.Context, t T) error {
	return f(ctx, t)
}

// Publisher sends message(s), T, to a queue.
type Publisher[T any] interface {
	Publish(context.Context, T) error
}

// PublisherFunc is an adapter to allow the use of ordinary functions as [Publisher]s.
type PublisherFunc[T any] func(context.Context, T) error

// Publish implements the [Publisher] interface.
func (f PublisherFunc[T]) Publish(ctx context.Context, t T) error {
	return f(ctx, t)
}

// Declarer ensures a named queue exists. Declaring an existing queue is not an error.
type Declarer interface {
	Declare(ctx context.Context, name string) error
}

// DeclarerFunc is an adapter to allow the use of ordinary functions as [Declarer]s.
type DeclarerFunc func(context.Context, string) error

// Declare implements the [Declarer] interface.
func (f DeclarerFunc) Declare(ctx context.Context, name string) error {
	return f(ctx, name)
}

// AtMostOnceProcessor acknowledges each message before processing it so a
// message is never redelivered, even if processing fails.
type AtMostOnceProcessor[T any] struct {
	tracer       trace.Tracer
	log          *slog.Logger
	consumer     Consumer[T]
	processor    Processor[T]
	acknowledger Acknowledger[T]
}

// ProcessAtMostOnce returns an [AtMostOnceProcessor] which consumes, acknowledges
// and then processes messages one at a time.
func ProcessAtMostOnce[T any](c Consumer[T], p Processor[T], a Acknowledger[T]) *AtMostOnceProcessor[T] {
	return &AtMostOnceProcessor[T]{
		tracer:       nutrition.Tracer("github.com/z5labs/nutrition/queue"),
		log:          nutrition.Logger("github.com/z5labs/nutrition/queue"),
		consumer:     c,
		processor:    p,
		acknowledger: a,
	}
}

type processError struct {
	err error
}

func (e processError) Error() string {
	return e.err.Error()
}

func (e processError) Unwrap() error {
	return e.err
}

// ProcessItem consumes, acknowledges and processes a single message.
// The message is not processed if it could not be acknowledged.
func (p *AtMostOnceProcessor[T]) ProcessItem(ctx context.Context) error {
	spanCtx, span := p.tracer.Start(ctx, "AtMostOnceProcessor.ProcessItem")
	defer span.End()

	item, err := p.consumer.Consume(spanCtx)
	if err != nil {
		if !errors.Is(err, ErrEndOfQueue) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to consume")
		}
		return err
	}

	err = p.acknowledger.Acknowledge(spanCtx, item)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to acknowledge")
		return err
	}

	err = p.processor.Process(spanCtx, item)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to process")
		return processError{err: err}
	}
	return nil
}

// ProcessQueue implements the [QueueRuntime] interface.
//
// Messages are processed sequentially until the consumer returns
// [ErrEndOfQueue] or ctx is cancelled. A processing failure is logged and
// the next message is consumed. Consume and acknowledge failures are returned.
func (p *AtMostOnceProcessor[T]) ProcessQueue(ctx context.Context) error {
	for {
		err := ctx.Err()
		if err != nil {
			return err
		}

		err = p.ProcessItem(ctx)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrEndOfQueue) {
			return nil
		}

		var perr processError
		if !errors.As(err, &perr) {
			return err
		}
		p.log.ErrorContext(ctx, "failed to process message", slog.Any("error", perr.err))
	}
}

// QueueRuntime orchestrates the message queue processing lifecycle.
//
// Implementations should coordinate [Consumer], [Processor], and [Acknowledger]
// to consume, process, and acknowledge messages. When ProcessQueue returns,
// the application will shut down gracefully.
type QueueRuntime interface {
	ProcessQueue(context.Context) error
}

// QueueRuntimeFunc is an adapter to allow the use of ordinary functions as [QueueRuntime]s.
type QueueRuntimeFunc func(context.Context) error

// ProcessQueue implements the [QueueRuntime] interface.
func (f QueueRuntimeFunc) ProcessQueue(ctx context.Context) error {
	return f(ctx)
}

// Runtime wraps a [QueueRuntime] and implements the [app.Runtime] interface.
type Runtime struct {
	queueRuntime QueueRuntime
}

// Run implements [app.Runtime] interface.
func (rt Runtime) Run(ctx context.Context) error {
	return rt.queueRuntime.ProcessQueue(ctx)
}

// Build creates an app.Builder for a queue-based application.
//
// Example:
//
//	processor := queue.ProcessAtMostOnce(consumer, intakeProcessor, acknowledger)
//	builder := queue.Build(processor)
func Build(queueRuntime QueueRuntime) app.Builder[Runtime] {
	return app.BuilderFunc[Runtime](func(ctx context.Context) (Runtime, error) {
		return Runtime{queueRuntime: queueRuntime}, nil
	})
}

// RunOptions holds configuration for [Run].
type RunOptions struct {
	logger *slog.Logger
}

// RunOption configures [Run] behavior.
// Use [LogHandler] to customize error logging.
type RunOption interface {
	ApplyRunOption(*RunOptions)
}

type runOptionFunc func(*RunOptions)

func (f runOptionFunc) ApplyRunOption(ro *RunOptions) {
	f(ro)
}

// LogHandler configures a custom log handler for errors during application startup and running.
// By default, errors are logged as JSON to stdout.
func LogHandler(h slog.Handler) RunOption {
	return runOptionFunc(func(ro *RunOptions) {
		ro.logger = slog.New(h)
	})
}

// Run builds and runs a queue-based application using the provided builder.
// Any build or runtime error is logged before being returned.
//
// Signal handling is performed by [app.Run], which cancels the context
// on SIGINT or SIGTERM.
func Run[T app.Runtime](ctx context.Context, builder app.Builder[T], opts ...RunOption) error {
	ro := &RunOptions{
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{})),
	}
	for _, opt := range opts {
		opt.ApplyRunOption(ro)
	}

	err := app.Run(ctx, builder)
	if err != nil {
		app.LogError(ro.logger.Handler(), err)
	}
	return err
}
