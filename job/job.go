// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package job runs a [Handler] once as an app.Runtime.
package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/z5labs/nutrition"
	"github.com/z5labs/nutrition/app"
)

// Handler represents the core logic of your job.
type Handler interface {
	Handle(context.Context) error
}

// HandlerFunc is an adapter to allow the use of ordinary functions as [Handler]s.
type HandlerFunc func(context.Context) error

// Handle implements the [Handler] interface.
func (f HandlerFunc) Handle(ctx context.Context) error {
	return f(ctx)
}

// Runtime runs its [Handler] a single time.
type Runtime struct {
	log     *slog.Logger
	name    string
	handler Handler
}

// Run implements the [app.Runtime] interface.
func (rt Runtime) Run(ctx context.Context) error {
	start := time.Now()
	rt.log.InfoContext(ctx, "starting job", slog.String("job", rt.name))

	err := rt.handler.Handle(ctx)
	if err != nil {
		return err
	}

	rt.log.InfoContext(
		ctx,
		"job completed",
		slog.String("job", rt.name),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// Build creates an app.Builder for a job named name whose [Handler] is
// built by b.
//
// Example:
//
//	builder := job.Build("nutrition-producer", app.BuilderFunc[job.Handler](initProducer))
func Build[T Handler](name string, b app.Builder[T]) app.Builder[Runtime] {
	return app.Bind(b, func(h T) app.Builder[Runtime] {
		return app.BuilderFunc[Runtime](func(ctx context.Context) (Runtime, error) {
			return Runtime{
				log:     nutrition.Logger("github.com/z5labs/nutrition/job"),
				name:    name,
				handler: h,
			}, nil
		})
	})
}
