// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/z5labs/nutrition"
	"github.com/z5labs/nutrition/nutrient"
	"github.com/z5labs/nutrition/queue"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/z5labs/nutrition/cmd/nutrition-producer/app"

// Handler publishes one message per aggregated day.
type Handler struct {
	log       *slog.Logger
	tracer    trace.Tracer
	queue     string
	records   []nutrient.Record
	publisher queue.Publisher[nutrient.Record]
	sendDelay time.Duration
}

// NewHandler returns a [Handler] which publishes records in order, waiting
// sendDelay between consecutive publishes.
func NewHandler(queueName string, records []nutrient.Record, publisher queue.Publisher[nutrient.Record], sendDelay time.Duration) *Handler {
	return &Handler{
		log:       nutrition.Logger(instrumentationName),
		tracer:    nutrition.Tracer(instrumentationName),
		queue:     queueName,
		records:   records,
		publisher: publisher,
		sendDelay: sendDelay,
	}
}

// Handle implements the job.Handler interface.
func (h *Handler) Handle(ctx context.Context) error {
	ctx, span := h.tracer.Start(ctx, "Handler.Handle", trace.WithAttributes(
		attribute.String("nutrition.queue", h.queue),
		attribute.Int("nutrition.days", len(h.records)),
	))
	defer span.End()

	for i, record := range h.records {
		if i > 0 {
			err := h.wait(ctx)
			if err != nil {
				return err
			}
		}

		err := h.publisher.Publish(ctx, record)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("publish nutrition totals for %s: %w", record.Date, err)
		}

		h.log.InfoContext(
			ctx,
			"published nutrition message",
			slog.String("queue", h.queue),
			slog.String("date", record.Date),
			slog.String("message", string(nutrient.Encode(record))),
		)
	}

	h.log.InfoContext(
		ctx,
		"published daily nutrition totals",
		slog.String("queue", h.queue),
		slog.Int("days", len(h.records)),
	)
	return nil
}

func (h *Handler) wait(ctx context.Context) error {
	if h.sendDelay <= 0 {
		return nil
	}

	timer := time.NewTimer(h.sendDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
