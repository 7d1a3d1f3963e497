// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package intake processes daily nutrient messages received by the consumer.
//
// Each message is decoded, logged, evaluated against the configured
// [alert.Thresholds] and optionally appended to a summary log. A malformed
// message is logged and skipped so the consumer keeps running.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/z5labs/nutrition"
	"github.com/z5labs/nutrition/alert"
	"github.com/z5labs/nutrition/nutrient"
	"github.com/z5labs/nutrition/summary"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/z5labs/nutrition/intake"

// ErrMissingField is reported when an alert rule cannot be evaluated because
// the message did not contain one of its inputs.
var ErrMissingField = errors.New("intake: missing field")

// Sink receives a row for every processed message.
type Sink interface {
	Append(context.Context, summary.Row) error
}

// Option configures a [Processor].
type Option func(*Processor)

// WithSink appends a summary row for every processed message.
func WithSink(s Sink) Option {
	return func(p *Processor) {
		p.sink = s
	}
}

// WithLogger overrides the logger, which defaults to the OpenTelemetry bridged logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Processor) {
		p.log = log
	}
}

// Processor handles nutrient messages one at a time.
type Processor struct {
	log        *slog.Logger
	tracer     trace.Tracer
	thresholds alert.Thresholds
	latest     *LatestValues
	sink       Sink

	messagesProcessed metric.Int64Counter
	messagesMalformed metric.Int64Counter
	alertsFired       metric.Int64Counter
}

// NewProcessor returns a [Processor] evaluating messages against thresholds.
func NewProcessor(thresholds alert.Thresholds, opts ...Option) (*Processor, error) {
	meter := nutrition.Meter(instrumentationName)

	messagesProcessed, err := meter.Int64Counter(
		"nutrition.messages.processed",
		metric.WithDescription("Number of nutrient messages processed"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	messagesMalformed, err := meter.Int64Counter(
		"nutrition.messages.malformed",
		metric.WithDescription("Number of nutrient messages skipped because they could not be decoded"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	alertsFired, err := meter.Int64Counter(
		"nutrition.alerts",
		metric.WithDescription("Number of nutrient alerts fired"),
		metric.WithUnit("{alert}"),
	)
	if err != nil {
		return nil, err
	}

	p := &Processor{
		log:               nutrition.Logger(instrumentationName),
		tracer:            nutrition.Tracer(instrumentationName),
		thresholds:        thresholds,
		latest:            NewLatestValues(),
		messagesProcessed: messagesProcessed,
		messagesMalformed: messagesMalformed,
		alertsFired:       alertsFired,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Latest returns the most recent value received for each nutrient.
func (p *Processor) Latest() *LatestValues {
	return p.latest
}

// Process decodes and evaluates a single message body.
//
// A malformed body is logged and counted but does not return an error.
// An error is only returned if the summary row could not be written.
func (p *Processor) Process(ctx context.Context, body []byte) error {
	spanCtx, span := p.tracer.Start(ctx, "Processor.Process")
	defer span.End()

	record, err := nutrient.Decode(body)
	if err != nil {
		span.RecordError(err)
		p.messagesMalformed.Add(spanCtx, 1)
		p.log.WarnContext(
			spanCtx,
			"skipping malformed nutrition message",
			slog.String("body", string(body)),
			slog.Any("error", err),
		)
		return nil
	}

	span.SetAttributes(attribute.String("nutrition.date", record.Date))
	p.log.InfoContext(
		spanCtx,
		"processing nutrition message",
		slog.String("date", record.Date),
		slog.String("body", string(body)),
	)

	p.latest.Update(record.Values)

	p.reportMissing(spanCtx, record)
	for _, a := range alert.Evaluate(p.thresholds, record.Values) {
		p.alertsFired.Add(spanCtx, 1, metric.WithAttributes(attribute.String("nutrition.nutrient", a.Name)))
		p.log.WarnContext(
			spanCtx,
			fmt.Sprintf("%s %s", a.Name, a.Message),
			slog.String("date", record.Date),
			slog.String("nutrient", a.Name),
			slog.Float64("value", nutrient.Round(a.Value)),
			slog.Float64("limit", a.Limit),
			slog.String("comparator", string(a.Comparator)),
		)
	}

	status := "success"
	if p.sink != nil {
		err = p.sink.Append(spanCtx, summary.NewRow(record))
		if err != nil {
			status = "failure"
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to append summary row")
		}
	}
	p.messagesProcessed.Add(spanCtx, 1, metric.WithAttributes(attribute.String("nutrition.process.status", status)))
	if err != nil {
		return fmt.Errorf("intake: append summary row: %w", err)
	}
	return nil
}

func (p *Processor) reportMissing(ctx context.Context, record nutrient.Record) {
	for _, n := range []nutrient.Nutrient{nutrient.Protein, nutrient.Fat, nutrient.Carbohydrates} {
		if _, ok := record.Value(n); ok {
			continue
		}
		p.log.DebugContext(
			ctx,
			"skipping nutrition alert",
			slog.String("date", record.Date),
			slog.Any("error", fmt.Errorf("%w: %s", ErrMissingField, n)),
		)
	}
}
