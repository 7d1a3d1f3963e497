// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otel

import (
	"context"
	"log/slog"
	"strings"

	"github.com/z5labs/nutrition/config"

	"go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// SlogExporter writes OpenTelemetry log records to a [slog.Handler].
type SlogExporter struct {
	handler slog.Handler
}

// NewSlogExporter returns a [SlogExporter] writing to h.
func NewSlogExporter(h slog.Handler) *SlogExporter {
	return &SlogExporter{handler: h}
}

// Export implements the [sdklog.Exporter] interface.
func (e *SlogExporter) Export(ctx context.Context, records []sdklog.Record) error {
	for _, record := range records {
		sr := slog.NewRecord(
			record.Timestamp(),
			severityToLevel(record.Severity()),
			record.Body().AsString(),
			0,
		)

		record.WalkAttributes(func(kv log.KeyValue) bool {
			sr.AddAttrs(slog.Attr{
				Key:   kv.Key,
				Value: slogValue(kv.Value),
			})
			return true
		})

		if record.TraceID().IsValid() {
			sr.AddAttrs(slog.Group(
				"otel",
				slog.String("trace_id", record.TraceID().String()),
				slog.String("span_id", record.SpanID().String()),
			))
		}

		err := e.handler.Handle(ctx, sr)
		if err != nil {
			return err
		}
	}
	return nil
}

// ForceFlush implements the [sdklog.Exporter] interface.
func (e *SlogExporter) ForceFlush(ctx context.Context) error {
	return nil
}

// Shutdown implements the [sdklog.Exporter] interface.
func (e *SlogExporter) Shutdown(ctx context.Context) error {
	return nil
}

// otelslog maps slog.LevelDebug to log.SeverityDebug and keeps the spacing between levels.
const severityOffset = log.SeverityDebug - log.Severity(slog.LevelDebug)

func severityToLevel(sev log.Severity) slog.Level {
	return slog.Level(sev - severityOffset)
}

func slogValue(v log.Value) slog.Value {
	switch v.Kind() {
	case log.KindBool:
		return slog.BoolValue(v.AsBool())
	case log.KindBytes:
		return slog.AnyValue(v.AsBytes())
	case log.KindFloat64:
		return slog.Float64Value(v.AsFloat64())
	case log.KindInt64:
		return slog.Int64Value(v.AsInt64())
	case log.KindString:
		return slog.StringValue(v.AsString())
	case log.KindMap:
		kvs := v.AsMap()
		attrs := make([]slog.Attr, len(kvs))
		for i, kv := range kvs {
			attrs[i] = slog.Attr{Key: kv.Key, Value: slogValue(kv.Value)}
		}
		return slog.GroupValue(attrs...)
	case log.KindSlice:
		vs := v.AsSlice()
		vals := make([]any, len(vs))
		for i := range vs {
			vals[i] = slogValue(vs[i]).Any()
		}
		return slog.AnyValue(vals)
	default:
		return slog.StringValue(v.String())
	}
}

// ParseLogLevel converts debug, info, warn or error into a [log.Severity].
// Unknown values map to info.
func ParseLogLevel(level string) log.Severity {
	switch strings.ToLower(level) {
	case "debug":
		return log.SeverityDebug
	case "warn", "warning":
		return log.SeverityWarn
	case "error":
		return log.SeverityError
	default:
		return log.SeverityInfo
	}
}

// LogLevelFromEnv reads the minimum log severity from NUTRITION_LOG_LEVEL.
func LogLevelFromEnv() config.Reader[log.Severity] {
	return config.Map(config.Env("NUTRITION_LOG_LEVEL"), func(ctx context.Context, s string) (log.Severity, error) {
		return ParseLogLevel(s), nil
	})
}

type minSeverityProcessor struct {
	sdklog.Processor
	min log.Severity
}

// OnEmit drops records below the minimum severity.
func (p minSeverityProcessor) OnEmit(ctx context.Context, record *sdklog.Record) error {
	if record.Severity() < p.min {
		return nil
	}
	return p.Processor.OnEmit(ctx, record)
}

// SlogProcessor synchronously exports log records at or above MinLevel to Handler.
type SlogProcessor struct {
	Handler  slog.Handler
	MinLevel config.Reader[log.Severity]
}

// Read implements the [config.Reader] interface.
func (cfg SlogProcessor) Read(ctx context.Context) (config.Value[sdklog.Processor], error) {
	minLevel := config.MustOr(ctx, log.SeverityInfo, cfg.MinLevel)

	p := minSeverityProcessor{
		Processor: sdklog.NewSimpleProcessor(NewSlogExporter(cfg.Handler)),
		min:       minLevel,
	}
	return config.ValueOf[sdklog.Processor](p), nil
}
