// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package nutrition provides the telemetry entry points shared by the
// nutrition producer and consumer.
package nutrition

import (
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Logger returns a [slog.Logger] which emits records through the global OpenTelemetry logger provider.
func Logger(name string) *slog.Logger {
	return otelslog.NewLogger(name)
}

// Tracer returns a tracer from the global OpenTelemetry tracer provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Meter returns a meter from the global OpenTelemetry meter provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}
