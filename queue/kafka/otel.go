// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"log/slog"

	"github.com/z5labs/nutrition"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/z5labs/nutrition/queue/kafka"

func logger() *slog.Logger {
	return nutrition.Logger(instrumentationName)
}

func tracer() trace.Tracer {
	return nutrition.Tracer(instrumentationName)
}

func meter() metric.Meter {
	return nutrition.Meter(instrumentationName)
}
