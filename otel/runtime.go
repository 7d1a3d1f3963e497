// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otel

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/z5labs/nutrition/app"
	"github.com/z5labs/nutrition/config"
	"github.com/z5labs/nutrition/otel/otlp"

	"github.com/z5labs/sdk-go/try"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	lognoop "go.opentelemetry.io/otel/log/noop"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// SDK holds the readers for each OpenTelemetry provider.
// Nil or unset readers fall back to no-op providers.
type SDK struct {
	TextMapPropagator config.Reader[propagation.TextMapPropagator]
	TracerProvider    config.Reader[trace.TracerProvider]
	MeterProvider     config.Reader[metric.MeterProvider]
	LoggerProvider    config.Reader[log.LoggerProvider]
}

// FromEnv returns the SDK used by the nutrition services.
//
// Traces and metrics are exported over OTLP only when an OTLP endpoint is
// configured. Logs are always written as JSON to stdout and are additionally
// exported over OTLP when an endpoint is configured.
func FromEnv(serviceName string) SDK {
	rsc := Resource{
		ServiceName:    config.Default(serviceName, config.Env("OTEL_SERVICE_NAME")),
		ServiceVersion: config.Env("OTEL_SERVICE_VERSION"),
	}

	return SDK{
		TracerProvider: SdkTracerProvider{
			Resource:       rsc,
			Exporter:       otlp.TraceExporterFromEnv(),
			ExportInterval: config.DurationFromString(config.Env("OTEL_BSP_EXPORT_INTERVAL")),
		},
		MeterProvider: SdkMeterProvider{
			Resource:       rsc,
			Exporter:       otlp.MetricExporterFromEnv(),
			ExportInterval: config.DurationFromString(config.Env("OTEL_METRIC_EXPORT_INTERVAL")),
		},
		LoggerProvider: SdkLoggerProvider{
			Resource: rsc,
			Processors: []config.Reader[sdklog.Processor]{
				SlogProcessor{
					Handler:  slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
					MinLevel: LogLevelFromEnv(),
				},
				BatchLogProcessor{
					Exporter: otlp.LogExporterFromEnv(),
				},
			},
		},
	}
}

// Runtime registers the OpenTelemetry providers globally, runs the inner
// runtime and shuts the providers down once it returns.
type Runtime struct {
	inner          app.Runtime
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	loggerProvider log.LoggerProvider
}

// Build reads the SDK, registers its providers globally and then builds the
// inner runtime so that clients created by builder pick up the providers.
// Go runtime metrics are recorded when a meter provider is configured.
func Build[T app.Runtime](sdk SDK, builder app.Builder[T]) app.Builder[Runtime] {
	return app.BuilderFunc[Runtime](func(ctx context.Context) (Runtime, error) {
		defaultTextMapPropagator := propagation.NewCompositeTextMapPropagator(
			propagation.Baggage{},
			propagation.TraceContext{},
		)

		tmp := config.MustOr(ctx, defaultTextMapPropagator, sdk.TextMapPropagator)
		tp := config.MustOr[trace.TracerProvider](ctx, tracenoop.NewTracerProvider(), sdk.TracerProvider)
		mp := config.MustOr[metric.MeterProvider](ctx, metricnoop.NewMeterProvider(), sdk.MeterProvider)
		lp := config.MustOr[log.LoggerProvider](ctx, lognoop.NewLoggerProvider(), sdk.LoggerProvider)

		otel.SetTextMapPropagator(tmp)
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
		global.SetLoggerProvider(lp)

		rt := Runtime{
			tracerProvider: tp,
			meterProvider:  mp,
			loggerProvider: lp,
		}

		if _, noop := mp.(metricnoop.MeterProvider); !noop {
			err := runtime.Start(
				runtime.WithMeterProvider(mp),
				runtime.WithMinimumReadMemStatsInterval(time.Second),
			)
			if err != nil {
				return Runtime{}, errors.Join(err, rt.shutdown())
			}
		}

		inner, err := builder.Build(ctx)
		if err != nil {
			return Runtime{}, errors.Join(err, rt.shutdown())
		}

		rt.inner = inner
		return rt, nil
	})
}

// Run implements the [app.Runtime] interface.
//
// Providers are shut down even if the inner runtime fails so buffered
// telemetry is flushed before the process exits.
func (rt Runtime) Run(ctx context.Context) (err error) {
	defer try.Close(&err, closerFunc(rt.shutdown))

	return rt.inner.Run(ctx)
}

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}

type shutdowner interface {
	Shutdown(context.Context) error
}

func (rt Runtime) shutdown() error {
	var errs error
	for _, v := range []any{rt.tracerProvider, rt.meterProvider, rt.loggerProvider} {
		s, ok := v.(shutdowner)
		if !ok {
			continue
		}

		err := s.Shutdown(context.Background())
		if err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}
