// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otel configures the OpenTelemetry SDK for the nutrition services.
//
// Providers are described as config.Reader values so they can be composed
// from environment variables. A provider whose exporter is not configured
// reads as unset and [Build] falls back to a no-op implementation, except
// for logs which are always written to stdout as JSON.
//
// Environment Variables:
//   - OTEL_SERVICE_NAME: overrides the service name resource attribute
//   - OTEL_SERVICE_VERSION: service version resource attribute
//   - OTEL_BSP_EXPORT_INTERVAL: batch span processor export interval
//   - OTEL_METRIC_EXPORT_INTERVAL: metric export interval
//   - NUTRITION_LOG_LEVEL: minimum log level written (debug, info, warn, error)
package otel

import (
	"context"
	"time"

	"github.com/z5labs/nutrition/config"

	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.38.0"
	"go.opentelemetry.io/otel/trace"
)

// Resource describes the service producing telemetry.
type Resource struct {
	ServiceName    config.Reader[string]
	ServiceVersion config.Reader[string]
}

// Read implements the [config.Reader] interface.
func (cfg Resource) Read(ctx context.Context) (config.Value[*resource.Resource], error) {
	serviceName := config.MustOr(ctx, "", cfg.ServiceName)
	serviceVersion := config.MustOr(ctx, "", cfg.ServiceVersion)

	rsc, err := resource.New(
		ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return config.Value[*resource.Resource]{}, err
	}
	return config.ValueOf(rsc), nil
}

// SdkTracerProvider batches spans to Exporter.
// It reads as unset when Exporter is unset.
type SdkTracerProvider struct {
	Resource       config.Reader[*resource.Resource]
	Exporter       config.Reader[sdktrace.SpanExporter]
	ExportInterval config.Reader[time.Duration]
}

// Read implements the [config.Reader] interface.
func (cfg SdkTracerProvider) Read(ctx context.Context) (config.Value[trace.TracerProvider], error) {
	ev, err := readOptional(ctx, cfg.Exporter)
	if err != nil {
		return config.Value[trace.TracerProvider]{}, err
	}
	exporter, ok := ev.Value()
	if !ok {
		return config.Value[trace.TracerProvider]{}, nil
	}

	rsc := config.Must(ctx, cfg.Resource)
	exportInterval := config.MustOr(ctx, 5*time.Second, cfg.ExportInterval)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(rsc),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(
			exporter,
			sdktrace.WithBatchTimeout(exportInterval),
		)),
	)
	return config.ValueOf[trace.TracerProvider](tp), nil
}

// SdkMeterProvider periodically exports metrics to Exporter.
// It reads as unset when Exporter is unset.
type SdkMeterProvider struct {
	Resource       config.Reader[*resource.Resource]
	Exporter       config.Reader[sdkmetric.Exporter]
	ExportInterval config.Reader[time.Duration]
}

// Read implements the [config.Reader] interface.
func (cfg SdkMeterProvider) Read(ctx context.Context) (config.Value[metric.MeterProvider], error) {
	ev, err := readOptional(ctx, cfg.Exporter)
	if err != nil {
		return config.Value[metric.MeterProvider]{}, err
	}
	exporter, ok := ev.Value()
	if !ok {
		return config.Value[metric.MeterProvider]{}, nil
	}

	rsc := config.Must(ctx, cfg.Resource)
	exportInterval := config.MustOr(ctx, 10*time.Second, cfg.ExportInterval)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(rsc),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(
			exporter,
			sdkmetric.WithInterval(exportInterval),
		)),
	)
	return config.ValueOf[metric.MeterProvider](mp), nil
}

// SdkLoggerProvider emits log records to every configured processor.
// Unset processors are skipped.
type SdkLoggerProvider struct {
	Resource   config.Reader[*resource.Resource]
	Processors []config.Reader[sdklog.Processor]
}

// Read implements the [config.Reader] interface.
func (cfg SdkLoggerProvider) Read(ctx context.Context) (config.Value[log.LoggerProvider], error) {
	rsc := config.Must(ctx, cfg.Resource)

	opts := []sdklog.LoggerProviderOption{sdklog.WithResource(rsc)}
	for _, r := range cfg.Processors {
		pv, err := readOptional(ctx, r)
		if err != nil {
			return config.Value[log.LoggerProvider]{}, err
		}
		p, ok := pv.Value()
		if !ok {
			continue
		}
		opts = append(opts, sdklog.WithProcessor(p))
	}

	lp := sdklog.NewLoggerProvider(opts...)
	return config.ValueOf[log.LoggerProvider](lp), nil
}

// BatchLogProcessor batches log records to Exporter.
// It reads as unset when Exporter is unset.
type BatchLogProcessor struct {
	Exporter config.Reader[sdklog.Exporter]
}

// Read implements the [config.Reader] interface.
func (cfg BatchLogProcessor) Read(ctx context.Context) (config.Value[sdklog.Processor], error) {
	return config.Map(cfg.Exporter, func(ctx context.Context, exp sdklog.Exporter) (sdklog.Processor, error) {
		return sdklog.NewBatchProcessor(exp), nil
	}).Read(ctx)
}

func readOptional[T any](ctx context.Context, r config.Reader[T]) (config.Value[T], error) {
	if r == nil {
		return config.Value[T]{}, nil
	}
	return r.Read(ctx)
}
