// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otlp provides OTLP exporters for traces, metrics and logs.
//
// Endpoints are read from the standard OpenTelemetry environment variables:
//   - OTEL_EXPORTER_OTLP_TRACES_ENDPOINT
//   - OTEL_EXPORTER_OTLP_METRICS_ENDPOINT
//   - OTEL_EXPORTER_OTLP_LOGS_ENDPOINT
//   - OTEL_EXPORTER_OTLP_ENDPOINT (fallback for all signals)
//
// OTEL_EXPORTER_OTLP_PROTOCOL selects the transport: "grpc" (default) or
// "http/protobuf". An exporter whose endpoint is unset reads as unset.
package otlp

import (
	"context"
	"fmt"
	"sync"

	"github.com/z5labs/nutrition/config"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Protocol is an OTLP transport.
type Protocol string

const (
	ProtocolGRPC Protocol = "grpc"
	ProtocolHTTP Protocol = "http/protobuf"
)

// ProtocolFromEnv reads OTEL_EXPORTER_OTLP_PROTOCOL, defaulting to [ProtocolGRPC].
func ProtocolFromEnv() config.Reader[Protocol] {
	return config.Default(
		ProtocolGRPC,
		config.Map(config.Env("OTEL_EXPORTER_OTLP_PROTOCOL"), func(ctx context.Context, s string) (Protocol, error) {
			switch p := Protocol(s); p {
			case ProtocolGRPC, ProtocolHTTP:
				return p, nil
			default:
				return "", fmt.Errorf("otlp: unsupported protocol: %s", s)
			}
		}),
	)
}

// connCache shares one gRPC client connection per target across signals.
var connCache = struct {
	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}{conns: map[string]*grpc.ClientConn{}}

func grpcConn(target string) (*grpc.ClientConn, error) {
	connCache.mu.Lock()
	defer connCache.mu.Unlock()

	if cc, ok := connCache.conns[target]; ok {
		return cc, nil
	}

	cc, err := grpc.NewClient(
		target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, err
	}
	connCache.conns[target] = cc
	return cc, nil
}

// Exporter builds a signal specific exporter from an endpoint and protocol.
type Exporter[T any] struct {
	Endpoint config.Reader[string]
	Protocol config.Reader[Protocol]

	grpc func(context.Context, *grpc.ClientConn) (T, error)
	http func(context.Context, string) (T, error)
}

// Read implements the [config.Reader] interface.
func (e Exporter[T]) Read(ctx context.Context) (config.Value[T], error) {
	return config.Map(e.Endpoint, func(ctx context.Context, endpoint string) (T, error) {
		protocol := config.MustOr(ctx, ProtocolGRPC, e.Protocol)

		if protocol == ProtocolHTTP {
			return e.http(ctx, endpoint)
		}

		var zero T
		cc, err := grpcConn(endpoint)
		if err != nil {
			return zero, err
		}
		return e.grpc(ctx, cc)
	}).Read(ctx)
}

// TraceExporterFromEnv returns the span exporter configured by the environment.
func TraceExporterFromEnv() Exporter[sdktrace.SpanExporter] {
	return Exporter[sdktrace.SpanExporter]{
		Endpoint: config.Or(
			config.Env("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"),
			config.Env("OTEL_EXPORTER_OTLP_ENDPOINT"),
		),
		Protocol: ProtocolFromEnv(),
		grpc: func(ctx context.Context, cc *grpc.ClientConn) (sdktrace.SpanExporter, error) {
			return otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(cc))
		},
		http: func(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
			return otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
		},
	}
}

// MetricExporterFromEnv returns the metric exporter configured by the environment.
func MetricExporterFromEnv() Exporter[sdkmetric.Exporter] {
	return Exporter[sdkmetric.Exporter]{
		Endpoint: config.Or(
			config.Env("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"),
			config.Env("OTEL_EXPORTER_OTLP_ENDPOINT"),
		),
		Protocol: ProtocolFromEnv(),
		grpc: func(ctx context.Context, cc *grpc.ClientConn) (sdkmetric.Exporter, error) {
			return otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(cc))
		},
		http: func(ctx context.Context, endpoint string) (sdkmetric.Exporter, error) {
			return otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(endpoint), otlpmetrichttp.WithInsecure())
		},
	}
}

// LogExporterFromEnv returns the log exporter configured by the environment.
func LogExporterFromEnv() Exporter[sdklog.Exporter] {
	return Exporter[sdklog.Exporter]{
		Endpoint: config.Or(
			config.Env("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT"),
			config.Env("OTEL_EXPORTER_OTLP_ENDPOINT"),
		),
		Protocol: ProtocolFromEnv(),
		grpc: func(ctx context.Context, cc *grpc.ClientConn) (sdklog.Exporter, error) {
			return otlploggrpc.New(ctx, otlploggrpc.WithGRPCConn(cc))
		},
		http: func(ctx context.Context, endpoint string) (sdklog.Exporter, error) {
			return otlploghttp.New(ctx, otlploghttp.WithEndpoint(endpoint), otlploghttp.WithInsecure())
		},
	}
}
