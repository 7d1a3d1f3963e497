// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app wires the nutrition consumer: it receives daily nutrient
// totals, logs threshold alerts and optionally appends a summary row per
// message to a CSV file.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/z5labs/nutrition/alert"
	"github.com/z5labs/nutrition/app"
	"github.com/z5labs/nutrition/config"
	"github.com/z5labs/nutrition/health"
	httpserver "github.com/z5labs/nutrition/http"
	"github.com/z5labs/nutrition/intake"
	"github.com/z5labs/nutrition/queue"
	"github.com/z5labs/nutrition/queue/kafka"
	"github.com/z5labs/nutrition/summary"

	"golang.org/x/sync/errgroup"
)

// DefaultQueue is consumed when NUTRITION_QUEUE is not set.
const DefaultQueue = "nutrition"

// Config configures the consumer.
type Config struct {
	Queue      config.Reader[string]
	Output     config.Reader[string]
	Thresholds config.Reader[alert.Thresholds]
	Health     httpserver.Server
	Kafka      kafka.Config
}

// ConfigFromEnv reads the consumer configuration from the environment.
func ConfigFromEnv() Config {
	return Config{
		Queue:      config.Default(DefaultQueue, config.Env("NUTRITION_QUEUE")),
		Output:     config.Env("NUTRITION_OUTPUT"),
		Thresholds: alert.ThresholdsFromEnv(),
		Health:     httpserver.ServerFromEnv(),
		Kafka:      kafka.ConfigFromEnv(),
	}
}

// Transport is the queue the consumer declares and subscribes to.
type Transport interface {
	queue.Declarer
	Subscribe(ctx context.Context, name string, p queue.Processor[[]byte]) (queue.QueueRuntime, error)
}

// Runtime processes the queue while serving health probes. Both stop as
// soon as either one returns.
type Runtime struct {
	queue    app.Runtime
	health   app.Runtime
	liveness *health.Binary
}

// Run implements the [app.Runtime] interface.
func (rt Runtime) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt.liveness.MarkHealthy()
	defer rt.liveness.MarkUnhealthy()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rt.health.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return rt.queue.Run(gctx)
	})
	return g.Wait()
}

// Build connects to the queue, declares it and reads the alert thresholds
// before any message is received. Readiness turns healthy once the broker
// has been reached and the queue declared.
func Build(cfg Config, connect func(context.Context, *app.HookRegistry) (Transport, error)) app.Builder[app.Runtime] {
	return app.WithHooks(func(ctx context.Context, hooks *app.HookRegistry) (Runtime, error) {
		var liveness, connected, declared health.Binary

		thresholds, err := config.Read(ctx, cfg.Thresholds)
		if err != nil {
			return Runtime{}, fmt.Errorf("read alert thresholds: %w", err)
		}

		opts := []intake.Option{}
		output := config.MustOr(ctx, "", cfg.Output)
		if output != "" {
			sink, err := summary.OpenFile(output)
			if err != nil {
				return Runtime{}, fmt.Errorf("open summary output: %w", err)
			}
			hooks.OnClose(sink)
			opts = append(opts, intake.WithSink(sink))
		}

		processor, err := intake.NewProcessor(thresholds, opts...)
		if err != nil {
			return Runtime{}, err
		}

		transport, err := connect(ctx, hooks)
		if err != nil {
			return Runtime{}, err
		}
		connected.MarkHealthy()

		queueName := config.MustOr(ctx, DefaultQueue, cfg.Queue)
		err = transport.Declare(ctx, queueName)
		if err != nil {
			return Runtime{}, fmt.Errorf("declare queue %s: %w", queueName, err)
		}
		declared.MarkHealthy()

		qr, err := transport.Subscribe(ctx, queueName, processor)
		if err != nil {
			return Runtime{}, err
		}
		queueRuntime, err := queue.Build(qr).Build(ctx)
		if err != nil {
			return Runtime{}, err
		}

		healthApp, err := httpserver.Build(
			cfg.Health,
			app.BuilderFunc[http.Handler](func(ctx context.Context) (http.Handler, error) {
				return health.NewHandler(&liveness, health.And(&connected, &declared)), nil
			}),
		).Build(ctx)
		if err != nil {
			return Runtime{}, fmt.Errorf("start health server: %w", err)
		}

		return Runtime{
			queue:    queueRuntime,
			health:   healthApp,
			liveness: &liveness,
		}, nil
	})
}

type kafkaTransport struct {
	*kafka.Declarer

	cfg kafka.Config
}

func (t kafkaTransport) Subscribe(ctx context.Context, name string, p queue.Processor[[]byte]) (queue.QueueRuntime, error) {
	return kafka.Build(t.cfg, name, kafka.Values(p)).Build(ctx)
}

// Kafka verifies the brokers in cfg are reachable before subscribing with
// the consumer group in cfg.
func Kafka(cfg kafka.Config) func(context.Context, *app.HookRegistry) (Transport, error) {
	return func(ctx context.Context, hooks *app.HookRegistry) (Transport, error) {
		client, err := kafka.NewClient(ctx, kafka.ClientConfig{
			Brokers:   cfg.Brokers,
			TLSConfig: cfg.TLSConfig,
		})
		if err != nil {
			return nil, err
		}
		hooks.OnPostRun(func(ctx context.Context) error {
			client.Close()
			return nil
		})

		err = kafka.Ping(ctx, client)
		if err != nil {
			return nil, err
		}

		return kafkaTransport{
			Declarer: kafka.NewDeclarer(client),
			cfg:      cfg,
		}, nil
	}
}
