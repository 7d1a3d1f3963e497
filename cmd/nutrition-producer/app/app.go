// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app wires the nutrition producer: it aggregates a food log by day
// and publishes one message per day to the nutrition queue.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/z5labs/nutrition/aggregate"
	"github.com/z5labs/nutrition/app"
	"github.com/z5labs/nutrition/config"
	"github.com/z5labs/nutrition/internal/objstore"
	"github.com/z5labs/nutrition/job"
	"github.com/z5labs/nutrition/nutrient"
	"github.com/z5labs/nutrition/queue"
	"github.com/z5labs/nutrition/queue/kafka"

	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	DefaultInput = "Nutrition-Summary.csv"
	DefaultQueue = "nutrition"
)

// MinIOConfig locates the object store used for s3:// inputs.
type MinIOConfig struct {
	Endpoint  config.Reader[string]
	AccessKey config.Reader[string]
	SecretKey config.Reader[string]
	Secure    config.Reader[bool]
}

// Config configures the producer.
type Config struct {
	Input     config.Reader[string]
	Queue     config.Reader[string]
	SendDelay config.Reader[time.Duration]
	MinIO     MinIOConfig
	Kafka     kafka.ClientConfig
}

// ConfigFromEnv reads the producer configuration from the environment.
func ConfigFromEnv() Config {
	return Config{
		Input:     config.Default(DefaultInput, config.Env("NUTRITION_INPUT")),
		Queue:     config.Default(DefaultQueue, config.Env("NUTRITION_QUEUE")),
		SendDelay: config.DurationFromString(config.Env("NUTRITION_SEND_DELAY")),
		MinIO: MinIOConfig{
			Endpoint:  config.Default("localhost:9000", config.Env("MINIO_ENDPOINT")),
			AccessKey: config.Default("minioadmin", config.Env("MINIO_ACCESS_KEY")),
			SecretKey: config.Default("minioadmin", config.Env("MINIO_SECRET_KEY")),
			Secure:    config.BoolFromString(config.Env("MINIO_SECURE")),
		},
		Kafka: kafka.ClientConfigFromEnv(),
	}
}

// Source resolves the configured input to a local file or, for
// s3://bucket/key locations, an object in MinIO.
func Source(ctx context.Context, cfg Config) (aggregate.Source, error) {
	input := config.MustOr(ctx, DefaultInput, cfg.Input)

	bucket, key, ok := aggregate.ParseObjectURL(input)
	if !ok {
		return aggregate.FileSource{Path: input}, nil
	}

	storage, err := objstore.NewMinIOClient(
		config.Must(ctx, cfg.MinIO.Endpoint),
		config.Must(ctx, cfg.MinIO.AccessKey),
		config.Must(ctx, cfg.MinIO.SecretKey),
		config.MustOr(ctx, false, cfg.MinIO.Secure),
	)
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}
	return aggregate.ObjectSource{Storage: storage, Bucket: bucket, Key: key}, nil
}

// Transport is the queue the producer declares and publishes to.
type Transport interface {
	queue.Declarer
	Publisher(name string) queue.Publisher[nutrient.Record]
}

// Build aggregates the input before connecting to the queue so a missing
// or unreadable food log fails without touching the broker.
func Build(cfg Config, connect func(context.Context, *app.HookRegistry) (Transport, error)) app.Builder[app.Runtime] {
	return app.WithHooks(func(ctx context.Context, hooks *app.HookRegistry) (job.Runtime, error) {
		src, err := Source(ctx, cfg)
		if err != nil {
			return job.Runtime{}, err
		}

		entries, err := aggregate.Load(ctx, src)
		if err != nil {
			return job.Runtime{}, fmt.Errorf("load food log: %w", err)
		}
		records := aggregate.Aggregate(entries)

		transport, err := connect(ctx, hooks)
		if err != nil {
			return job.Runtime{}, err
		}

		queueName := config.MustOr(ctx, DefaultQueue, cfg.Queue)
		err = transport.Declare(ctx, queueName)
		if err != nil {
			return job.Runtime{}, fmt.Errorf("declare queue %s: %w", queueName, err)
		}

		handler := NewHandler(
			queueName,
			records,
			transport.Publisher(queueName),
			config.MustOr(ctx, 0, cfg.SendDelay),
		)
		return job.Build[*Handler]("nutrition-producer", app.BuilderFunc[*Handler](func(ctx context.Context) (*Handler, error) {
			return handler, nil
		})).Build(ctx)
	})
}

type kafkaTransport struct {
	*kafka.Declarer

	client *kgo.Client
}

func (t kafkaTransport) Publisher(name string) queue.Publisher[nutrient.Record] {
	return EncodeRecords(kafka.NewPublisher(t.client, name))
}

// Kafka connects to the brokers in cfg and verifies they are reachable.
// The client is closed once the producer has finished.
func Kafka(cfg kafka.ClientConfig) func(context.Context, *app.HookRegistry) (Transport, error) {
	return func(ctx context.Context, hooks *app.HookRegistry) (Transport, error) {
		client, err := kafka.NewClient(ctx, cfg)
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
			client:   client,
		}, nil
	}
}

// EncodeRecords publishes each record as a Kafka message keyed by its date.
func EncodeRecords(p queue.Publisher[kafka.Message]) queue.Publisher[nutrient.Record] {
	return queue.PublisherFunc[nutrient.Record](func(ctx context.Context, r nutrient.Record) error {
		return p.Publish(ctx, kafka.Message{
			Key:   []byte(r.Date),
			Value: nutrient.Encode(r),
		})
	})
}
