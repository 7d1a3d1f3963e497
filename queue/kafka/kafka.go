// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/z5labs/nutrition"
	"github.com/z5labs/nutrition/app"
	"github.com/z5labs/nutrition/config"
	"github.com/z5labs/nutrition/queue"

	"github.com/sourcegraph/conc/pool"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"github.com/twmb/franz-go/plugin/kslog"
	"go.opentelemetry.io/otel"
)

// Header represents a Kafka message header.
type Header struct {
	Key   string
	Value []byte
}

// Message represents a Kafka message.
type Message struct {
	Key       []byte
	Value     []byte
	Headers   []Header
	Timestamp time.Time
	Topic     string
	Partition int32
	Offset    int64
}

// Header returns the value of the first header named key.
func (m Message) Header(key string) ([]byte, bool) {
	for _, h := range m.Headers {
		if h.Key == key {
			return h.Value, true
		}
	}
	return nil, false
}

// Values adapts a processor of message bodies to Kafka messages.
func Values(p queue.Processor[[]byte]) queue.Processor[Message] {
	return queue.ProcessorFunc[Message](func(ctx context.Context, msg Message) error {
		return p.Process(ctx, msg.Value)
	})
}

// Config holds configuration readers for Kafka infrastructure settings.
type Config struct {
	Brokers              config.Reader[[]string]
	GroupID              config.Reader[string]
	SessionTimeout       config.Reader[time.Duration]
	RebalanceTimeout     config.Reader[time.Duration]
	FetchMaxBytes        config.Reader[int32]
	MaxConcurrentFetches config.Reader[int]
	TLSConfig            config.Reader[*tls.Config]
}

// DefaultBroker is used when NUTRITION_BROKERS is not set.
const DefaultBroker = "localhost:9092"

// DefaultGroupID is used when NUTRITION_GROUP_ID is not set.
const DefaultGroupID = "nutrition-consumer"

// BrokersFromEnv reads comma separated broker addresses from NUTRITION_BROKERS,
// defaulting to [DefaultBroker].
func BrokersFromEnv() config.Reader[[]string] {
	return config.Default(
		[]string{DefaultBroker},
		config.Map(
			config.Env("NUTRITION_BROKERS"),
			func(ctx context.Context, s string) ([]string, error) {
				var brokers []string
				for _, b := range strings.Split(s, ",") {
					b = strings.TrimSpace(b)
					if b == "" {
						continue
					}
					brokers = append(brokers, b)
				}
				if len(brokers) == 0 {
					return nil, errors.New("kafka: no brokers configured")
				}
				return brokers, nil
			},
		),
	)
}

// GroupIDFromEnv reads the consumer group ID from NUTRITION_GROUP_ID,
// defaulting to [DefaultGroupID].
func GroupIDFromEnv() config.Reader[string] {
	return config.Default(DefaultGroupID, config.Env("NUTRITION_GROUP_ID"))
}

// SessionTimeoutFromEnv reads the Kafka session timeout from the KAFKA_SESSION_TIMEOUT environment variable.
// The value should be a duration string (e.g., "45s", "1m30s").
func SessionTimeoutFromEnv() config.Reader[time.Duration] {
	return config.DurationFromString(config.Env("KAFKA_SESSION_TIMEOUT"))
}

// RebalanceTimeoutFromEnv reads the Kafka rebalance timeout from the KAFKA_REBALANCE_TIMEOUT environment variable.
func RebalanceTimeoutFromEnv() config.Reader[time.Duration] {
	return config.DurationFromString(config.Env("KAFKA_REBALANCE_TIMEOUT"))
}

// FetchMaxBytesFromEnv reads the maximum fetch bytes from the KAFKA_FETCH_MAX_BYTES environment variable.
func FetchMaxBytesFromEnv() config.Reader[int32] {
	return config.Map(
		config.IntFromString(config.Env("KAFKA_FETCH_MAX_BYTES")),
		func(ctx context.Context, n int) (int32, error) {
			return int32(n), nil
		},
	)
}

// MaxConcurrentFetchesFromEnv reads the maximum concurrent fetches from the KAFKA_MAX_CONCURRENT_FETCHES environment variable.
func MaxConcurrentFetchesFromEnv() config.Reader[int] {
	return config.IntFromString(config.Env("KAFKA_MAX_CONCURRENT_FETCHES"))
}

// ConfigFromEnv returns a [Config] populated by the environment readers in this package.
func ConfigFromEnv() Config {
	return Config{
		Brokers:              BrokersFromEnv(),
		GroupID:              GroupIDFromEnv(),
		SessionTimeout:       SessionTimeoutFromEnv(),
		RebalanceTimeout:     RebalanceTimeoutFromEnv(),
		FetchMaxBytes:        FetchMaxBytesFromEnv(),
		MaxConcurrentFetches: MaxConcurrentFetchesFromEnv(),
		TLSConfig:            TLSConfigFromEnv(),
	}
}

// TLSConfigFromFiles loads a client certificate and trusted CA from PEM files.
//
// Example:
//
//	tlsConfig := kafka.TLSConfigFromFiles(
//	    config.ReaderOf("client-cert.pem"),
//	    config.ReaderOf("client-key.pem"),
//	    config.ReaderOf("ca-cert.pem"),
//	)
func TLSConfigFromFiles(
	certFile config.Reader[string],
	keyFile config.Reader[string],
	caFile config.Reader[string],
) config.Reader[*tls.Config] {
	return config.ReaderFunc[*tls.Config](func(ctx context.Context) (config.Value[*tls.Config], error) {
		certPath := config.Must(ctx, certFile)
		keyPath := config.Must(ctx, keyFile)
		caPath := config.Must(ctx, caFile)

		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return config.Value[*tls.Config]{}, fmt.Errorf("kafka: load client certificate: %w", err)
		}

		caCert, err := os.ReadFile(caPath)
		if err != nil {
			return config.Value[*tls.Config]{}, fmt.Errorf("kafka: read CA certificate: %w", err)
		}

		caPool := x509.NewCertPool()
		if !caPool.AppendCertsFromPEM(caCert) {
			return config.Value[*tls.Config]{}, fmt.Errorf("kafka: no certificates found in %s", caPath)
		}

		return config.ValueOf(&tls.Config{
			Certificates: []tls.Certificate{cert},
			RootCAs:      caPool,
			MinVersion:   tls.VersionTLS12,
		}), nil
	})
}

// TLSConfigFromEnv reads the certificate paths from NUTRITION_TLS_CERT_FILE,
// NUTRITION_TLS_KEY_FILE and NUTRITION_TLS_CA_FILE. It reads as unset when
// NUTRITION_TLS_CERT_FILE is not set.
func TLSConfigFromEnv() config.Reader[*tls.Config] {
	certFile := config.Env("NUTRITION_TLS_CERT_FILE")

	return config.ReaderFunc[*tls.Config](func(ctx context.Context) (config.Value[*tls.Config], error) {
		v, err := certFile.Read(ctx)
		if err != nil {
			return config.Value[*tls.Config]{}, err
		}
		if _, ok := v.Value(); !ok {
			return config.Value[*tls.Config]{}, nil
		}

		return TLSConfigFromFiles(
			certFile,
			config.Env("NUTRITION_TLS_KEY_FILE"),
			config.Env("NUTRITION_TLS_CA_FILE"),
		).Read(ctx)
	})
}

// clientOpts are shared by every Kafka client this package creates.
func clientOpts(brokers []string, tlsConfig *tls.Config, groupID string) []kgo.Opt {
	tracerOpts := []kotel.TracerOpt{
		kotel.TracerProvider(otel.GetTracerProvider()),
		kotel.TracerPropagator(otel.GetTextMapPropagator()),
		kotel.LinkSpans(),
	}
	if groupID != "" {
		tracerOpts = append(tracerOpts, kotel.ConsumerGroup(groupID))
	}

	opts := []kgo.Opt{
		kgo.WithLogger(kslog.New(nutrition.Logger("github.com/twmb/franz-go/pkg/kgo"))),
		kgo.WithHooks(
			kotel.NewTracer(tracerOpts...),
			kotel.NewMeter(
				kotel.MeterProvider(otel.GetMeterProvider()),
				kotel.WithMergedConnectsMeter(),
			),
		),
		kgo.SeedBrokers(brokers...),
	}
	if tlsConfig != nil {
		opts = append(opts, kgo.DialTLSConfig(tlsConfig))
	}
	return opts
}

// Runtime consumes a single topic as part of a consumer group.
//
// Each assigned partition is processed by its own goroutine. Records within
// a partition are committed and then processed one at a time in offset order.
type Runtime struct {
	log                  *slog.Logger
	brokers              []string
	groupID              string
	topics               map[string]partitionOrchestrator
	sessionTimeout       time.Duration
	rebalanceTimeout     time.Duration
	fetchMaxBytes        int32
	maxConcurrentFetches int
	tlsConfig            *tls.Config
}

// ProcessQueue implements the [queue.QueueRuntime] interface.
func (r Runtime) ProcessQueue(ctx context.Context) error {
	loop := newEventLoop(ctx, r.log, r.topics)

	topics := make([]string, 0, len(r.topics))
	for topic := range r.topics {
		topics = append(topics, topic)
	}

	opts := append(
		clientOpts(r.brokers, r.tlsConfig, r.groupID),
		kgo.ConsumerGroup(r.groupID),
		kgo.ConsumeTopics(topics...),
		kgo.Balancers(kgo.CooperativeStickyBalancer()),
		kgo.SessionTimeout(r.sessionTimeout),
		kgo.RebalanceTimeout(r.rebalanceTimeout),
		kgo.FetchMaxBytes(r.fetchMaxBytes),
		kgo.MaxConcurrentFetches(r.maxConcurrentFetches),
		kgo.DisableAutoCommit(),
		kgo.OnPartitionsAssigned(func(cbCtx context.Context, c *kgo.Client, m map[string][]int32) {
			loop.onPartitionsAssigned(ctx)(cbCtx, c, m)
		}),
		kgo.OnPartitionsRevoked(loop.onPartitionsRevoked(ctx)),
		kgo.OnPartitionsLost(loop.onPartitionsLost(ctx)),
	)

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return fmt.Errorf("kafka: failed to create client: %w", err)
	}
	defer client.Close()

	p := pool.New().WithContext(ctx)
	p.Go(loop.fetchRecords(client))
	p.Go(loop.run)

	return p.Wait()
}

// Build creates an app.Builder for a Kafka runtime which consumes topic
// with at-most-once delivery.
//
// Example:
//
//	builder := kafka.Build(kafka.ConfigFromEnv(), "nutrition", kafka.Values(intakeProcessor))
func Build(cfg Config, topic string, processor queue.Processor[Message]) app.Builder[queue.QueueRuntime] {
	return app.BuilderFunc[queue.QueueRuntime](func(ctx context.Context) (queue.QueueRuntime, error) {
		if topic == "" {
			return nil, errors.New("kafka: a topic must be configured")
		}

		brokers := config.Must(ctx, cfg.Brokers)
		groupID := config.Must(ctx, cfg.GroupID)

		sessionTimeout := config.MustOr(ctx, 45*time.Second, cfg.SessionTimeout)
		rebalanceTimeout := config.MustOr(ctx, 30*time.Second, cfg.RebalanceTimeout)
		fetchMaxBytes := config.MustOr(ctx, int32(50*1024*1024), cfg.FetchMaxBytes)
		maxConcurrentFetches := config.MustOr(ctx, 0, cfg.MaxConcurrentFetches)
		tlsConfig := config.MustOr(ctx, (*tls.Config)(nil), cfg.TLSConfig)

		runtime := Runtime{
			log:     logger().With(GroupIDAttr(groupID)),
			brokers: brokers,
			groupID: groupID,
			topics: map[string]partitionOrchestrator{
				topic: newAtMostOnceOrchestrator(groupID, processor),
			},
			sessionTimeout:       sessionTimeout,
			rebalanceTimeout:     rebalanceTimeout,
			fetchMaxBytes:        fetchMaxBytes,
			maxConcurrentFetches: maxConcurrentFetches,
			tlsConfig:            tlsConfig,
		}

		return runtime, nil
	})
}
