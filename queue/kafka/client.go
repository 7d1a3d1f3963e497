// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/z5labs/nutrition/config"
	"github.com/z5labs/nutrition/queue"

	"github.com/twmb/franz-go/pkg/kgo"
)

// ClientConfig configures a producing and administrative Kafka client.
type ClientConfig struct {
	Brokers   config.Reader[[]string]
	TLSConfig config.Reader[*tls.Config]
}

// ClientConfigFromEnv reads the brokers and TLS settings from the environment.
func ClientConfigFromEnv() ClientConfig {
	return ClientConfig{
		Brokers:   BrokersFromEnv(),
		TLSConfig: TLSConfigFromEnv(),
	}
}

// NewClient creates a client whose produced records are acknowledged by
// every in-sync replica. The client connects lazily; use [Ping] to verify
// the brokers are reachable.
func NewClient(ctx context.Context, cfg ClientConfig) (*kgo.Client, error) {
	brokers, err := config.Read(ctx, cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("kafka: read brokers: %w", err)
	}

	tlsConfig := config.MustOr(ctx, (*tls.Config)(nil), cfg.TLSConfig)

	opts := append(
		clientOpts(brokers, tlsConfig, ""),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka: failed to create client: %w", err)
	}
	return client, nil
}

type pinger interface {
	Ping(context.Context) error
}

// Ping returns an error wrapping [queue.ErrConnectionFailure] if none of
// the seed brokers can be reached.
func Ping(ctx context.Context, client pinger) error {
	err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", queue.ErrConnectionFailure, err)
	}
	return nil
}
