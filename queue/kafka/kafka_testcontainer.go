//go:build testcontainers

// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/z5labs/nutrition/config"
	"github.com/z5labs/nutrition/queue"

	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/twmb/franz-go/pkg/kgo"
)

// setupKafkaContainer starts a single node KRaft broker on the host network
// and returns its address. The container is terminated when the test ends.
func setupKafkaContainer(t *testing.T) []string {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image: "docker.io/apache/kafka-native:latest",
		HostConfigModifier: func(hc *container.HostConfig) {
			// Advertised listeners must match the address clients dial.
			hc.NetworkMode = "host"
		},
		User: "root",
		Env: map[string]string{
			"KAFKA_NODE_ID":                   "1",
			"KAFKA_PROCESS_ROLES":             "broker,controller",
			"KAFKA_CONTROLLER_QUORUM_VOTERS":  "1@localhost:9093",
			"KAFKA_CONTROLLER_LISTENER_NAMES": "CONTROLLER",

			"KAFKA_LISTENERS":                      "PLAINTEXT://0.0.0.0:9092,CONTROLLER://0.0.0.0:9093",
			"KAFKA_ADVERTISED_LISTENERS":           "PLAINTEXT://localhost:9092",
			"KAFKA_LISTENER_SECURITY_PROTOCOL_MAP": "PLAINTEXT:PLAINTEXT,CONTROLLER:PLAINTEXT",
			"KAFKA_INTER_BROKER_LISTENER_NAME":     "PLAINTEXT",

			"KAFKA_LOG_DIRS":   "/var/lib/kafka/data",
			"KAFKA_CLUSTER_ID": "WmV3pZkQR0O6n5j3x8j6bg==",

			"KAFKA_OFFSETS_TOPIC_REPLICATION_FACTOR":         "1",
			"KAFKA_TRANSACTION_STATE_LOG_REPLICATION_FACTOR": "1",
			"KAFKA_TRANSACTION_STATE_LOG_MIN_ISR":            "1",
			"KAFKA_GROUP_INITIAL_REBALANCE_DELAY_MS":         "0",
			"KAFKA_AUTO_CREATE_TOPICS_ENABLE":                "false",
		},
		WaitingFor: wait.ForLog("Kafka Server started").WithStartupTimeout(60 * time.Second),
	}

	kafkaContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start Kafka container")

	t.Cleanup(func() {
		err := kafkaContainer.Terminate(context.Background())
		if err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
	})

	brokers := []string{"localhost:9092"}
	require.Eventually(t, func() bool {
		client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
		if err != nil {
			return false
		}
		defer client.Close()
		return Ping(ctx, client) == nil
	}, 30*time.Second, 500*time.Millisecond, "Kafka broker never became reachable")

	return brokers
}

// newTestClient creates a client for the container brokers which is closed when the test ends.
func newTestClient(t *testing.T, brokers []string) *kgo.Client {
	t.Helper()

	client, err := NewClient(context.Background(), ClientConfig{
		Brokers: config.ReaderOf(brokers),
	})
	require.NoError(t, err, "failed to create Kafka client")
	t.Cleanup(client.Close)

	return client
}

// publishValues declares topic and publishes each value keyed by its index.
func publishValues(t *testing.T, brokers []string, topic string, values ...string) {
	t.Helper()

	ctx := context.Background()
	client := newTestClient(t, brokers)

	require.NoError(t, NewDeclarer(client).Declare(ctx, topic))

	p := NewPublisher(client, topic)
	for i, v := range values {
		err := p.Publish(ctx, Message{
			Key:   []byte(fmt.Sprintf("key-%d", i)),
			Value: []byte(v),
		})
		require.NoError(t, err, "failed to publish message %d", i)
	}
}

// newTestRuntime creates a new Runtime instance for testing.
func newTestRuntime(t *testing.T, brokers []string, groupID, topic string, processor queue.Processor[Message]) Runtime {
	t.Helper()

	cfg := Config{
		Brokers: config.ReaderOf(brokers),
		GroupID: config.ReaderOf(groupID),
		// Short timeouts keep group joins fast against a single broker.
		SessionTimeout:   config.ReaderOf(6 * time.Second),
		RebalanceTimeout: config.ReaderOf(5 * time.Second),
	}

	runtime, err := Build(cfg, topic, processor).Build(context.Background())
	require.NoError(t, err)

	return runtime.(Runtime)
}

// requireStopped waits for a runtime started in the background to return.
func requireStopped(t *testing.T, done <-chan error) {
	t.Helper()

	select {
	case err := <-done:
		if err != nil {
			require.ErrorIs(t, err, context.Canceled)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("runtime did not stop after context cancellation")
	}
}
