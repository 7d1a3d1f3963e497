// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package kafka implements the queue abstractions on top of Apache Kafka
// using the franz-go client.
//
// # Consuming
//
// [Build] returns an app.Builder for a [Runtime] which joins a consumer group
// and consumes a single topic with at-most-once delivery. Each assigned
// partition gets its own goroutine. Within a partition the offsets of a fetch
// are committed before any of its records are processed and records are then
// processed one at a time in offset order, so a record is never delivered
// twice but may be lost if processing fails or the process exits.
//
//	builder := kafka.Build(
//	    kafka.ConfigFromEnv(),
//	    "nutrition",
//	    kafka.Values(processor),
//	)
//
// # Publishing
//
// [NewClient] creates a producer client which waits for all in-sync replicas
// to acknowledge each record. [Publisher] stamps every message with a
// message-id header before producing it and [Declarer] creates topics,
// treating an existing topic as success.
//
//	client, err := kafka.NewClient(ctx, kafka.ClientConfigFromEnv())
//	if err != nil {
//	    return err
//	}
//	err = kafka.Ping(ctx, client)
//	if err != nil {
//	    return err
//	}
//	err = kafka.NewDeclarer(client).Declare(ctx, "nutrition")
//
// # Environment Variables
//
//   - NUTRITION_BROKERS: comma separated seed brokers (default localhost:9092)
//   - NUTRITION_GROUP_ID: consumer group ID (default nutrition-consumer)
//   - NUTRITION_TLS_CERT_FILE, NUTRITION_TLS_KEY_FILE, NUTRITION_TLS_CA_FILE: enable TLS
//   - KAFKA_SESSION_TIMEOUT: consumer group session timeout (default 45s)
//   - KAFKA_REBALANCE_TIMEOUT: consumer group rebalance timeout (default 30s)
//   - KAFKA_FETCH_MAX_BYTES: maximum bytes per fetch (default 50MiB)
//   - KAFKA_MAX_CONCURRENT_FETCHES: maximum in-flight fetch requests (default unlimited)
//
// # Observability
//
// Clients are instrumented with kotel for traces and metrics and log through
// kslog. Processing a record starts a span linked to the producer span when
// one was propagated in the record headers.
package kafka
