// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
)

type consumerMetrics struct {
	messagesProcessed metric.Int64Counter
	messagesCommitted metric.Int64Counter
}

// initConsumerMetrics falls back to no-op counters so a misconfigured
// meter never stops consumption.
func initConsumerMetrics(log *slog.Logger) consumerMetrics {
	m := meter()
	noop := metricnoop.Meter{}

	messagesProcessed, err := m.Int64Counter(
		"messaging.client.messages.processed",
		metric.WithDescription("Total number of Kafka messages processed"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		log.Warn("failed to create messages processed metric", slog.Any("error", err))
		messagesProcessed, _ = noop.Int64Counter("messaging.client.messages.processed")
	}

	messagesCommitted, err := m.Int64Counter(
		"messaging.client.messages.committed",
		metric.WithDescription("Total number of Kafka messages successfully committed"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		log.Warn("failed to create messages committed metric", slog.Any("error", err))
		messagesCommitted, _ = noop.Int64Counter("messaging.client.messages.committed")
	}

	return consumerMetrics{
		messagesProcessed: messagesProcessed,
		messagesCommitted: messagesCommitted,
	}
}

type producerMetrics struct {
	messagesPublished metric.Int64Counter
}

func initProducerMetrics(log *slog.Logger) producerMetrics {
	messagesPublished, err := meter().Int64Counter(
		"nutrition.messages.published",
		metric.WithDescription("Total number of nutrition messages published"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		log.Warn("failed to create messages published metric", slog.Any("error", err))
		messagesPublished, _ = metricnoop.Meter{}.Int64Counter("nutrition.messages.published")
	}

	return producerMetrics{
		messagesPublished: messagesPublished,
	}
}
