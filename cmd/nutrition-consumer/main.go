// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"os"

	consumer "github.com/z5labs/nutrition/cmd/nutrition-consumer/app"
	"github.com/z5labs/nutrition/otel"
	"github.com/z5labs/nutrition/queue"
)

func main() {
	cfg := consumer.ConfigFromEnv()

	builder := otel.Build(
		otel.FromEnv("nutrition-consumer"),
		consumer.Build(cfg, consumer.Kafka(cfg.Kafka)),
	)

	err := queue.Run(context.Background(), builder)
	if err != nil {
		os.Exit(1)
	}
}
