// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/z5labs/nutrition/app"
	producer "github.com/z5labs/nutrition/cmd/nutrition-producer/app"
	"github.com/z5labs/nutrition/otel"
)

func main() {
	cfg := producer.ConfigFromEnv()

	builder := otel.Build(
		otel.FromEnv("nutrition-producer"),
		producer.Build(cfg, producer.Kafka(cfg.Kafka)),
	)

	err := app.Run(context.Background(), builder)
	if err != nil {
		app.LogError(slog.NewJSONHandler(os.Stderr, nil), err)
		os.Exit(1)
	}
}
