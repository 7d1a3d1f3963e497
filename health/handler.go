// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package health

import (
	"log/slog"
	"net/http"

	"github.com/z5labs/nutrition"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	LivenessPath  = "/health/liveness"
	ReadinessPath = "/health/readiness"
)

// NewHandler serves [LivenessPath] and [ReadinessPath]. Each responds
// 200 OK while its monitor is healthy and 503 Service Unavailable otherwise.
func NewHandler(liveness, readiness Monitor) http.Handler {
	log := nutrition.Logger("github.com/z5labs/nutrition/health")

	m := chi.NewMux()
	m.Method(http.MethodGet, LivenessPath, otelhttp.WithRouteTag(LivenessPath, monitorHandler(log, liveness)))
	m.Method(http.MethodGet, ReadinessPath, otelhttp.WithRouteTag(ReadinessPath, monitorHandler(log, readiness)))

	return otelhttp.NewHandler(m, "health")
}

func monitorHandler(log *slog.Logger, m Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		healthy, err := m.Healthy(r.Context())
		if err != nil {
			log.WarnContext(
				r.Context(),
				"failed to check health",
				slog.String("path", r.URL.Path),
				slog.Any("error", err),
			)
		}
		if !healthy || err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
