// Package httptransport assembles the feature handlers into the public HTTP
// surface, alongside the health and metrics endpoints.
package httptransport

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"passgate/internal/platform/redis"
	"passgate/internal/transport/http/shared"
)

// Registrar is implemented by every feature handler.
type Registrar interface {
	Register(r chi.Router)
}

// Deps carries everything the router needs.
type Deps struct {
	Handlers []Registrar
	DB       *sql.DB
	Redis    *redis.Client
}

// NewRouter wires all public endpoints.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", healthHandler(deps.DB, deps.Redis))
	r.Handle("/metrics", promhttp.Handler())

	for _, h := range deps.Handlers {
		h.Register(r)
	}
	return r
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
	Redis    string `json:"redis,omitempty"`
}

func healthHandler(db *sql.DB, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK

		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				resp.Status = "degraded"
				resp.Database = err.Error()
				status = http.StatusServiceUnavailable
			} else {
				resp.Database = "ok"
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				resp.Status = "degraded"
				resp.Redis = err.Error()
				status = http.StatusServiceUnavailable
			} else {
				resp.Redis = "ok"
			}
		}
		shared.WriteJSON(w, status, resp)
	}
}
