// Package handler exposes system settings over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"passgate/internal/platform/metrics"
	"passgate/internal/platform/middleware"
	"passgate/internal/settings"
	"passgate/internal/transport/http/shared"
	id "passgate/pkg/domain"
	dErrors "passgate/pkg/domain-errors"
)

// Service defines the interface for settings operations.
type Service interface {
	Get(ctx context.Context) (settings.Settings, error)
	Update(ctx context.Context, actor id.Actor, updated settings.Settings) (settings.Settings, error)
}

// Handler handles settings endpoints.
type Handler struct {
	logger       *slog.Logger
	settings     Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new settings Handler.
func New(
	settingsService Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		settings:     settingsService,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the settings routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	settingsRouter := chi.NewRouter()
	settingsRouter.Use(middleware.Recovery(h.logger))
	settingsRouter.Use(middleware.RequestID)
	settingsRouter.Use(middleware.Logger(h.logger))
	settingsRouter.Use(middleware.Timeout(30 * time.Second))
	settingsRouter.Use(middleware.ContentTypeJSON)
	settingsRouter.Use(middleware.LatencyMiddleware(h.metrics))
	settingsRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	settingsRouter.Get("/", h.handleGet)
	settingsRouter.Put("/", h.handleUpdate)

	r.Mount("/settings", settingsRouter)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	current, err := h.settings.Get(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to load settings",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, current)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		h.logger.ErrorContext(ctx, "actor missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(ctx),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var updated settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&updated); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	saved, err := h.settings.Update(ctx, actor, updated)
	if err != nil {
		h.logger.WarnContext(ctx, "settings update rejected",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, saved)
}
