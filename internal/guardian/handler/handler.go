// Package handler exposes guardian-link management over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"passgate/internal/guardian"
	"passgate/internal/platform/metrics"
	"passgate/internal/platform/middleware"
	"passgate/internal/transport/http/shared"
	id "passgate/pkg/domain"
	dErrors "passgate/pkg/domain-errors"
)

// Service defines the interface for guardian-link operations.
type Service interface {
	Link(ctx context.Context, guardianID, residentID id.UserID, relationship string, actor id.Actor) (*guardian.Link, error)
	Unlink(ctx context.Context, guardianID, residentID id.UserID, actor id.Actor) error
	ResidentsOf(ctx context.Context, guardianID id.UserID) ([]id.UserID, error)
}

// Handler handles guardian-link endpoints.
type Handler struct {
	logger       *slog.Logger
	links        Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new guardian-link Handler.
func New(
	links Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		links:        links,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the guardian-link routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	linkRouter := chi.NewRouter()
	linkRouter.Use(middleware.Recovery(h.logger))
	linkRouter.Use(middleware.RequestID)
	linkRouter.Use(middleware.Logger(h.logger))
	linkRouter.Use(middleware.Timeout(30 * time.Second))
	linkRouter.Use(middleware.ContentTypeJSON)
	linkRouter.Use(middleware.LatencyMiddleware(h.metrics))
	linkRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	linkRouter.Post("/", h.handleLink)
	linkRouter.Post("/deactivate", h.handleUnlink)
	linkRouter.Get("/residents", h.handleResidents)

	r.Mount("/guardian-links", linkRouter)
}

type linkRequest struct {
	GuardianID   string `json:"guardian_id"`
	ResidentID   string `json:"resident_id"`
	Relationship string `json:"relationship"`
}

func (h *Handler) handleLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	req, guardianID, residentID, ok := h.decodeLinkRequest(w, r)
	if !ok {
		return
	}

	link, err := h.links.Link(ctx, guardianID, residentID, req.Relationship, actor)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to create guardian link",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, link)
}

func (h *Handler) handleUnlink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	_, guardianID, residentID, ok := h.decodeLinkRequest(w, r)
	if !ok {
		return
	}

	if err := h.links.Unlink(ctx, guardianID, residentID, actor); err != nil {
		h.logger.WarnContext(ctx, "failed to deactivate guardian link",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleResidents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if actor.Role != id.RoleGuardian {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "only guardians may list their residents"))
		return
	}

	residents, err := h.links.ResidentsOf(ctx, actor.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list linked residents",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string][]id.UserID{"residents": residents})
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (id.Actor, bool) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		h.logger.ErrorContext(r.Context(), "actor missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(r.Context()),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return id.Actor{}, false
	}
	return actor, true
}

func (h *Handler) decodeLinkRequest(w http.ResponseWriter, r *http.Request) (linkRequest, id.UserID, id.UserID, bool) {
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return req, id.UserID{}, id.UserID{}, false
	}
	guardianID, err := id.ParseUserID(req.GuardianID)
	if err != nil {
		shared.WriteError(w, err)
		return req, id.UserID{}, id.UserID{}, false
	}
	residentID, err := id.ParseUserID(req.ResidentID)
	if err != nil {
		shared.WriteError(w, err)
		return req, id.UserID{}, id.UserID{}, false
	}
	return req, guardianID, residentID, true
}
