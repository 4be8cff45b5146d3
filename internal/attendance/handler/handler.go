// Package handler exposes attendance marking over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"passgate/internal/attendance"
	"passgate/internal/platform/metrics"
	"passgate/internal/platform/middleware"
	"passgate/internal/transport/http/shared"
	id "passgate/pkg/domain"
	dErrors "passgate/pkg/domain-errors"
)

// Service defines the interface for attendance operations.
type Service interface {
	Mark(ctx context.Context, residentID id.UserID, latitude, longitude float64) (attendance.MarkResult, error)
	TodayStatus(ctx context.Context, residentID id.UserID) (attendance.Record, bool, error)
	ListDay(ctx context.Context, actor id.Actor, day string) ([]attendance.Record, error)
}

// Handler handles attendance endpoints.
type Handler struct {
	logger       *slog.Logger
	attendance   Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new attendance Handler.
func New(
	attendanceService Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		attendance:   attendanceService,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the attendance routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	attendanceRouter := chi.NewRouter()
	attendanceRouter.Use(middleware.Recovery(h.logger))
	attendanceRouter.Use(middleware.RequestID)
	attendanceRouter.Use(middleware.Logger(h.logger))
	attendanceRouter.Use(middleware.Timeout(30 * time.Second))
	attendanceRouter.Use(middleware.ContentTypeJSON)
	attendanceRouter.Use(middleware.LatencyMiddleware(h.metrics))
	attendanceRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	attendanceRouter.Post("/", h.handleMark)
	attendanceRouter.Get("/today", h.handleToday)
	attendanceRouter.Get("/day/{day}", h.handleListDay)

	r.Mount("/attendance", attendanceRouter)
}

type markRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (h *Handler) handleMark(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	// Marking is a resident action; staff visibility goes through the day
	// listing instead.
	if actor.Role != id.RoleResident {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "only residents may mark attendance"))
		return
	}

	var req markRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.attendance.Mark(ctx, actor.ID, req.Latitude, req.Longitude)
	if err != nil {
		h.logger.WarnContext(ctx, "attendance mark rejected",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	status := http.StatusCreated
	if result.AlreadyMarked {
		status = http.StatusOK
	}
	shared.WriteJSON(w, status, result)
}

func (h *Handler) handleToday(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	record, found, err := h.attendance.TodayStatus(ctx, actor.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load today's attendance",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	if !found {
		shared.WriteJSON(w, http.StatusOK, map[string]bool{"marked": false})
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"marked": true, "record": record})
}

func (h *Handler) handleListDay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	records, err := h.attendance.ListDay(ctx, actor, chi.URLParam(r, "day"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string][]attendance.Record{"records": records})
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
