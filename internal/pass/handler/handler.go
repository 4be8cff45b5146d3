// Package handler exposes the gate-pass workflow over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"passgate/internal/activity"
	"passgate/internal/pass"
	"passgate/internal/platform/metrics"
	"passgate/internal/platform/middleware"
	"passgate/internal/transport/http/shared"
	id "passgate/pkg/domain"
	dErrors "passgate/pkg/domain-errors"
)

// Service defines the interface for gate-pass operations.
type Service interface {
	Submit(ctx context.Context, actor id.Actor, reason string, from, to time.Time) (*pass.GatePass, error)
	GuardianApprove(ctx context.Context, passID id.PassID, actor id.Actor) (*pass.GatePass, error)
	GuardianReject(ctx context.Context, passID id.PassID, actor id.Actor, reason string) (*pass.GatePass, error)
	SupervisorApprove(ctx context.Context, passID id.PassID, d pass.Decision) (*pass.GatePass, error)
	SupervisorReject(ctx context.Context, passID id.PassID, d pass.Decision) (*pass.GatePass, error)
	ValidateToken(ctx context.Context, token string, actor id.Actor) (pass.ValidationResult, error)
	RecordExit(ctx context.Context, passID id.PassID, actor id.Actor) (*pass.GatePass, error)
	RecordEntry(ctx context.Context, passID id.PassID, actor id.Actor) (*pass.EntryResult, error)
	Get(ctx context.Context, passID id.PassID, actor id.Actor) (*pass.GatePass, error)
	Timeline(ctx context.Context, passID id.PassID, actor id.Actor) ([]activity.Event, error)
	PendingForSupervisor(ctx context.Context, actor id.Actor, page pass.Page) ([]*pass.GatePass, error)
	PendingForGuardian(ctx context.Context, actor id.Actor) ([]*pass.GatePass, error)
	History(ctx context.Context, actor id.Actor, page pass.Page) ([]*pass.GatePass, error)
	CurrentlyOutside(ctx context.Context, actor id.Actor) ([]*pass.GatePass, error)
	TodayEntries(ctx context.Context, actor id.Actor) ([]*pass.GatePass, error)
	PendingCount(ctx context.Context, residentID id.UserID) (int, error)
}

// Handler handles gate-pass endpoints.
type Handler struct {
	logger       *slog.Logger
	passes       Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new gate-pass Handler.
func New(
	passes Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		passes:       passes,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the gate-pass routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	passRouter := chi.NewRouter()
	passRouter.Use(middleware.Recovery(h.logger))
	passRouter.Use(middleware.RequestID)
	passRouter.Use(middleware.Logger(h.logger))
	passRouter.Use(middleware.Timeout(30 * time.Second))
	passRouter.Use(middleware.ContentTypeJSON)
	passRouter.Use(middleware.LatencyMiddleware(h.metrics))
	passRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	passRouter.Post("/", h.handleSubmit)
	passRouter.Get("/", h.handleHistory)
	passRouter.Get("/pending/supervisor", h.handlePendingForSupervisor)
	passRouter.Get("/pending/guardian", h.handlePendingForGuardian)
	passRouter.Get("/pending/count", h.handlePendingCount)
	passRouter.Get("/outside", h.handleCurrentlyOutside)
	passRouter.Get("/entries/today", h.handleTodayEntries)
	passRouter.Post("/validate", h.handleValidateToken)
	passRouter.Get("/{passID}", h.handleGet)
	passRouter.Get("/{passID}/timeline", h.handleTimeline)
	passRouter.Post("/{passID}/guardian/approve", h.handleGuardianApprove)
	passRouter.Post("/{passID}/guardian/reject", h.handleGuardianReject)
	passRouter.Post("/{passID}/approve", h.handleSupervisorApprove)
	passRouter.Post("/{passID}/reject", h.handleSupervisorReject)
	passRouter.Post("/{passID}/exit", h.handleRecordExit)
	passRouter.Post("/{passID}/entry", h.handleRecordEntry)

	r.Mount("/passes", passRouter)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.warn(ctx, "invalid submit request", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	created, err := h.passes.Submit(ctx, actor, req.Reason, req.FromDate, req.ToDate)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to submit pass", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGuardianApprove(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, func(ctx context.Context, passID id.PassID, actor id.Actor, _ decisionRequest) (any, error) {
		return h.passes.GuardianApprove(ctx, passID, actor)
	})
}

func (h *Handler) handleGuardianReject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, func(ctx context.Context, passID id.PassID, actor id.Actor, req decisionRequest) (any, error) {
		return h.passes.GuardianReject(ctx, passID, actor, req.Reason)
	})
}

func (h *Handler) handleSupervisorApprove(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, func(ctx context.Context, passID id.PassID, actor id.Actor, req decisionRequest) (any, error) {
		return h.passes.SupervisorApprove(ctx, passID, pass.Decision{
			Actor:         actor,
			Reason:        req.Reason,
			AdminOverride: req.AdminOverride,
		})
	})
}

func (h *Handler) handleSupervisorReject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, func(ctx context.Context, passID id.PassID, actor id.Actor, req decisionRequest) (any, error) {
		return h.passes.SupervisorReject(ctx, passID, pass.Decision{
			Actor:         actor,
			Reason:        req.Reason,
			AdminOverride: req.AdminOverride,
		})
	})
}

func (h *Handler) handleValidateToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.warn(ctx, "invalid validate request", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.passes.ValidateToken(ctx, req.Token, actor)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to validate token", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleRecordExit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	passID, ok := h.passID(w, r)
	if !ok {
		return
	}

	updated, err := h.passes.RecordExit(ctx, passID, actor)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to record exit", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleRecordEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	passID, ok := h.passID(w, r)
	if !ok {
		return
	}

	result, err := h.passes.RecordEntry(ctx, passID, actor)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to record entry", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	passID, ok := h.passID(w, r)
	if !ok {
		return
	}

	found, err := h.passes.Get(ctx, passID, actor)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to load pass", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, found)
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	passID, ok := h.passID(w, r)
	if !ok {
		return
	}

	events, err := h.passes.Timeline(ctx, passID, actor)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to load timeline", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, listResponse[activity.Event]{Items: events})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(ctx context.Context, actor id.Actor, page pass.Page) ([]*pass.GatePass, error) {
		return h.passes.History(ctx, actor, page)
	})
}

func (h *Handler) handlePendingForSupervisor(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(ctx context.Context, actor id.Actor, page pass.Page) ([]*pass.GatePass, error) {
		return h.passes.PendingForSupervisor(ctx, actor, page)
	})
}

func (h *Handler) handlePendingForGuardian(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(ctx context.Context, actor id.Actor, _ pass.Page) ([]*pass.GatePass, error) {
		return h.passes.PendingForGuardian(ctx, actor)
	})
}

func (h *Handler) handleCurrentlyOutside(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(ctx context.Context, actor id.Actor, _ pass.Page) ([]*pass.GatePass, error) {
		return h.passes.CurrentlyOutside(ctx, actor)
	})
}

func (h *Handler) handleTodayEntries(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(ctx context.Context, actor id.Actor, _ pass.Page) ([]*pass.GatePass, error) {
		return h.passes.TodayEntries(ctx, actor)
	})
}

func (h *Handler) handlePendingCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	count, err := h.passes.PendingCount(ctx, actor.ID)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to count pending passes", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, pendingCountResponse{Pending: count})
}

func (h *Handler) decide(
	w http.ResponseWriter,
	r *http.Request,
	action func(context.Context, id.PassID, id.Actor, decisionRequest) (any, error),
) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	passID, ok := h.passID(w, r)
	if !ok {
		return
	}

	var req decisionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.warn(ctx, "invalid decision request", err)
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}

	result, err := action(ctx, passID, actor, req)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to apply decision", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) list(
	w http.ResponseWriter,
	r *http.Request,
	query func(context.Context, id.Actor, pass.Page) ([]*pass.GatePass, error),
) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	offset, limit := shared.ParsePagination(r)

	passes, err := query(ctx, actor, pass.Page{Offset: offset, Limit: limit})
	if err != nil {
		h.writeServiceError(ctx, w, "failed to list passes", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, listResponse[*pass.GatePass]{Items: passes})
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (id.Actor, bool) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		// This should never happen if RequireAuth middleware is configured correctly
		h.logger.ErrorContext(r.Context(), "actor missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(r.Context()),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return id.Actor{}, false
	}
	return actor, true
}

func (h *Handler) passID(w http.ResponseWriter, r *http.Request) (id.PassID, bool) {
	passID, err := id.ParsePassID(chi.URLParam(r, "passID"))
	if err != nil {
		shared.WriteError(w, err)
		return id.PassID{}, false
	}
	return passID, true
}

func (h *Handler) warn(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", middleware.GetRequestID(ctx),
		"error", err.Error(),
	)
}

// writeServiceError logs unexpected failures and renders the coded error.
// Validation, authorization and state errors pass through with their
// user-facing messages.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
	} else {
		h.warn(ctx, msg, err)
	}
	shared.WriteError(w, err)
}
