// Package handler exposes the exit/entry ledger over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"passgate/internal/activity"
	"passgate/internal/platform/metrics"
	"passgate/internal/platform/middleware"
	"passgate/internal/transport/http/shared"
	id "passgate/pkg/domain"
	dErrors "passgate/pkg/domain-errors"
)

// Store defines the ledger queries the handler needs. The ledger has no
// service layer of its own; it is read-only at this boundary and writes come
// from the pass state machine.
type Store interface {
	List(ctx context.Context, filter activity.Filter, page activity.Page) ([]activity.Event, error)
}

// Handler handles activity-ledger endpoints.
type Handler struct {
	logger       *slog.Logger
	ledger       Store
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new activity Handler.
func New(
	ledger Store,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		ledger:       ledger,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the activity routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	activityRouter := chi.NewRouter()
	activityRouter.Use(middleware.Recovery(h.logger))
	activityRouter.Use(middleware.RequestID)
	activityRouter.Use(middleware.Logger(h.logger))
	activityRouter.Use(middleware.Timeout(30 * time.Second))
	activityRouter.Use(middleware.ContentTypeJSON)
	activityRouter.Use(middleware.LatencyMiddleware(h.metrics))
	activityRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	activityRouter.Get("/", h.handleList)

	r.Mount("/activity", activityRouter)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		h.logger.ErrorContext(ctx, "actor missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(ctx),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}
	switch actor.Role {
	case id.RoleSupervisor, id.RoleGateStaff, id.RoleAdmin:
	default:
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "this role may not view the activity ledger"))
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	offset, limit := shared.ParsePagination(r)

	events, err := h.ledger.List(ctx, filter, activity.Page{Offset: offset, Limit: limit})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list activity events",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to list activity events"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string][]activity.Event{"events": events})
}

func parseFilter(r *http.Request) (activity.Filter, error) {
	var filter activity.Filter
	query := r.URL.Query()

	if raw := query.Get("resident_id"); raw != "" {
		residentID, err := id.ParseUserID(raw)
		if err != nil {
			return activity.Filter{}, err
		}
		filter.ResidentID = residentID
	}
	switch query.Get("action") {
	case "":
	case string(activity.ActionExit):
		filter.Actions = []activity.Action{activity.ActionExit}
	case string(activity.ActionEntry):
		filter.Actions = []activity.Action{activity.ActionEntry}
	default:
		return activity.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "action must be EXIT or ENTRY")
	}
	if raw := query.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return activity.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "from must be an RFC3339 timestamp")
		}
		filter.From = from
	}
	if raw := query.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return activity.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "to must be an RFC3339 timestamp")
		}
		filter.To = to
	}
	return filter, nil
}
