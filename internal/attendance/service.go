package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"passgate/internal/geofence"
	"passgate/internal/settings"
	id "passgate/pkg/domain"
	dErrors "passgate/pkg/domain-errors"
	"passgate/pkg/platform/sentinel"
)

// Store persists attendance records. Create must enforce (resident, day)
// uniqueness at the storage layer and return sentinel.ErrAlreadyUsed on a
// duplicate, because concurrent marks can interleave between an existence
// check and the insert.
type Store interface {
	Create(ctx context.Context, record Record) error
	FindByResidentAndDay(ctx context.Context, residentID id.UserID, day string) (Record, error)
	ListByDay(ctx context.Context, day string) ([]Record, error)
}

// SettingsSource yields the active system policy.
type SettingsSource interface {
	Get(ctx context.Context) (settings.Settings, error)
}

// MetricsRecorder counts successful marks; the metrics package satisfies it.
type MetricsRecorder interface {
	IncAttendanceMarked()
}

type noopMetrics struct{}

func (noopMetrics) IncAttendanceMarked() {}

// Service applies the geofence and time-window policies and writes the
// daily record.
type Service struct {
	store   Store
	policy  SettingsSource
	logger  *slog.Logger
	metrics MetricsRecorder
	timeNow func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock injects a clock for testability.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.timeNow = now
		}
	}
}

// WithMetrics wires the attendance counter.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

func NewService(store Store, policy SettingsSource, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:   store,
		policy:  policy,
		logger:  logger,
		metrics: noopMetrics{},
		timeNow: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mark records today's attendance for the resident at the reported position.
// A repeated mark for the same day returns the existing record flagged
// AlreadyMarked rather than an error.
func (s *Service) Mark(ctx context.Context, residentID id.UserID, latitude, longitude float64) (MarkResult, error) {
	policy, err := s.policy.Get(ctx)
	if err != nil {
		return MarkResult{}, err
	}

	fence, err := geofence.Evaluate(
		policy.ReferenceLatitude, policy.ReferenceLongitude,
		latitude, longitude,
		policy.GeofenceRadiusMeters,
	)
	if err != nil {
		return MarkResult{}, err
	}
	if !fence.InsideFence {
		return MarkResult{}, dErrors.Newf(dErrors.CodeValidation,
			"outside attendance zone: you are %dm from the reference point, allowed radius is %dm",
			fence.DistanceMeters, int(policy.GeofenceRadiusMeters))
	}

	now := s.timeNow()
	window := Window{
		Enabled:      policy.WindowEnabled,
		StartHour:    policy.WindowStartHour,
		EndHour:      policy.WindowEndHour,
		Timezone:     policy.Timezone,
		GraceMinutes: policy.GraceMinutes,
	}
	inside, err := window.Contains(now)
	if err != nil {
		return MarkResult{}, err
	}
	if !inside {
		return MarkResult{}, dErrors.New(dErrors.CodeValidation,
			"attendance can only be marked during "+window.Describe())
	}

	loc, err := time.LoadLocation(policy.Timezone)
	if err != nil {
		return MarkResult{}, dErrors.New(dErrors.CodeInternal, "system timezone is invalid")
	}
	day := DayOf(now, loc)

	record := Record{
		ID:             uuid.New(),
		ResidentID:     residentID,
		Day:            day,
		MarkedAt:       now,
		Latitude:       latitude,
		Longitude:      longitude,
		DistanceMeters: fence.DistanceMeters,
	}
	if err := s.store.Create(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) || errors.Is(err, sentinel.ErrConflict) {
			// Concurrent or repeated mark: surface the stored record as a
			// normal "already done" response.
			existing, findErr := s.store.FindByResidentAndDay(ctx, residentID, day)
			if findErr != nil {
				return MarkResult{}, dErrors.Wrap(findErr, dErrors.CodeInternal, "failed to load existing attendance record")
			}
			return MarkResult{Record: existing, DistanceMeters: fence.DistanceMeters, AlreadyMarked: true}, nil
		}
		return MarkResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save attendance record")
	}

	s.metrics.IncAttendanceMarked()
	s.logger.InfoContext(ctx, "attendance marked",
		"resident_id", residentID.String(),
		"day", day,
		"distance_m", fence.DistanceMeters,
	)
	return MarkResult{Record: record, DistanceMeters: fence.DistanceMeters}, nil
}

// TodayStatus reports whether the resident has marked attendance today.
func (s *Service) TodayStatus(ctx context.Context, residentID id.UserID) (Record, bool, error) {
	policy, err := s.policy.Get(ctx)
	if err != nil {
		return Record{}, false, err
	}
	loc, err := time.LoadLocation(policy.Timezone)
	if err != nil {
		return Record{}, false, dErrors.New(dErrors.CodeInternal, "system timezone is invalid")
	}
	record, err := s.store.FindByResidentAndDay(ctx, residentID, DayOf(s.timeNow(), loc))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Record{}, false, nil
		}
		return Record{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attendance record")
	}
	return record, true, nil
}

// ListDay returns all records for one calendar day (supervisor dashboards).
func (s *Service) ListDay(ctx context.Context, actor id.Actor, day string) ([]Record, error) {
	if actor.Role != id.RoleSupervisor && actor.Role != id.RoleAdmin {
		return nil, dErrors.New(dErrors.CodeForbidden, "only supervisors or admins may list attendance")
	}
	if _, err := time.Parse("2006-01-02", day); err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("invalid day %q, expected YYYY-MM-DD", day))
	}
	records, err := s.store.ListByDay(ctx, day)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list attendance records")
	}
	return records, nil
}
