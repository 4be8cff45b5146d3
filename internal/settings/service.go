package settings

import (
	"context"
	"errors"
	"log/slog"
	"time"

	id "passgate/pkg/domain"
	dErrors "passgate/pkg/domain-errors"
	"passgate/pkg/platform/sentinel"
)

// Store persists the singleton settings record.
type Store interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}

// Service reads and mutates system settings. Reads fall back to Defaults
// when nothing has been saved yet so the system works out of the box.
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Get returns the active settings, falling back to defaults when no record
// has been saved yet.
func (s *Service) Get(ctx context.Context) (Settings, error) {
	loaded, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Defaults(), nil
		}
		return Settings{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load settings")
	}
	return loaded, nil
}

// Update replaces the settings record. Admin capability is required; the
// check lives here so every mutation path hits it.
func (s *Service) Update(ctx context.Context, actor id.Actor, updated Settings) (Settings, error) {
	if actor.Role != id.RoleAdmin {
		return Settings{}, dErrors.New(dErrors.CodeForbidden, "only admins may change system settings")
	}
	if err := validate(updated); err != nil {
		return Settings{}, err
	}
	updated.UpdatedAt = time.Now()
	if err := s.store.Save(ctx, updated); err != nil {
		return Settings{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save settings")
	}
	s.logger.InfoContext(ctx, "system settings updated", "actor_id", actor.ID.String())
	return updated, nil
}

func validate(s Settings) error {
	if s.GeofenceRadiusMeters <= 0 {
		return dErrors.New(dErrors.CodeValidation, "geofence radius must be positive")
	}
	if s.WindowStartHour < 0 || s.WindowStartHour > 23 || s.WindowEndHour < 0 || s.WindowEndHour > 24 {
		return dErrors.New(dErrors.CodeValidation, "attendance window hours out of range")
	}
	if s.WindowEnabled && s.WindowEndHour <= s.WindowStartHour {
		return dErrors.New(dErrors.CodeValidation, "attendance window must end after it starts")
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return dErrors.New(dErrors.CodeValidation, "unknown timezone")
	}
	if s.GraceMinutes < 0 {
		return dErrors.New(dErrors.CodeValidation, "grace period cannot be negative")
	}
	if s.MaxGatePassDays < 1 {
		return dErrors.New(dErrors.CodeValidation, "max gate pass days must be at least 1")
	}
	if s.MaxPendingPasses < 1 {
		return dErrors.New(dErrors.CodeValidation, "max pending passes must be at least 1")
	}
	return nil
}
