package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"passgate/pkg/platform/sentinel"
)

// PostgresStore persists the singleton settings row. The table holds exactly
// one row keyed by a constant id; saves upsert it.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed settings store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Load(ctx context.Context) (Settings, error) {
	query := `
		SELECT reference_latitude, reference_longitude, geofence_radius_meters,
		       window_enabled, window_start_hour, window_end_hour, timezone,
		       grace_minutes, max_gate_pass_days, max_pending_passes, updated_at
		FROM system_settings
		WHERE id = 1
	`
	var loaded Settings
	err := s.db.QueryRowContext(ctx, query).Scan(
		&loaded.ReferenceLatitude,
		&loaded.ReferenceLongitude,
		&loaded.GeofenceRadiusMeters,
		&loaded.WindowEnabled,
		&loaded.WindowStartHour,
		&loaded.WindowEndHour,
		&loaded.Timezone,
		&loaded.GraceMinutes,
		&loaded.MaxGatePassDays,
		&loaded.MaxPendingPasses,
		&loaded.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Settings{}, sentinel.ErrNotFound
		}
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return loaded, nil
}

func (s *PostgresStore) Save(ctx context.Context, settings Settings) error {
	query := `
		INSERT INTO system_settings (
			id, reference_latitude, reference_longitude, geofence_radius_meters,
			window_enabled, window_start_hour, window_end_hour, timezone,
			grace_minutes, max_gate_pass_days, max_pending_passes, updated_at
		)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			reference_latitude = EXCLUDED.reference_latitude,
			reference_longitude = EXCLUDED.reference_longitude,
			geofence_radius_meters = EXCLUDED.geofence_radius_meters,
			window_enabled = EXCLUDED.window_enabled,
			window_start_hour = EXCLUDED.window_start_hour,
			window_end_hour = EXCLUDED.window_end_hour,
			timezone = EXCLUDED.timezone,
			grace_minutes = EXCLUDED.grace_minutes,
			max_gate_pass_days = EXCLUDED.max_gate_pass_days,
			max_pending_passes = EXCLUDED.max_pending_passes,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		settings.ReferenceLatitude,
		settings.ReferenceLongitude,
		settings.GeofenceRadiusMeters,
		settings.WindowEnabled,
		settings.WindowStartHour,
		settings.WindowEndHour,
		settings.Timezone,
		settings.GraceMinutes,
		settings.MaxGatePassDays,
		settings.MaxPendingPasses,
		settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
