// Package settings owns the singleton policy record consulted on every
// pass-request and attendance-mark evaluation: the geofence reference point,
// the attendance window and the pass-issuing knobs. Only admins mutate it.
package settings

import "time"

// Settings is the single system-wide policy record.
type Settings struct {
	ReferenceLatitude    float64   `json:"reference_latitude"`
	ReferenceLongitude   float64   `json:"reference_longitude"`
	GeofenceRadiusMeters float64   `json:"geofence_radius_meters"`
	WindowEnabled        bool      `json:"attendance_window_enabled"`
	WindowStartHour      int       `json:"attendance_window_start_hour"`
	WindowEndHour        int       `json:"attendance_window_end_hour"`
	Timezone             string    `json:"timezone"`
	GraceMinutes         int       `json:"grace_period_minutes"`
	MaxGatePassDays      int       `json:"max_gate_pass_days"`
	MaxPendingPasses     int       `json:"max_pending_passes"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Defaults returns the policy used until an admin saves one.
func Defaults() Settings {
	return Settings{
		ReferenceLatitude:    0,
		ReferenceLongitude:   0,
		GeofenceRadiusMeters: 100,
		WindowEnabled:        false,
		WindowStartHour:      20,
		WindowEndHour:        22,
		Timezone:             "UTC",
		GraceMinutes:         15,
		MaxGatePassDays:      7,
		MaxPendingPasses:     2,
	}
}
