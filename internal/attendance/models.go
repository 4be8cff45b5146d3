// Package attendance produces at-most-one geofenced presence record per
// resident per calendar day, inside a configured daily time window.
package attendance

import (
	"time"

	"github.com/google/uuid"

	id "passgate/pkg/domain"
)

// Record is one resident's attendance mark for one calendar day. Day is the
// calendar date in the configured timezone, formatted YYYY-MM-DD; (resident,
// day) is unique at the storage layer.
type Record struct {
	ID             uuid.UUID `json:"id"`
	ResidentID     id.UserID `json:"resident_id"`
	Day            string    `json:"day"`
	MarkedAt       time.Time `json:"marked_at"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	DistanceMeters int       `json:"distance_meters"`
	Manual         bool      `json:"manual"`
}

// MarkResult is returned to the caller for user feedback. AlreadyMarked is
// set when a concurrent or repeated mark hit the (resident, day) constraint;
// that outcome is a normal response, not a failure.
type MarkResult struct {
	Record         Record `json:"record"`
	DistanceMeters int    `json:"distance_meters"`
	AlreadyMarked  bool   `json:"already_marked"`
}

// DayOf formats t as a calendar day in loc.
func DayOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
