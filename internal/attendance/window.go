package attendance

import (
	"fmt"
	"time"

	dErrors "passgate/pkg/domain-errors"
)

// Window is the configured daily interval during which attendance may be
// marked, with a grace period tacked onto the end. Hours are interpreted in
// the configured timezone.
type Window struct {
	Enabled      bool
	StartHour    int
	EndHour      int
	Timezone     string
	GraceMinutes int
}

// Contains reports whether now falls inside the window, after normalizing to
// the window's timezone. The interval is [start, end+grace). A disabled
// window admits any time.
func (w Window) Contains(now time.Time) (bool, error) {
	if !w.Enabled {
		return true, nil
	}
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return false, dErrors.New(dErrors.CodeInternal, "attendance window has an unknown timezone")
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), w.StartHour, 0, 0, 0, loc)
	end := time.Date(local.Year(), local.Month(), local.Day(), w.EndHour, 0, 0, 0, loc).
		Add(time.Duration(w.GraceMinutes) * time.Minute)
	return !local.Before(start) && local.Before(end), nil
}

// Describe renders the window for user-facing rejection messages.
func (w Window) Describe() string {
	return fmt.Sprintf("%02d:00-%02d:00 (%s, +%dm grace)", w.StartHour, w.EndHour, w.Timezone, w.GraceMinutes)
}
