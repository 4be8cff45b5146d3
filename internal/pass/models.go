// Package pass owns the gate-pass record and its approval state machine:
// resident submission, guardian and supervisor decisions, QR issuance, and
// exit/entry recording at the physical gate.
package pass

import (
	"time"

	id "passgate/pkg/domain"
)

// Status is the pass's position in the approval flow. Transitions are
// monotonic: PENDING_GUARDIAN -> PENDING_SUPERVISOR -> APPROVED, with
// REJECTED reachable from either pending state. APPROVED is terminal for
// status; later exit/entry recording never changes it.
type Status string

const (
	StatusPendingGuardian   Status = "PENDING_GUARDIAN"
	StatusPendingSupervisor Status = "PENDING_SUPERVISOR"
	StatusApproved          Status = "APPROVED"
	StatusRejected          Status = "REJECTED"
)

// Terminal reports whether no further status transition is possible.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Pending reports whether the pass still awaits a decision.
func (s Status) Pending() bool {
	return s == StatusPendingGuardian || s == StatusPendingSupervisor
}

// GatePass is one resident's exit authorization for the half-open validity
// window [FromDate, ToDate). QRToken is set exactly when the pass has reached
// APPROVED and is globally unique across all passes.
type GatePass struct {
	ID         id.PassID `json:"id"`
	ResidentID id.UserID `json:"resident_id"`
	Reason     string    `json:"reason"`
	FromDate   time.Time `json:"from_date"`
	ToDate     time.Time `json:"to_date"`
	Status     Status    `json:"status"`
	QRToken    string    `json:"qr_token,omitempty"`

	GuardianActedBy *id.UserID `json:"guardian_acted_by,omitempty"`
	GuardianActedAt *time.Time `json:"guardian_acted_at,omitempty"`
	GuardianReason  string     `json:"guardian_reason,omitempty"`

	SupervisorActedBy *id.UserID `json:"supervisor_acted_by,omitempty"`
	SupervisorActedAt *time.Time `json:"supervisor_acted_at,omitempty"`
	SupervisorReason  string     `json:"supervisor_reason,omitempty"`

	ValidatedBy *id.UserID `json:"validated_by,omitempty"`
	ValidatedAt *time.Time `json:"validated_at,omitempty"`

	ExitAt          *time.Time `json:"exit_at,omitempty"`
	ExitRecordedBy  *id.UserID `json:"exit_recorded_by,omitempty"`
	EntryAt         *time.Time `json:"entry_at,omitempty"`
	EntryRecordedBy *id.UserID `json:"entry_recorded_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CurrentlyOutside reports whether the resident has exited on this pass and
// not yet re-entered. A new exit clears the prior entry fields, so this holds
// for at most one outside period at a time.
func (p *GatePass) CurrentlyOutside() bool {
	return p.ExitAt != nil && p.EntryAt == nil
}

// Overlaps reports whether the pass's validity window intersects the
// half-open interval [from, to).
func (p *GatePass) Overlaps(from, to time.Time) bool {
	return p.FromDate.Before(to) && from.Before(p.ToDate)
}

// Decision is a supervisor's ruling on a pass. AdminOverride relaxes the
// status precondition: approve may bypass PENDING_GUARDIAN, and reject may
// cancel any non-terminal pass. Only admins may set it.
type Decision struct {
	Actor         id.Actor
	Reason        string
	AdminOverride bool
}

// ValidationOutcome classifies a QR token presented at the gate.
type ValidationOutcome string

const (
	ValidationInvalid      ValidationOutcome = "invalid"
	ValidationExpired      ValidationOutcome = "expired"
	ValidationNotYetActive ValidationOutcome = "not_yet_active"
	ValidationValid        ValidationOutcome = "valid"
)

// ValidationResult is the gate staff's answer for one scanned token.
// ResidentOutside is set on the expired outcome when the resident exited and
// never re-entered, which operations staff must follow up on urgently.
type ValidationResult struct {
	Outcome         ValidationOutcome `json:"outcome"`
	Pass            *GatePass         `json:"pass,omitempty"`
	ResidentOutside bool              `json:"resident_outside,omitempty"`
}

// EntryResult reports a recorded re-entry, with lateness relative to the
// pass's ToDate.
type EntryResult struct {
	Pass *GatePass `json:"pass"`
	Late bool      `json:"late"`
	Note string    `json:"note,omitempty"`
}

// Page bounds a pass listing.
type Page struct {
	Offset int
	Limit  int
}
