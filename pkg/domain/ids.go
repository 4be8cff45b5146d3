// Package domain holds shared domain primitives: typed identifiers and the
// closed role set. Typed IDs prevent cross-entity assignment at compile time;
// construct them via the ParseXxxID helpers at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "passgate/pkg/domain-errors"
)

// UserID identifies any account in the directory (resident, guardian,
// supervisor, gate staff or admin).
type UserID uuid.UUID

// PassID identifies a gate pass.
type PassID uuid.UUID

// LinkID identifies a guardian-resident link.
type LinkID uuid.UUID

// EventID identifies an activity-log entry.
type EventID uuid.UUID

// NewUserID mints a random UserID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewPassID mints a random PassID.
func NewPassID() PassID { return PassID(uuid.New()) }

// NewLinkID mints a random LinkID.
func NewLinkID() LinkID { return LinkID(uuid.New()) }

// NewEventID mints a random EventID.
func NewEventID() EventID { return EventID(uuid.New()) }

func (id UserID) String() string { return uuid.UUID(id).String() }
func (id PassID) String() string { return uuid.UUID(id).String() }
func (id LinkID) String() string { return uuid.UUID(id).String() }
func (id EventID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PassID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id LinkID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+what)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be nil")
	}
	return parsed, nil
}

// ParseUserID constructs a UserID from external input.
func ParseUserID(s string) (UserID, error) {
	parsed, err := parseUUID(s, "user id")
	return UserID(parsed), err
}

// ParsePassID constructs a PassID from external input.
func ParsePassID(s string) (PassID, error) {
	parsed, err := parseUUID(s, "pass id")
	return PassID(parsed), err
}

// ParseLinkID constructs a LinkID from external input.
func ParseLinkID(s string) (LinkID, error) {
	parsed, err := parseUUID(s, "link id")
	return LinkID(parsed), err
}
