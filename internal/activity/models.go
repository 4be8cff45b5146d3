// Package activity is the append-only ledger of physical exit/entry events.
// Entries are never updated after creation; they exist so audit and history
// queries do not depend on the mutable pass aggregate.
package activity

import (
	"time"

	id "passgate/pkg/domain"
)

// Action is the physical movement an event records.
type Action string

const (
	ActionExit  Action = "EXIT"
	ActionEntry Action = "ENTRY"
)

// Event is one immutable exit or entry record.
type Event struct {
	ID         id.EventID `json:"id"`
	PassID     id.PassID  `json:"pass_id"`
	ResidentID id.UserID  `json:"resident_id"`
	Action     Action     `json:"action"`
	Timestamp  time.Time  `json:"timestamp"`
	ActorID    id.UserID  `json:"actor_id"`
	Late       bool       `json:"late"`
	Note       string     `json:"note,omitempty"`
}

// Page bounds a ledger listing. Events are returned newest first.
type Page struct {
	Offset int
	Limit  int
}

// Filter narrows a ledger listing. Zero values mean "no restriction".
type Filter struct {
	ResidentID id.UserID
	Actions    []Action
	From       time.Time
	To         time.Time
}
