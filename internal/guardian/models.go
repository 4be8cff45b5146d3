// Package guardian maintains guardian-resident relationships. Links are
// soft-deleted (status flips to inactive) so the approval trail of old passes
// stays explainable.
package guardian

import (
	"time"

	id "passgate/pkg/domain"
)

// LinkStatus is the lifecycle state of a guardian link.
type LinkStatus string

const (
	LinkActive   LinkStatus = "active"
	LinkInactive LinkStatus = "inactive"
)

// Link is one guardian-resident relationship. At most one active link may
// exist per (guardian, resident) pair.
type Link struct {
	ID           id.LinkID  `json:"id"`
	GuardianID   id.UserID  `json:"guardian_id"`
	ResidentID   id.UserID  `json:"resident_id"`
	Relationship string     `json:"relationship"`
	LinkedBy     id.UserID  `json:"linked_by"`
	Status       LinkStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
