package guardian

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"passgate/internal/identity"
	id "passgate/pkg/domain"
	dErrors "passgate/pkg/domain-errors"
	"passgate/pkg/platform/sentinel"
)

// Store persists guardian links.
type Store interface {
	Create(ctx context.Context, link *Link) error
	FindActive(ctx context.Context, guardianID, residentID id.UserID) (*Link, error)
	Deactivate(ctx context.Context, guardianID, residentID id.UserID, at time.Time) error
	ListActiveByGuardian(ctx context.Context, guardianID id.UserID) ([]*Link, error)
	ListActiveByResident(ctx context.Context, residentID id.UserID) ([]*Link, error)
}

// Service enforces the registry rules: both ends of a link must carry the
// right directory role, and (guardian, resident) pairs are unique while
// active.
type Service struct {
	store     Store
	directory identity.Directory
	logger    *slog.Logger
}

func NewService(store Store, directory identity.Directory, logger *slog.Logger) *Service {
	return &Service{store: store, directory: directory, logger: logger}
}

// Link creates an active guardian-resident relationship.
func (s *Service) Link(ctx context.Context, guardianID, residentID id.UserID, relationship string, actor id.Actor) (*Link, error) {
	if actor.Role != id.RoleAdmin && actor.Role != id.RoleSupervisor {
		return nil, dErrors.New(dErrors.CodeForbidden, "only supervisors or admins may manage guardian links")
	}
	if err := s.requireRole(ctx, guardianID, id.RoleGuardian, "guardian account not found", "account is not a guardian"); err != nil {
		return nil, err
	}
	if err := s.requireRole(ctx, residentID, id.RoleResident, "resident account not found", "account is not a resident"); err != nil {
		return nil, err
	}

	now := time.Now()
	link := &Link{
		ID:           id.NewLinkID(),
		GuardianID:   guardianID,
		ResidentID:   residentID,
		Relationship: relationship,
		LinkedBy:     actor.ID,
		Status:       LinkActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, link); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "an active link already exists for this guardian and resident")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create guardian link")
	}

	s.logger.InfoContext(ctx, "guardian linked",
		"guardian_id", guardianID.String(),
		"resident_id", residentID.String(),
		"actor_id", actor.ID.String(),
	)
	return link, nil
}

// Unlink soft-deletes the active link for the pair. History is preserved.
func (s *Service) Unlink(ctx context.Context, guardianID, residentID id.UserID, actor id.Actor) error {
	if actor.Role != id.RoleAdmin && actor.Role != id.RoleSupervisor {
		return dErrors.New(dErrors.CodeForbidden, "only supervisors or admins may manage guardian links")
	}
	if err := s.store.Deactivate(ctx, guardianID, residentID, time.Now()); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "no active link for this guardian and resident")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to unlink guardian")
	}
	s.logger.InfoContext(ctx, "guardian unlinked",
		"guardian_id", guardianID.String(),
		"resident_id", residentID.String(),
		"actor_id", actor.ID.String(),
	)
	return nil
}

// HasActiveLink is the sole predicate the pass state machine needs.
func (s *Service) HasActiveLink(ctx context.Context, guardianID, residentID id.UserID) (bool, error) {
	_, err := s.store.FindActive(ctx, guardianID, residentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check guardian link")
	}
	return true, nil
}

// HasActiveApprover reports whether the resident has any active guardian,
// which decides a new pass's initial state.
func (s *Service) HasActiveApprover(ctx context.Context, residentID id.UserID) (bool, error) {
	links, err := s.store.ListActiveByResident(ctx, residentID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list guardian links")
	}
	return len(links) > 0, nil
}

// GuardiansOf lists the active guardians for a resident, used for
// notification fan-out when a pass enters PENDING_GUARDIAN.
func (s *Service) GuardiansOf(ctx context.Context, residentID id.UserID) ([]id.UserID, error) {
	links, err := s.store.ListActiveByResident(ctx, residentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list guardian links")
	}
	out := make([]id.UserID, 0, len(links))
	for _, link := range links {
		out = append(out, link.GuardianID)
	}
	return out, nil
}

// ResidentsOf lists the residents a guardian may act for, which scopes that
// guardian's pending-pass dashboard.
func (s *Service) ResidentsOf(ctx context.Context, guardianID id.UserID) ([]id.UserID, error) {
	links, err := s.store.ListActiveByGuardian(ctx, guardianID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list guardian links")
	}
	out := make([]id.UserID, 0, len(links))
	for _, link := range links {
		out = append(out, link.ResidentID)
	}
	return out, nil
}

func (s *Service) requireRole(ctx context.Context, userID id.UserID, role id.Role, missingMsg, wrongRoleMsg string) error {
	user, err := s.directory.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, missingMsg)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "directory lookup failed")
	}
	if user.Role != role {
		return dErrors.New(dErrors.CodeValidation, wrongRoleMsg)
	}
	return nil
}
