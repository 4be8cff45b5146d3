package pass

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"passgate/internal/activity"
	"passgate/internal/identity"
	"passgate/internal/notify"
	"passgate/internal/settings"
	id "passgate/pkg/domain"
	dErrors "passgate/pkg/domain-errors"
	"passgate/pkg/platform/sentinel"
)

// Store persists gate passes. Every transition method carries its status
// precondition into the write (conditional update / CAS) so two concurrent
// actions cannot race past each other's checks.
//
// Error Contract (transition methods):
//   - sentinel.ErrNotFound: the pass id does not resolve
//   - sentinel.ErrInvalidState: the pass exists but its current status or
//     exit/entry fields do not permit the transition
//   - sentinel.ErrConflict: unique-constraint violation (QR token collision)
type Store interface {
	Create(ctx context.Context, pass *GatePass) error
	FindByID(ctx context.Context, passID id.PassID) (*GatePass, error)
	FindByToken(ctx context.Context, token string) (*GatePass, error)
	CountPending(ctx context.Context, residentID id.UserID) (int, error)
	HasOverlapping(ctx context.Context, residentID id.UserID, from, to time.Time) (bool, error)

	GuardianApprove(ctx context.Context, passID id.PassID, guardianID id.UserID, at time.Time) error
	GuardianReject(ctx context.Context, passID id.PassID, guardianID id.UserID, reason string, at time.Time) error
	SupervisorApprove(ctx context.Context, passID id.PassID, supervisorID id.UserID, token string, at time.Time, allowedFrom []Status) error
	SupervisorReject(ctx context.Context, passID id.PassID, supervisorID id.UserID, reason string, at time.Time, allowedFrom []Status) error
	StampValidation(ctx context.Context, passID id.PassID, actorID id.UserID, at time.Time) error
	RecordExit(ctx context.Context, passID id.PassID, actorID id.UserID, at time.Time) error
	RecordEntry(ctx context.Context, passID id.PassID, actorID id.UserID, at time.Time) error

	ListByStatus(ctx context.Context, status Status, page Page) ([]*GatePass, error)
	ListPendingForResidents(ctx context.Context, residentIDs []id.UserID) ([]*GatePass, error)
	ListByResident(ctx context.Context, residentID id.UserID, page Page) ([]*GatePass, error)
	ListHistory(ctx context.Context, page Page) ([]*GatePass, error)
	ListCurrentlyOutside(ctx context.Context) ([]*GatePass, error)
	ListEntriesSince(ctx context.Context, since time.Time) ([]*GatePass, error)
}

// LinkRegistry answers the guardian-relationship questions the state machine
// needs. The guardian service satisfies it.
type LinkRegistry interface {
	HasActiveLink(ctx context.Context, guardianID, residentID id.UserID) (bool, error)
	HasActiveApprover(ctx context.Context, residentID id.UserID) (bool, error)
	GuardiansOf(ctx context.Context, residentID id.UserID) ([]id.UserID, error)
	ResidentsOf(ctx context.Context, guardianID id.UserID) ([]id.UserID, error)
}

// Ledger receives one append-only event per physical exit/entry.
type Ledger interface {
	Append(ctx context.Context, event activity.Event) error
	ListByPass(ctx context.Context, passID id.PassID) ([]activity.Event, error)
}

// SettingsSource yields the active system policy.
type SettingsSource interface {
	Get(ctx context.Context) (settings.Settings, error)
}

// Metrics counts workflow outcomes; the metrics package satisfies it.
type Metrics interface {
	IncPassSubmitted()
	IncPassApproved()
	IncPassRejected()
	IncExitRecorded()
	IncEntryRecorded(late bool)
}

type noopMetrics struct{}

func (noopMetrics) IncPassSubmitted()     {}
func (noopMetrics) IncPassApproved()      {}
func (noopMetrics) IncPassRejected()      {}
func (noopMetrics) IncExitRecorded()      {}
func (noopMetrics) IncEntryRecorded(bool) {}

// Service is the gate-pass state machine plus its query surface.
type Service struct {
	store      Store
	links      LinkRegistry
	ledger     Ledger
	directory  identity.Directory
	dispatcher notify.Dispatcher
	policy     SettingsSource
	validator  *Validator
	logger     *slog.Logger
	metrics    Metrics
	timeNow    func() time.Time
	mintToken  func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock injects a clock for testability.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.timeNow = now
			s.validator.timeNow = now
		}
	}
}

// WithMetrics wires the workflow counters.
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTokenMinter overrides QR token generation, used to force collisions in
// tests.
func WithTokenMinter(mint func() string) Option {
	return func(s *Service) {
		if mint != nil {
			s.mintToken = mint
		}
	}
}

func NewService(
	store Store,
	links LinkRegistry,
	ledger Ledger,
	directory identity.Directory,
	dispatcher notify.Dispatcher,
	policy SettingsSource,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		store:      store,
		links:      links,
		ledger:     ledger,
		directory:  directory,
		dispatcher: dispatcher,
		policy:     policy,
		validator:  NewValidator(store),
		logger:     logger,
		metrics:    noopMetrics{},
		timeNow:    time.Now,
		mintToken:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit creates a new pass request. The initial state is decided once, here:
// PENDING_GUARDIAN when the resident has an active guardian, otherwise
// PENDING_SUPERVISOR.
func (s *Service) Submit(ctx context.Context, actor id.Actor, reason string, from, to time.Time) (*GatePass, error) {
	if actor.Role != id.RoleResident {
		return nil, dErrors.New(dErrors.CodeForbidden, "only residents may request gate passes")
	}
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "a reason is required")
	}

	policy, err := s.policy.Get(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(ctx, actor.ID, from, to, policy); err != nil {
		return nil, err
	}

	hasGuardian, err := s.links.HasActiveApprover(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	status := StatusPendingSupervisor
	if hasGuardian {
		status = StatusPendingGuardian
	}

	now := s.timeNow()
	pass := &GatePass{
		ID:         id.NewPassID(),
		ResidentID: actor.ID,
		Reason:     reason,
		FromDate:   from,
		ToDate:     to,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Create(ctx, pass); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create gate pass")
	}

	s.metrics.IncPassSubmitted()
	s.logger.InfoContext(ctx, "gate pass submitted",
		"pass_id", pass.ID.String(),
		"resident_id", actor.ID.String(),
		"status", string(status),
	)

	if status == StatusPendingGuardian {
		s.notifyGuardians(ctx, pass, "New gate pass request",
			"A resident you are linked to has requested a gate pass and needs your approval.")
	} else {
		s.notifySupervisors(ctx, pass, "New gate pass request",
			"A gate pass request is awaiting supervisor approval.")
	}
	return pass, nil
}

// GuardianApprove moves a PENDING_GUARDIAN pass to PENDING_SUPERVISOR. The
// acting guardian must hold an active link to the pass's resident.
func (s *Service) GuardianApprove(ctx context.Context, passID id.PassID, actor id.Actor) (*GatePass, error) {
	pass, err := s.authorizeGuardian(ctx, passID, actor)
	if err != nil {
		return nil, err
	}

	now := s.timeNow()
	if err := s.store.GuardianApprove(ctx, passID, actor.ID, now); err != nil {
		return nil, s.transitionError(err, StatusPendingGuardian)
	}

	s.logger.InfoContext(ctx, "gate pass guardian approved",
		"pass_id", passID.String(),
		"guardian_id", actor.ID.String(),
	)
	s.notifySupervisors(ctx, pass, "Gate pass awaiting approval",
		"A guardian-approved gate pass request is awaiting supervisor approval.")
	return s.store.FindByID(ctx, passID)
}

// GuardianReject moves a PENDING_GUARDIAN pass to REJECTED with the
// guardian's reason stored verbatim.
func (s *Service) GuardianReject(ctx context.Context, passID id.PassID, actor id.Actor, reason string) (*GatePass, error) {
	pass, err := s.authorizeGuardian(ctx, passID, actor)
	if err != nil {
		return nil, err
	}

	now := s.timeNow()
	if err := s.store.GuardianReject(ctx, passID, actor.ID, reason, now); err != nil {
		return nil, s.transitionError(err, StatusPendingGuardian)
	}

	s.metrics.IncPassRejected()
	s.logger.InfoContext(ctx, "gate pass guardian rejected",
		"pass_id", passID.String(),
		"guardian_id", actor.ID.String(),
	)
	s.dispatcher.Notify(ctx, notify.Notification{
		UserID:    pass.ResidentID,
		Title:     "Gate pass rejected",
		Body:      "Your gate pass request was rejected by your guardian: " + reason,
		RelatedID: passID.String(),
	})
	return s.store.FindByID(ctx, passID)
}

// SupervisorApprove finalizes a pass: it mints the QR token and moves the
// pass to APPROVED. Token uniqueness is enforced by the store; a collision is
// retried once with a fresh token.
func (s *Service) SupervisorApprove(ctx context.Context, passID id.PassID, d Decision) (*GatePass, error) {
	allowedFrom, err := s.supervisorPreconditions(d, []Status{StatusPendingSupervisor}, []Status{StatusPendingSupervisor, StatusPendingGuardian})
	if err != nil {
		return nil, err
	}
	pass, err := s.findPass(ctx, passID)
	if err != nil {
		return nil, err
	}

	now := s.timeNow()
	err = s.store.SupervisorApprove(ctx, passID, d.Actor.ID, s.mintToken(), now, allowedFrom)
	if errors.Is(err, sentinel.ErrConflict) {
		// QR token collision. Regenerate and retry once; a second collision
		// is a genuine internal failure.
		err = s.store.SupervisorApprove(ctx, passID, d.Actor.ID, s.mintToken(), now, allowedFrom)
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue a unique pass token")
		}
		return nil, s.transitionError(err, StatusPendingSupervisor)
	}

	s.metrics.IncPassApproved()
	s.logger.InfoContext(ctx, "gate pass approved",
		"pass_id", passID.String(),
		"supervisor_id", d.Actor.ID.String(),
		"admin_override", d.AdminOverride,
	)
	s.dispatcher.Notify(ctx, notify.Notification{
		UserID:    pass.ResidentID,
		Title:     "Gate pass approved",
		Body:      "Your gate pass request was approved. Present the QR code at the gate.",
		RelatedID: passID.String(),
	})
	return s.store.FindByID(ctx, passID)
}

// SupervisorReject moves a PENDING_SUPERVISOR pass to REJECTED. With
// AdminOverride it force-cancels from any non-terminal state.
func (s *Service) SupervisorReject(ctx context.Context, passID id.PassID, d Decision) (*GatePass, error) {
	allowedFrom, err := s.supervisorPreconditions(d, []Status{StatusPendingSupervisor}, []Status{StatusPendingSupervisor, StatusPendingGuardian})
	if err != nil {
		return nil, err
	}
	pass, err := s.findPass(ctx, passID)
	if err != nil {
		return nil, err
	}

	now := s.timeNow()
	if err := s.store.SupervisorReject(ctx, passID, d.Actor.ID, d.Reason, now, allowedFrom); err != nil {
		return nil, s.transitionError(err, StatusPendingSupervisor)
	}

	s.metrics.IncPassRejected()
	s.logger.InfoContext(ctx, "gate pass rejected",
		"pass_id", passID.String(),
		"supervisor_id", d.Actor.ID.String(),
		"admin_override", d.AdminOverride,
	)
	body := "Your gate pass request was rejected."
	if d.Reason != "" {
		body = "Your gate pass request was rejected: " + d.Reason
	}
	s.dispatcher.Notify(ctx, notify.Notification{
		UserID:    pass.ResidentID,
		Title:     "Gate pass rejected",
		Body:      body,
		RelatedID: passID.String(),
	})
	return s.store.FindByID(ctx, passID)
}

// ValidateToken resolves a scanned QR token. On the valid outcome the
// validating actor and time are stamped onto the pass as a non-blocking audit
// side effect; a stamp failure never turns a valid scan into an error.
func (s *Service) ValidateToken(ctx context.Context, token string, actor id.Actor) (ValidationResult, error) {
	if err := requireGateRole(actor); err != nil {
		return ValidationResult{}, err
	}
	if token == "" {
		return ValidationResult{Outcome: ValidationInvalid}, nil
	}

	pass, err := s.store.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return ValidationResult{Outcome: ValidationInvalid}, nil
		}
		return ValidationResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up pass token")
	}

	now := s.timeNow()
	switch {
	case now.After(pass.ToDate):
		return ValidationResult{
			Outcome:         ValidationExpired,
			Pass:            pass,
			ResidentOutside: pass.CurrentlyOutside(),
		}, nil
	case now.Before(pass.FromDate):
		return ValidationResult{Outcome: ValidationNotYetActive, Pass: pass}, nil
	}

	if err := s.store.StampValidation(ctx, pass.ID, actor.ID, now); err != nil {
		s.logger.WarnContext(ctx, "failed to stamp pass validation",
			"pass_id", pass.ID.String(), "error", err)
	}
	return ValidationResult{Outcome: ValidationValid, Pass: pass}, nil
}

// RecordExit marks the resident as having left through the gate. A fresh
// exit clears any prior entry fields: re-exiting within the validity window
// starts a new outside period, the pass is not single-use.
func (s *Service) RecordExit(ctx context.Context, passID id.PassID, actor id.Actor) (*GatePass, error) {
	if err := requireGateRole(actor); err != nil {
		return nil, err
	}
	pass, err := s.findPass(ctx, passID)
	if err != nil {
		return nil, err
	}
	if pass.Status != StatusApproved {
		return nil, dErrors.New(dErrors.CodeInvalidState, "only approved passes permit an exit")
	}

	now := s.timeNow()
	if now.After(pass.ToDate) {
		return nil, dErrors.New(dErrors.CodeInvalidState, "this pass has expired and can no longer be used to exit")
	}
	if pass.CurrentlyOutside() {
		return nil, dErrors.New(dErrors.CodeInvalidState, "the resident is already outside on this pass")
	}

	if err := s.store.RecordExit(ctx, passID, actor.ID, now); err != nil {
		return nil, s.transitionError(err, StatusApproved)
	}

	s.appendLedger(ctx, activity.Event{
		ID:         id.NewEventID(),
		PassID:     passID,
		ResidentID: pass.ResidentID,
		Action:     activity.ActionExit,
		Timestamp:  now,
		ActorID:    actor.ID,
	})

	s.metrics.IncExitRecorded()
	s.logger.InfoContext(ctx, "gate exit recorded",
		"pass_id", passID.String(),
		"resident_id", pass.ResidentID.String(),
		"actor_id", actor.ID.String(),
	)
	s.dispatcher.Notify(ctx, notify.Notification{
		UserID:    pass.ResidentID,
		Title:     "Exit recorded",
		Body:      "Your exit through the gate has been recorded. Safe travels.",
		RelatedID: passID.String(),
	})
	return s.store.FindByID(ctx, passID)
}

// RecordEntry marks the resident as back inside. Lateness is measured
// against the pass's ToDate and carried into the ledger entry.
func (s *Service) RecordEntry(ctx context.Context, passID id.PassID, actor id.Actor) (*EntryResult, error) {
	if err := requireGateRole(actor); err != nil {
		return nil, err
	}
	pass, err := s.findPass(ctx, passID)
	if err != nil {
		return nil, err
	}
	if !pass.CurrentlyOutside() {
		return nil, dErrors.New(dErrors.CodeInvalidState, "no outstanding exit to match this entry against")
	}

	now := s.timeNow()
	late := now.After(pass.ToDate)
	note := ""
	if late {
		note = latenessNote(now.Sub(pass.ToDate))
	}

	if err := s.store.RecordEntry(ctx, passID, actor.ID, now); err != nil {
		return nil, s.transitionError(err, StatusApproved)
	}

	s.appendLedger(ctx, activity.Event{
		ID:         id.NewEventID(),
		PassID:     passID,
		ResidentID: pass.ResidentID,
		Action:     activity.ActionEntry,
		Timestamp:  now,
		ActorID:    actor.ID,
		Late:       late,
		Note:       note,
	})

	s.metrics.IncEntryRecorded(late)
	s.logger.InfoContext(ctx, "gate entry recorded",
		"pass_id", passID.String(),
		"resident_id", pass.ResidentID.String(),
		"late", late,
	)
	if late {
		s.dispatcher.Notify(ctx, notify.Notification{
			UserID:    pass.ResidentID,
			Title:     "Late return recorded",
			Body:      "Your return has been recorded " + note + ". Please contact your supervisor.",
			RelatedID: passID.String(),
		})
	} else {
		s.dispatcher.Notify(ctx, notify.Notification{
			UserID:    pass.ResidentID,
			Title:     "Return recorded",
			Body:      "Welcome back. Your return has been recorded on time.",
			RelatedID: passID.String(),
		})
	}

	updated, err := s.store.FindByID(ctx, passID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reload pass")
	}
	return &EntryResult{Pass: updated, Late: late, Note: note}, nil
}

// Get returns one pass. Residents may only see their own.
func (s *Service) Get(ctx context.Context, passID id.PassID, actor id.Actor) (*GatePass, error) {
	pass, err := s.findPass(ctx, passID)
	if err != nil {
		return nil, err
	}
	if actor.Role == id.RoleResident && pass.ResidentID != actor.ID {
		return nil, dErrors.New(dErrors.CodeForbidden, "you may only view your own passes")
	}
	if actor.Role == id.RoleGuardian {
		linked, err := s.links.HasActiveLink(ctx, actor.ID, pass.ResidentID)
		if err != nil {
			return nil, err
		}
		if !linked {
			return nil, dErrors.New(dErrors.CodeForbidden, "you are not linked to this resident")
		}
	}
	return pass, nil
}

// Timeline returns the pass's ledger events in chronological order, under
// the same visibility rules as Get.
func (s *Service) Timeline(ctx context.Context, passID id.PassID, actor id.Actor) ([]activity.Event, error) {
	if _, err := s.Get(ctx, passID, actor); err != nil {
		return nil, err
	}
	events, err := s.ledger.ListByPass(ctx, passID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pass timeline")
	}
	return events, nil
}

// PendingForSupervisor lists passes awaiting supervisor action.
func (s *Service) PendingForSupervisor(ctx context.Context, actor id.Actor, page Page) ([]*GatePass, error) {
	if actor.Role != id.RoleSupervisor && actor.Role != id.RoleAdmin {
		return nil, dErrors.New(dErrors.CodeForbidden, "only supervisors or admins may view this list")
	}
	passes, err := s.store.ListByStatus(ctx, StatusPendingSupervisor, page)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending passes")
	}
	return passes, nil
}

// PendingForGuardian lists passes awaiting the acting guardian, scoped to
// that guardian's linked residents.
func (s *Service) PendingForGuardian(ctx context.Context, actor id.Actor) ([]*GatePass, error) {
	if actor.Role != id.RoleGuardian {
		return nil, dErrors.New(dErrors.CodeForbidden, "only guardians may view this list")
	}
	residents, err := s.links.ResidentsOf(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if len(residents) == 0 {
		return nil, nil
	}
	passes, err := s.store.ListPendingForResidents(ctx, residents)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending passes")
	}
	out := passes[:0]
	for _, pass := range passes {
		if pass.Status == StatusPendingGuardian {
			out = append(out, pass)
		}
	}
	return out, nil
}

// History lists the resident's own passes, or the full paginated history for
// staff roles.
func (s *Service) History(ctx context.Context, actor id.Actor, page Page) ([]*GatePass, error) {
	switch actor.Role {
	case id.RoleResident:
		passes, err := s.store.ListByResident(ctx, actor.ID, page)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list passes")
		}
		return passes, nil
	case id.RoleSupervisor, id.RoleAdmin, id.RoleGateStaff:
		passes, err := s.store.ListHistory(ctx, page)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list passes")
		}
		return passes, nil
	default:
		return nil, dErrors.New(dErrors.CodeForbidden, "this role may not view pass history")
	}
}

// CurrentlyOutside lists residents who exited and have not re-entered.
func (s *Service) CurrentlyOutside(ctx context.Context, actor id.Actor) ([]*GatePass, error) {
	if err := requireStaffRole(actor); err != nil {
		return nil, err
	}
	passes, err := s.store.ListCurrentlyOutside(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list outside residents")
	}
	return passes, nil
}

// TodayEntries lists passes whose most recent entry happened today, in the
// configured timezone.
func (s *Service) TodayEntries(ctx context.Context, actor id.Actor) ([]*GatePass, error) {
	if err := requireStaffRole(actor); err != nil {
		return nil, err
	}
	policy, err := s.policy.Get(ctx)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(policy.Timezone)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInternal, "system timezone is invalid")
	}
	now := s.timeNow().In(loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	passes, err := s.store.ListEntriesSince(ctx, midnight)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list entries")
	}
	return passes, nil
}

// PendingCount returns the resident's open request count, used for dashboard
// badges.
func (s *Service) PendingCount(ctx context.Context, residentID id.UserID) (int, error) {
	count, err := s.store.CountPending(ctx, residentID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count pending passes")
	}
	return count, nil
}

func (s *Service) authorizeGuardian(ctx context.Context, passID id.PassID, actor id.Actor) (*GatePass, error) {
	if actor.Role != id.RoleGuardian {
		return nil, dErrors.New(dErrors.CodeForbidden, "only guardians may act on this request")
	}
	pass, err := s.findPass(ctx, passID)
	if err != nil {
		return nil, err
	}
	linked, err := s.links.HasActiveLink(ctx, actor.ID, pass.ResidentID)
	if err != nil {
		return nil, err
	}
	if !linked {
		return nil, dErrors.New(dErrors.CodeForbidden, "you are not linked to this resident")
	}
	return pass, nil
}

// supervisorPreconditions resolves the allowed prior statuses for a
// supervisor decision, widening them only for an admin's explicit override.
func (s *Service) supervisorPreconditions(d Decision, normal, override []Status) ([]Status, error) {
	if d.AdminOverride {
		if d.Actor.Role != id.RoleAdmin {
			return nil, dErrors.New(dErrors.CodeForbidden, "only admins may override the approval flow")
		}
		return override, nil
	}
	if d.Actor.Role != id.RoleSupervisor && d.Actor.Role != id.RoleAdmin {
		return nil, dErrors.New(dErrors.CodeForbidden, "only supervisors or admins may decide this request")
	}
	return normal, nil
}

func (s *Service) findPass(ctx context.Context, passID id.PassID) (*GatePass, error) {
	pass, err := s.store.FindByID(ctx, passID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "gate pass not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load gate pass")
	}
	return pass, nil
}

// transitionError translates a store transition failure. An invalid-state
// result means a concurrent action won the race or the caller is repeating a
// decision; either way the current status no longer permits the move.
func (s *Service) transitionError(err error, expected Status) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "gate pass not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeInvalidState,
			fmt.Sprintf("the pass is no longer in the %s state", expected))
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update gate pass")
	}
}

func (s *Service) appendLedger(ctx context.Context, event activity.Event) {
	if err := s.ledger.Append(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to append ledger event",
			"pass_id", event.PassID.String(),
			"action", string(event.Action),
			"error", err,
		)
	}
}

func (s *Service) notifyGuardians(ctx context.Context, pass *GatePass, title, body string) {
	guardians, err := s.links.GuardiansOf(ctx, pass.ResidentID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to resolve guardians for notification",
			"pass_id", pass.ID.String(), "error", err)
		return
	}
	for _, guardianID := range guardians {
		s.dispatcher.Notify(ctx, notify.Notification{
			UserID:    guardianID,
			Title:     title,
			Body:      body,
			RelatedID: pass.ID.String(),
		})
	}
}

func (s *Service) notifySupervisors(ctx context.Context, pass *GatePass, title, body string) {
	supervisors, err := s.directory.ListByRole(ctx, id.RoleSupervisor)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to resolve supervisors for notification",
			"pass_id", pass.ID.String(), "error", err)
		return
	}
	for _, supervisor := range supervisors {
		s.dispatcher.Notify(ctx, notify.Notification{
			UserID:    supervisor.ID,
			Title:     title,
			Body:      body,
			RelatedID: pass.ID.String(),
		})
	}
}

func requireGateRole(actor id.Actor) error {
	if actor.Role != id.RoleGateStaff && actor.Role != id.RoleAdmin {
		return dErrors.New(dErrors.CodeForbidden, "only gate staff or admins may perform gate actions")
	}
	return nil
}

func requireStaffRole(actor id.Actor) error {
	switch actor.Role {
	case id.RoleSupervisor, id.RoleGateStaff, id.RoleAdmin:
		return nil
	default:
		return dErrors.New(dErrors.CodeForbidden, "this role may not view gate dashboards")
	}
}

// latenessNote renders a human-readable lateness duration, "1h 30m late" or
// "45m late".
func latenessNote(d time.Duration) string {
	minutes := int(d.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	h := minutes / 60
	m := minutes % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm late", h, m)
	}
	return fmt.Sprintf("%dm late", m)
}
