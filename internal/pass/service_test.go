package pass

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"passgate/internal/activity"
	"passgate/internal/identity"
	"passgate/internal/notify"
	"passgate/internal/settings"
	id "passgate/pkg/domain"
	dErrors "passgate/pkg/domain-errors"
)

type stubLinks struct {
	mu        sync.Mutex
	guardians map[id.UserID][]id.UserID // resident -> active guardians
}

func newStubLinks() *stubLinks {
	return &stubLinks{guardians: make(map[id.UserID][]id.UserID)}
}

func (l *stubLinks) link(guardianID, residentID id.UserID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.guardians[residentID] = append(l.guardians[residentID], guardianID)
}

func (l *stubLinks) HasActiveLink(_ context.Context, guardianID, residentID id.UserID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, g := range l.guardians[residentID] {
		if g == guardianID {
			return true, nil
		}
	}
	return false, nil
}

func (l *stubLinks) HasActiveApprover(_ context.Context, residentID id.UserID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.guardians[residentID]) > 0, nil
}

func (l *stubLinks) GuardiansOf(_ context.Context, residentID id.UserID) ([]id.UserID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]id.UserID(nil), l.guardians[residentID]...), nil
}

func (l *stubLinks) ResidentsOf(_ context.Context, guardianID id.UserID) ([]id.UserID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []id.UserID
	for residentID, guardians := range l.guardians {
		for _, g := range guardians {
			if g == guardianID {
				out = append(out, residentID)
			}
		}
	}
	return out, nil
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (d *recordingDispatcher) Notify(_ context.Context, n notify.Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, n)
}

func (d *recordingDispatcher) sentTo(userID id.UserID) []notify.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []notify.Notification
	for _, n := range d.sent {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

type passPolicy struct{}

func (passPolicy) Get(context.Context) (settings.Settings, error) {
	policy := settings.Defaults()
	policy.MaxGatePassDays = 7
	policy.MaxPendingPasses = 2
	policy.Timezone = "UTC"
	return policy, nil
}

type StateMachineSuite struct {
	suite.Suite
	store      *InMemoryStore
	ledger     *activity.InMemoryStore
	directory  *identity.InMemoryDirectory
	dispatcher *recordingDispatcher
	links      *stubLinks
	service    *Service
	now        time.Time

	resident   id.Actor
	guardian   id.Actor
	supervisor id.Actor
	gateStaff  id.Actor
	admin      id.Actor
}

func (s *StateMachineSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ledger = activity.NewInMemoryStore()
	s.directory = identity.NewInMemoryDirectory()
	s.dispatcher = &recordingDispatcher{}
	s.links = newStubLinks()
	s.now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	s.resident = id.Actor{ID: id.NewUserID(), Role: id.RoleResident}
	s.guardian = id.Actor{ID: id.NewUserID(), Role: id.RoleGuardian}
	s.supervisor = id.Actor{ID: id.NewUserID(), Role: id.RoleSupervisor}
	s.gateStaff = id.Actor{ID: id.NewUserID(), Role: id.RoleGateStaff}
	s.admin = id.Actor{ID: id.NewUserID(), Role: id.RoleAdmin}
	s.directory.Add(identity.User{ID: s.supervisor.ID, Role: id.RoleSupervisor, DisplayName: "Supervisor"})

	s.service = NewService(
		s.store, s.links, s.ledger, s.directory, s.dispatcher, passPolicy{},
		slog.Default(),
		WithClock(func() time.Time { return s.now }),
	)
}

func TestStateMachineSuite(t *testing.T) {
	suite.Run(t, new(StateMachineSuite))
}

func (s *StateMachineSuite) submit() *GatePass {
	pass, err := s.service.Submit(context.Background(), s.resident, "family visit",
		s.now.Add(22*time.Hour), s.now.Add(70*time.Hour))
	s.Require().NoError(err)
	return pass
}

func (s *StateMachineSuite) approve(passID id.PassID) *GatePass {
	pass, err := s.service.SupervisorApprove(context.Background(), passID, Decision{Actor: s.supervisor})
	s.Require().NoError(err)
	return pass
}

func (s *StateMachineSuite) TestSubmitWithoutGuardianGoesToSupervisor() {
	pass := s.submit()
	s.Equal(StatusPendingSupervisor, pass.Status)
	s.Empty(pass.QRToken)
	s.NotEmpty(s.dispatcher.sentTo(s.supervisor.ID), "supervisors are notified directly")
}

func (s *StateMachineSuite) TestSubmitWithGuardianGoesToGuardian() {
	s.links.link(s.guardian.ID, s.resident.ID)
	pass := s.submit()
	s.Equal(StatusPendingGuardian, pass.Status)
	s.NotEmpty(s.dispatcher.sentTo(s.guardian.ID))
	s.Empty(s.dispatcher.sentTo(s.supervisor.ID))
}

func (s *StateMachineSuite) TestSubmitRequiresResidentRole() {
	_, err := s.service.Submit(context.Background(), s.supervisor, "visit",
		s.now.Add(time.Hour), s.now.Add(24*time.Hour))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *StateMachineSuite) TestSupervisorApproveIssuesUniqueToken() {
	pass := s.submit()
	approved := s.approve(pass.ID)

	s.Equal(StatusApproved, approved.Status)
	s.NotEmpty(approved.QRToken)
	s.Require().NotNil(approved.SupervisorActedBy)
	s.Equal(s.supervisor.ID, *approved.SupervisorActedBy)
	s.NotEmpty(s.dispatcher.sentTo(s.resident.ID))

	found, err := s.store.FindByToken(context.Background(), approved.QRToken)
	s.Require().NoError(err)
	s.Equal(pass.ID, found.ID)
}

func (s *StateMachineSuite) TestGuardianRejectStoresReasonVerbatim() {
	s.links.link(s.guardian.ID, s.resident.ID)
	pass := s.submit()

	rejected, err := s.service.GuardianReject(context.Background(), pass.ID, s.guardian, "not allowed this week")
	s.Require().NoError(err)
	s.Equal(StatusRejected, rejected.Status)
	s.Equal("not allowed this week", rejected.GuardianReason)

	toResident := s.dispatcher.sentTo(s.resident.ID)
	s.Require().NotEmpty(toResident)
	s.Contains(toResident[len(toResident)-1].Body, "not allowed this week")
}

func (s *StateMachineSuite) TestGuardianApproveAdvancesToSupervisor() {
	s.links.link(s.guardian.ID, s.resident.ID)
	pass := s.submit()

	advanced, err := s.service.GuardianApprove(context.Background(), pass.ID, s.guardian)
	s.Require().NoError(err)
	s.Equal(StatusPendingSupervisor, advanced.Status)
	s.NotEmpty(s.dispatcher.sentTo(s.supervisor.ID))
}

func (s *StateMachineSuite) TestUnlinkedGuardianCannotAct() {
	s.links.link(s.guardian.ID, s.resident.ID)
	pass := s.submit()

	stranger := id.Actor{ID: id.NewUserID(), Role: id.RoleGuardian}
	_, err := s.service.GuardianApprove(context.Background(), pass.ID, stranger)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	unchanged, findErr := s.store.FindByID(context.Background(), pass.ID)
	s.Require().NoError(findErr)
	s.Equal(StatusPendingGuardian, unchanged.Status, "a rejected action leaves no side effects")
}

func (s *StateMachineSuite) TestRepeatedDecisionIsRejected() {
	pass := s.submit()
	s.approve(pass.ID)

	_, err := s.service.SupervisorApprove(context.Background(), pass.ID, Decision{Actor: s.supervisor})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	_, err = s.service.SupervisorReject(context.Background(), pass.ID, Decision{Actor: s.supervisor})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState), "approved is terminal for status")
}

func (s *StateMachineSuite) TestAdminOverrideBypassesGuardian() {
	s.links.link(s.guardian.ID, s.resident.ID)
	pass := s.submit()
	s.Equal(StatusPendingGuardian, pass.Status)

	// A plain supervisor cannot skip the guardian step.
	_, err := s.service.SupervisorApprove(context.Background(), pass.ID, Decision{Actor: s.supervisor})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	// A supervisor cannot claim the override either.
	_, err = s.service.SupervisorApprove(context.Background(), pass.ID, Decision{Actor: s.supervisor, AdminOverride: true})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	approved, err := s.service.SupervisorApprove(context.Background(), pass.ID, Decision{Actor: s.admin, AdminOverride: true})
	s.Require().NoError(err)
	s.Equal(StatusApproved, approved.Status)
	s.NotEmpty(approved.QRToken)
}

func (s *StateMachineSuite) TestTokenCollisionRetriedOnce() {
	first := s.submit()
	s.approve(first.ID)
	taken := s.mustFind(first.ID).QRToken

	resident2 := id.Actor{ID: id.NewUserID(), Role: id.RoleResident}
	second, err := s.service.Submit(context.Background(), resident2, "errand",
		s.now.Add(22*time.Hour), s.now.Add(46*time.Hour))
	s.Require().NoError(err)

	mints := 0
	s.service.mintToken = func() string {
		mints++
		if mints == 1 {
			return taken
		}
		return "fresh-token"
	}
	approved, err := s.service.SupervisorApprove(context.Background(), second.ID, Decision{Actor: s.supervisor})
	s.Require().NoError(err)
	s.Equal("fresh-token", approved.QRToken)
	s.Equal(2, mints)
}

func (s *StateMachineSuite) TestTokenCollisionTwiceFails() {
	first := s.submit()
	s.approve(first.ID)
	taken := s.mustFind(first.ID).QRToken

	resident2 := id.Actor{ID: id.NewUserID(), Role: id.RoleResident}
	second, err := s.service.Submit(context.Background(), resident2, "errand",
		s.now.Add(22*time.Hour), s.now.Add(46*time.Hour))
	s.Require().NoError(err)

	s.service.mintToken = func() string { return taken }
	_, err = s.service.SupervisorApprove(context.Background(), second.ID, Decision{Actor: s.supervisor})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	unchanged := s.mustFind(second.ID)
	s.Equal(StatusPendingSupervisor, unchanged.Status)
	s.Empty(unchanged.QRToken, "a failed approval never reassigns an issued token")
}

func (s *StateMachineSuite) TestExitEntryCycle() {
	pass := s.submit()
	s.approve(pass.ID)

	// Exit within the validity window.
	s.now = s.now.Add(24 * time.Hour)
	outside, err := s.service.RecordExit(context.Background(), pass.ID, s.gateStaff)
	s.Require().NoError(err)
	s.True(outside.CurrentlyOutside())

	// Second exit without an entry is illegal.
	_, err = s.service.RecordExit(context.Background(), pass.ID, s.gateStaff)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	// On-time return.
	s.now = s.now.Add(6 * time.Hour)
	result, err := s.service.RecordEntry(context.Background(), pass.ID, s.gateStaff)
	s.Require().NoError(err)
	s.False(result.Late)
	s.Empty(result.Note)
	s.False(result.Pass.CurrentlyOutside())

	// Re-exit within the window starts a fresh outside period.
	again, err := s.service.RecordExit(context.Background(), pass.ID, s.gateStaff)
	s.Require().NoError(err)
	s.True(again.CurrentlyOutside())
	s.Nil(again.EntryAt, "a new exit clears the prior entry")

	events, err := s.ledger.ListByPass(context.Background(), pass.ID)
	s.Require().NoError(err)
	s.Require().Len(events, 3)
	s.Equal(activity.ActionExit, events[0].Action)
	s.Equal(activity.ActionEntry, events[1].Action)
	s.Equal(activity.ActionExit, events[2].Action)
}

func (s *StateMachineSuite) TestExitOnExpiredPassRejectedAsExpired() {
	pass := s.submit()
	s.approve(pass.ID)

	s.now = s.now.Add(80 * time.Hour) // past ToDate
	_, err := s.service.RecordExit(context.Background(), pass.ID, s.gateStaff)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	s.Contains(err.Error(), "expired", "expiry is reported as such, not as a role problem")
}

func (s *StateMachineSuite) TestExitRequiresApprovedStatus() {
	pass := s.submit()
	_, err := s.service.RecordExit(context.Background(), pass.ID, s.gateStaff)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	_, err = s.service.RecordExit(context.Background(), pass.ID, s.resident)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *StateMachineSuite) TestLateEntryNote() {
	pass := s.submit()
	s.approve(pass.ID)

	s.now = s.now.Add(24 * time.Hour)
	_, err := s.service.RecordExit(context.Background(), pass.ID, s.gateStaff)
	s.Require().NoError(err)

	// Return 90 minutes after ToDate.
	s.now = pass.ToDate.Add(90 * time.Minute)
	result, err := s.service.RecordEntry(context.Background(), pass.ID, s.gateStaff)
	s.Require().NoError(err)
	s.True(result.Late)
	s.Equal("1h 30m late", result.Note)

	events, err := s.ledger.ListByPass(context.Background(), pass.ID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.True(events[1].Late)
	s.Equal("1h 30m late", events[1].Note)

	toResident := s.dispatcher.sentTo(s.resident.ID)
	s.Require().NotEmpty(toResident)
	s.Contains(toResident[len(toResident)-1].Body, "1h 30m late")
}

func (s *StateMachineSuite) TestEntryWithoutExitFailsConsistently() {
	pass := s.submit()
	s.approve(pass.ID)

	for i := 0; i < 2; i++ {
		_, err := s.service.RecordEntry(context.Background(), pass.ID, s.gateStaff)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	}
}

func (s *StateMachineSuite) TestValidateTokenOutcomes() {
	pass := s.submit()
	s.approve(pass.ID)
	token := s.mustFind(pass.ID).QRToken

	// Unknown token.
	result, err := s.service.ValidateToken(context.Background(), "no-such-token", s.gateStaff)
	s.Require().NoError(err)
	s.Equal(ValidationInvalid, result.Outcome)

	// Before FromDate.
	result, err = s.service.ValidateToken(context.Background(), token, s.gateStaff)
	s.Require().NoError(err)
	s.Equal(ValidationNotYetActive, result.Outcome)

	// Within the window: valid, and the scan is stamped.
	s.now = s.now.Add(24 * time.Hour)
	result, err = s.service.ValidateToken(context.Background(), token, s.gateStaff)
	s.Require().NoError(err)
	s.Equal(ValidationValid, result.Outcome)
	stamped := s.mustFind(pass.ID)
	s.Require().NotNil(stamped.ValidatedBy)
	s.Equal(s.gateStaff.ID, *stamped.ValidatedBy)

	// Expired while the resident is still outside: urgent case.
	_, err = s.service.RecordExit(context.Background(), pass.ID, s.gateStaff)
	s.Require().NoError(err)
	s.now = pass.ToDate.Add(time.Hour)
	result, err = s.service.ValidateToken(context.Background(), token, s.gateStaff)
	s.Require().NoError(err)
	s.Equal(ValidationExpired, result.Outcome)
	s.True(result.ResidentOutside)
}

func (s *StateMachineSuite) TestValidateTokenRequiresGateRole() {
	_, err := s.service.ValidateToken(context.Background(), "whatever", s.resident)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *StateMachineSuite) TestPendingForGuardianScopedToLinkedResidents() {
	s.links.link(s.guardian.ID, s.resident.ID)
	mine := s.submit()

	otherResident := id.Actor{ID: id.NewUserID(), Role: id.RoleResident}
	_, err := s.service.Submit(context.Background(), otherResident, "errand",
		s.now.Add(22*time.Hour), s.now.Add(46*time.Hour))
	s.Require().NoError(err)

	pending, err := s.service.PendingForGuardian(context.Background(), s.guardian)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(mine.ID, pending[0].ID)
}

func (s *StateMachineSuite) TestCurrentlyOutsideQuery() {
	pass := s.submit()
	s.approve(pass.ID)
	s.now = s.now.Add(24 * time.Hour)
	_, err := s.service.RecordExit(context.Background(), pass.ID, s.gateStaff)
	s.Require().NoError(err)

	outside, err := s.service.CurrentlyOutside(context.Background(), s.supervisor)
	s.Require().NoError(err)
	s.Require().Len(outside, 1)
	s.Equal(pass.ID, outside[0].ID)

	_, err = s.service.CurrentlyOutside(context.Background(), s.resident)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *StateMachineSuite) TestResidentVisibility() {
	pass := s.submit()

	other := id.Actor{ID: id.NewUserID(), Role: id.RoleResident}
	_, err := s.service.Get(context.Background(), pass.ID, other)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	own, err := s.service.Get(context.Background(), pass.ID, s.resident)
	s.Require().NoError(err)
	s.Equal(pass.ID, own.ID)
}

func (s *StateMachineSuite) mustFind(passID id.PassID) *GatePass {
	pass, err := s.store.FindByID(context.Background(), passID)
	s.Require().NoError(err)
	return pass
}
