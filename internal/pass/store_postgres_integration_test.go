//go:build integration

package pass

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	id "passgate/pkg/domain"
	"passgate/pkg/platform/sentinel"
	"passgate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite

	ctx       context.Context
	container *containers.PostgresContainer
	store     *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.container = containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(s.container.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	require.NoError(s.T(), s.container.TruncateAll(s.ctx))
}

func (s *PostgresStoreSuite) newPass(status Status) *GatePass {
	now := time.Now().UTC().Truncate(time.Microsecond)
	p := &GatePass{
		ID:         id.PassID(uuid.New()),
		ResidentID: id.UserID(uuid.New()),
		Reason:     "weekend at home",
		FromDate:   now.Add(24 * time.Hour),
		ToDate:     now.Add(72 * time.Hour),
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(s.T(), s.store.Create(s.ctx, p))
	return p
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	created := s.newPass(StatusPendingSupervisor)

	found, err := s.store.FindByID(s.ctx, created.ID)
	require.NoError(s.T(), err)
	s.Equal(created.ResidentID, found.ResidentID)
	s.Equal(StatusPendingSupervisor, found.Status)
	s.Empty(found.QRToken)
	s.Nil(found.ExitAt)
}

func (s *PostgresStoreSuite) TestFindMissing() {
	_, err := s.store.FindByID(s.ctx, id.PassID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestGuardianApproveRequiresPendingGuardian() {
	p := s.newPass(StatusPendingSupervisor)

	err := s.store.GuardianApprove(s.ctx, p.ID, id.UserID(uuid.New()), time.Now())
	s.ErrorIs(err, sentinel.ErrInvalidState)

	// The row is untouched.
	found, err := s.store.FindByID(s.ctx, p.ID)
	require.NoError(s.T(), err)
	s.Equal(StatusPendingSupervisor, found.Status)
}

func (s *PostgresStoreSuite) TestGuardianApproveAdvances() {
	p := s.newPass(StatusPendingGuardian)
	guardianID := id.UserID(uuid.New())

	require.NoError(s.T(), s.store.GuardianApprove(s.ctx, p.ID, guardianID, time.Now()))

	found, err := s.store.FindByID(s.ctx, p.ID)
	require.NoError(s.T(), err)
	s.Equal(StatusPendingSupervisor, found.Status)
	require.NotNil(s.T(), found.GuardianActedBy)
	s.Equal(guardianID, *found.GuardianActedBy)
}

func (s *PostgresStoreSuite) TestSupervisorApproveEnforcesTokenUniqueness() {
	first := s.newPass(StatusPendingSupervisor)
	second := s.newPass(StatusPendingSupervisor)
	supervisorID := id.UserID(uuid.New())

	require.NoError(s.T(), s.store.SupervisorApprove(
		s.ctx, first.ID, supervisorID, "duplicate-token", time.Now(),
		[]Status{StatusPendingSupervisor}))

	err := s.store.SupervisorApprove(
		s.ctx, second.ID, supervisorID, "duplicate-token", time.Now(),
		[]Status{StatusPendingSupervisor})
	s.ErrorIs(err, sentinel.ErrConflict)

	// The losing pass is still pending and can be approved with a fresh token.
	found, err := s.store.FindByID(s.ctx, second.ID)
	require.NoError(s.T(), err)
	s.Equal(StatusPendingSupervisor, found.Status)

	require.NoError(s.T(), s.store.SupervisorApprove(
		s.ctx, second.ID, supervisorID, "fresh-token", time.Now(),
		[]Status{StatusPendingSupervisor}))

	byToken, err := s.store.FindByToken(s.ctx, "fresh-token")
	require.NoError(s.T(), err)
	s.Equal(second.ID, byToken.ID)
}

func (s *PostgresStoreSuite) TestExitEntryCycle() {
	p := s.newPass(StatusPendingSupervisor)
	staffID := id.UserID(uuid.New())
	require.NoError(s.T(), s.store.SupervisorApprove(
		s.ctx, p.ID, staffID, uuid.NewString(), time.Now(),
		[]Status{StatusPendingSupervisor}))

	exitAt := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(s.T(), s.store.RecordExit(s.ctx, p.ID, staffID, exitAt))

	// A second exit without an entry in between is rejected.
	s.ErrorIs(s.store.RecordExit(s.ctx, p.ID, staffID, exitAt.Add(time.Minute)), sentinel.ErrInvalidState)

	outside, err := s.store.ListCurrentlyOutside(s.ctx)
	require.NoError(s.T(), err)
	require.Len(s.T(), outside, 1)
	s.Equal(p.ID, outside[0].ID)

	entryAt := exitAt.Add(2 * time.Hour)
	require.NoError(s.T(), s.store.RecordEntry(s.ctx, p.ID, staffID, entryAt))

	// Entry needs an open exit.
	s.ErrorIs(s.store.RecordEntry(s.ctx, p.ID, staffID, entryAt.Add(time.Minute)), sentinel.ErrInvalidState)

	// Re-exit opens a new outside period and clears the entry stamp.
	require.NoError(s.T(), s.store.RecordExit(s.ctx, p.ID, staffID, entryAt.Add(time.Hour)))
	found, err := s.store.FindByID(s.ctx, p.ID)
	require.NoError(s.T(), err)
	s.NotNil(found.ExitAt)
	s.Nil(found.EntryAt)
}

func (s *PostgresStoreSuite) TestCountPendingAndOverlap() {
	p := s.newPass(StatusPendingGuardian)

	count, err := s.store.CountPending(s.ctx, p.ResidentID)
	require.NoError(s.T(), err)
	s.Equal(1, count)

	overlaps, err := s.store.HasOverlapping(s.ctx, p.ResidentID, p.FromDate.Add(time.Hour), p.ToDate.Add(time.Hour))
	require.NoError(s.T(), err)
	s.True(overlaps)

	// Half-open ranges: a pass starting exactly at to_date does not overlap.
	overlaps, err = s.store.HasOverlapping(s.ctx, p.ResidentID, p.ToDate, p.ToDate.Add(24*time.Hour))
	require.NoError(s.T(), err)
	s.False(overlaps)
}
