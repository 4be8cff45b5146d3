package guardian

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"passgate/internal/identity"
	id "passgate/pkg/domain"
	dErrors "passgate/pkg/domain-errors"
)

type GuardianServiceSuite struct {
	suite.Suite
	ctx       context.Context
	store     *InMemoryStore
	directory *identity.InMemoryDirectory
	service   *Service

	guardianID id.UserID
	residentID id.UserID
	admin      id.Actor
}

func (s *GuardianServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
	s.directory = identity.NewInMemoryDirectory()
	s.service = NewService(s.store, s.directory, slog.New(slog.NewTextHandler(io.Discard, nil)))

	s.guardianID = id.NewUserID()
	s.residentID = id.NewUserID()
	s.admin = id.Actor{ID: id.NewUserID(), Role: id.RoleAdmin}

	s.directory.Add(identity.User{ID: s.guardianID, Role: id.RoleGuardian, DisplayName: "Guardian"})
	s.directory.Add(identity.User{ID: s.residentID, Role: id.RoleResident, DisplayName: "Resident"})
}

func TestGuardianServiceSuite(t *testing.T) {
	suite.Run(t, new(GuardianServiceSuite))
}

func (s *GuardianServiceSuite) TestLinkAndPredicate() {
	link, err := s.service.Link(s.ctx, s.guardianID, s.residentID, "parent", s.admin)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), LinkActive, link.Status)

	has, err := s.service.HasActiveLink(s.ctx, s.guardianID, s.residentID)
	require.NoError(s.T(), err)
	assert.True(s.T(), has)

	has, err = s.service.HasActiveApprover(s.ctx, s.residentID)
	require.NoError(s.T(), err)
	assert.True(s.T(), has)
}

func (s *GuardianServiceSuite) TestLinkRejectsWrongRoles() {
	// Guardian slot holding a resident account.
	_, err := s.service.Link(s.ctx, s.residentID, s.residentID, "parent", s.admin)
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeValidation))

	// Resident slot holding a guardian account.
	_, err = s.service.Link(s.ctx, s.guardianID, s.guardianID, "parent", s.admin)
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeValidation))

	// Unknown account.
	_, err = s.service.Link(s.ctx, id.NewUserID(), s.residentID, "parent", s.admin)
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *GuardianServiceSuite) TestLinkRejectsDuplicateActivePair() {
	_, err := s.service.Link(s.ctx, s.guardianID, s.residentID, "parent", s.admin)
	require.NoError(s.T(), err)

	_, err = s.service.Link(s.ctx, s.guardianID, s.residentID, "parent", s.admin)
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *GuardianServiceSuite) TestLinkRequiresPrivilegedActor() {
	resident := id.Actor{ID: s.residentID, Role: id.RoleResident}
	_, err := s.service.Link(s.ctx, s.guardianID, s.residentID, "parent", resident)
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *GuardianServiceSuite) TestUnlinkSoftDeletesAndAllowsRelink() {
	_, err := s.service.Link(s.ctx, s.guardianID, s.residentID, "parent", s.admin)
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.service.Unlink(s.ctx, s.guardianID, s.residentID, s.admin))

	has, err := s.service.HasActiveLink(s.ctx, s.guardianID, s.residentID)
	require.NoError(s.T(), err)
	assert.False(s.T(), has)

	// Soft delete keeps history but frees the pair for a new active link.
	_, err = s.service.Link(s.ctx, s.guardianID, s.residentID, "parent", s.admin)
	require.NoError(s.T(), err)
}

func (s *GuardianServiceSuite) TestUnlinkMissingLink() {
	err := s.service.Unlink(s.ctx, s.guardianID, s.residentID, s.admin)
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *GuardianServiceSuite) TestResidentsOfScopesGuardian() {
	otherResident := id.NewUserID()
	s.directory.Add(identity.User{ID: otherResident, Role: id.RoleResident})

	_, err := s.service.Link(s.ctx, s.guardianID, s.residentID, "parent", s.admin)
	require.NoError(s.T(), err)
	_, err = s.service.Link(s.ctx, s.guardianID, otherResident, "parent", s.admin)
	require.NoError(s.T(), err)

	residents, err := s.service.ResidentsOf(s.ctx, s.guardianID)
	require.NoError(s.T(), err)
	assert.ElementsMatch(s.T(), []id.UserID{s.residentID, otherResident}, residents)
}
