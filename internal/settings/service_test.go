package settings

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	id "passgate/pkg/domain"
	dErrors "passgate/pkg/domain-errors"
)

type SettingsServiceSuite struct {
	suite.Suite
	store   *InMemoryStore
	service *Service
}

func (s *SettingsServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.service = NewService(s.store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSettingsServiceSuite(t *testing.T) {
	suite.Run(t, new(SettingsServiceSuite))
}

func (s *SettingsServiceSuite) TestGetFallsBackToDefaults() {
	got, err := s.service.Get(context.Background())
	require.NoError(s.T(), err)
	assert.Equal(s.T(), Defaults(), got)
}

func (s *SettingsServiceSuite) TestUpdateRequiresAdmin() {
	actor := id.Actor{ID: id.NewUserID(), Role: id.RoleSupervisor}
	_, err := s.service.Update(context.Background(), actor, Defaults())
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *SettingsServiceSuite) TestUpdatePersistsAndGetReturnsIt() {
	admin := id.Actor{ID: id.NewUserID(), Role: id.RoleAdmin}
	updated := Defaults()
	updated.GeofenceRadiusMeters = 50
	updated.MaxGatePassDays = 3

	saved, err := s.service.Update(context.Background(), admin, updated)
	require.NoError(s.T(), err)
	assert.False(s.T(), saved.UpdatedAt.IsZero())

	got, err := s.service.Get(context.Background())
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 50.0, got.GeofenceRadiusMeters)
	assert.Equal(s.T(), 3, got.MaxGatePassDays)
}

func (s *SettingsServiceSuite) TestUpdateValidates() {
	admin := id.Actor{ID: id.NewUserID(), Role: id.RoleAdmin}

	bad := Defaults()
	bad.GeofenceRadiusMeters = 0
	_, err := s.service.Update(context.Background(), admin, bad)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeValidation))

	bad = Defaults()
	bad.Timezone = "Mars/Olympus"
	_, err = s.service.Update(context.Background(), admin, bad)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeValidation))

	bad = Defaults()
	bad.WindowEnabled = true
	bad.WindowStartHour = 22
	bad.WindowEndHour = 20
	_, err = s.service.Update(context.Background(), admin, bad)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeValidation))
}
