//go:build integration

package settings

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"passgate/pkg/testutil/containers"
)

type CachedStoreSuite struct {
	suite.Suite

	ctx       context.Context
	container *containers.RedisContainer
}

func TestCachedStoreSuite(t *testing.T) {
	suite.Run(t, new(CachedStoreSuite))
}

func (s *CachedStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.container = containers.NewRedisContainer(s.T())
}

func (s *CachedStoreSuite) SetupTest() {
	require.NoError(s.T(), s.container.FlushAll(s.ctx))
}

func (s *CachedStoreSuite) newCached(inner Store) Store {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCachedStore(inner, s.container.Client, logger)
}

// countingStore counts Load calls so tests can tell cache hits from misses.
type countingStore struct {
	inner Store
	loads int
}

func (c *countingStore) Load(ctx context.Context) (Settings, error) {
	c.loads++
	return c.inner.Load(ctx)
}

func (c *countingStore) Save(ctx context.Context, settings Settings) error {
	return c.inner.Save(ctx, settings)
}

func (s *CachedStoreSuite) TestLoadFillsCache() {
	counting := &countingStore{inner: NewInMemoryStore()}
	cached := s.newCached(counting)

	saved := Defaults()
	saved.GeofenceRadiusMeters = 120
	saved.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(s.T(), cached.Save(s.ctx, saved))

	first, err := cached.Load(s.ctx)
	require.NoError(s.T(), err)
	s.Equal(120.0, first.GeofenceRadiusMeters)
	s.Equal(1, counting.loads)

	// Second read is served from redis.
	second, err := cached.Load(s.ctx)
	require.NoError(s.T(), err)
	s.Equal(120.0, second.GeofenceRadiusMeters)
	s.Equal(1, counting.loads)
}

func (s *CachedStoreSuite) TestSaveInvalidates() {
	counting := &countingStore{inner: NewInMemoryStore()}
	cached := s.newCached(counting)

	initial := Defaults()
	initial.GeofenceRadiusMeters = 80
	require.NoError(s.T(), cached.Save(s.ctx, initial))
	_, err := cached.Load(s.ctx)
	require.NoError(s.T(), err)

	updated := initial
	updated.GeofenceRadiusMeters = 200
	require.NoError(s.T(), cached.Save(s.ctx, updated))

	reloaded, err := cached.Load(s.ctx)
	require.NoError(s.T(), err)
	s.Equal(200.0, reloaded.GeofenceRadiusMeters)
}
