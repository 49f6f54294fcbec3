package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/Baaaki/devmarket/internal/cache"
	"github.com/Baaaki/devmarket/internal/models"
	"github.com/Baaaki/devmarket/internal/repository"
	"github.com/Baaaki/devmarket/internal/service"
	"github.com/Baaaki/devmarket/internal/testutil"
	"github.com/stretchr/testify/suite"
)

type ViewServiceTestSuite struct {
	suite.Suite
	testDB    *testutil.TestDatabase
	testRedis *testutil.TestRedis
	svc       *service.ViewService
	project   *models.Project
}

func (s *ViewServiceTestSuite) SetupTest() {
	s.testDB = testutil.SetupTestDatabase(s.T())
	s.testRedis = testutil.SetupTestRedis(s.T())
	s.svc = service.NewViewService(
		repository.NewViewRepository(s.testDB.DB),
		repository.NewProjectRepository(s.testDB.DB),
		cache.NewViewCache(s.testRedis.Client),
		720*time.Hour,
	)

	owner := testutil.DefaultTestUser(s.T(), s.testDB.DB)
	s.project = testutil.CreateProject(s.T(), s.testDB.DB, owner, "Viewed Project")
}

func (s *ViewServiceTestSuite) TearDownTest() {
	s.testRedis.Teardown(s.T())
	s.testDB.Teardown(s.T())
}

func (s *ViewServiceTestSuite) count() int64 {
	n, err := s.svc.Count(context.Background(), s.project.ID.String())
	s.Require().NoError(err)
	return n
}

func (s *ViewServiceTestSuite) TestRecord_Idempotent() {
	ctx := context.Background()

	s.True(s.svc.Record(ctx, s.project.Slug, "device-1"))
	s.False(s.svc.Record(ctx, s.project.ID.String(), "device-1"))

	s.Equal(int64(1), s.count())
}

func (s *ViewServiceTestSuite) TestRecord_DatabaseDedupWithoutCache() {
	ctx := context.Background()
	s.True(s.svc.Record(ctx, s.project.Slug, "device-1"))

	// A lost cache entry still cannot double count.
	s.testRedis.Server.FlushAll()
	s.False(s.svc.Record(ctx, s.project.Slug, "device-1"))

	s.Equal(int64(1), s.count())
}

func (s *ViewServiceTestSuite) TestRecord_RedisDownFallsThrough() {
	ctx := context.Background()
	s.testRedis.Server.Close()

	s.True(s.svc.Record(ctx, s.project.Slug, "device-1"))
	s.False(s.svc.Record(ctx, s.project.Slug, "device-1"))
	s.True(s.svc.Record(ctx, s.project.Slug, "device-2"))

	s.Equal(int64(2), s.count())
}

func (s *ViewServiceTestSuite) TestRecord_NeverFails() {
	ctx := context.Background()

	s.False(s.svc.Record(ctx, "missing-slug", "device-1"))
	s.False(s.svc.Record(ctx, s.project.Slug, ""))
	s.False(s.svc.Record(ctx, "", "device-1"))
}

func (s *ViewServiceTestSuite) TestExpiry() {
	ctx := context.Background()
	s.True(s.svc.Record(ctx, s.project.Slug, "device-old"))
	s.True(s.svc.Record(ctx, s.project.Slug, "device-new"))
	s.testDB.DB.Model(&models.View{}).
		Where("device_id = ?", "device-old").
		Update("created_at", time.Now().Add(-31*24*time.Hour))

	s.Equal(int64(1), s.count(), "expired views are not counted")

	deleted, err := s.svc.Sweep(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), deleted)

	var rows int64
	s.testDB.DB.Model(&models.View{}).Count(&rows)
	s.Equal(int64(1), rows)
}

func (s *ViewServiceTestSuite) TestRecord_ExpiredViewCountsAgain() {
	ctx := context.Background()
	s.True(s.svc.Record(ctx, s.project.Slug, "device-1"))
	s.testDB.DB.Model(&models.View{}).
		Where("device_id = ?", "device-1").
		Update("created_at", time.Now().Add(-31*24*time.Hour))
	s.testRedis.Server.FastForward(721 * time.Hour)
	s.Equal(int64(0), s.count())

	// The expired row has not been swept yet.
	s.True(s.svc.Record(ctx, s.project.Slug, "device-1"))
	s.Equal(int64(1), s.count())
	s.False(s.svc.Record(ctx, s.project.Slug, "device-1"))

	var rows int64
	s.testDB.DB.Model(&models.View{}).Count(&rows)
	s.Equal(int64(1), rows)
}

func TestViewServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ViewServiceTestSuite))
}
