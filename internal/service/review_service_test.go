package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/Baaaki/devmarket/internal/models"
	"github.com/Baaaki/devmarket/internal/repository"
	"github.com/Baaaki/devmarket/internal/service"
	"github.com/Baaaki/devmarket/internal/testutil"
	"github.com/stretchr/testify/suite"
)

type ReviewServiceTestSuite struct {
	suite.Suite
	testDB  *testutil.TestDatabase
	users   *repository.UserRepository
	svc     *service.ReviewService
	buyer   *models.User
	admin   *models.User
	project *models.Project
}

func (s *ReviewServiceTestSuite) SetupTest() {
	s.testDB = testutil.SetupTestDatabase(s.T())
	s.users = repository.NewUserRepository(s.testDB.DB)
	s.svc = service.NewReviewService(
		repository.NewReviewRepository(s.testDB.DB),
		repository.NewProjectRepository(s.testDB.DB),
		service.NewIdentityResolver(s.users),
	)

	s.buyer = testutil.DefaultTestUser(s.T(), s.testDB.DB)
	s.admin = testutil.DefaultAdminUser(s.T(), s.testDB.DB)
	s.project = testutil.CreateProject(s.T(), s.testDB.DB, s.admin, "Review Target")
}

func (s *ReviewServiceTestSuite) TearDownTest() {
	s.testDB.Teardown(s.T())
}

func (s *ReviewServiceTestSuite) countReviews() int64 {
	var n int64
	s.testDB.DB.Model(&models.Review{}).Count(&n)
	return n
}

func (s *ReviewServiceTestSuite) TestUpsert_SecondSubmissionUpdates() {
	ctx := context.Background()

	first, err := s.svc.Upsert(ctx, s.buyer, service.ReviewInput{ProjectRef: s.project.ID.String(), Rating: 3, Comment: "Decent"})
	s.Require().NoError(err)
	second, err := s.svc.Upsert(ctx, s.buyer, service.ReviewInput{ProjectRef: s.project.Slug, Rating: 5, Comment: "  Great after the update  "})
	s.Require().NoError(err)

	s.Equal(int64(1), s.countReviews())
	s.Equal(first.ID, second.ID)
	s.Equal(5, second.Rating)
	s.Equal("Great after the update", second.Comment)
	s.Require().NotNil(second.User)
	s.Equal(s.buyer.Name, second.User.Name)
}

func (s *ReviewServiceTestSuite) TestUpsert_Validation() {
	ctx := context.Background()
	ref := s.project.ID.String()
	testCases := []struct {
		name string
		in   service.ReviewInput
	}{
		{name: "rating_zero", in: service.ReviewInput{ProjectRef: ref, Rating: 0, Comment: "x"}},
		{name: "rating_six", in: service.ReviewInput{ProjectRef: ref, Rating: 6, Comment: "x"}},
		{name: "empty_comment", in: service.ReviewInput{ProjectRef: ref, Rating: 4, Comment: "   "}},
		{name: "long_comment", in: service.ReviewInput{ProjectRef: ref, Rating: 4, Comment: strings.Repeat("é", 501)}},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, err := s.svc.Upsert(ctx, s.buyer, tc.in)
			s.ErrorIs(err, service.ErrInvalidArgument)
		})
	}
	s.Equal(int64(0), s.countReviews())
}

func (s *ReviewServiceTestSuite) TestUpsert_UnknownProject() {
	_, err := s.svc.Upsert(context.Background(), s.buyer, service.ReviewInput{ProjectRef: "no-such-project", Rating: 4, Comment: "ok"})
	s.ErrorIs(err, service.ErrNotFound)
}

func (s *ReviewServiceTestSuite) TestUpsert_OnBehalfOfEmail() {
	ctx := context.Background()
	in := service.ReviewInput{
		ProjectRef:  s.project.ID.String(),
		Rating:      4,
		Comment:     "Sent by email",
		AuthorEmail: "New.Customer@Example.com",
	}

	_, err := s.svc.Upsert(ctx, s.buyer, in)
	s.ErrorIs(err, service.ErrForbidden)

	review, err := s.svc.Upsert(ctx, s.admin, in)
	s.Require().NoError(err)

	created, err := s.users.GetUserByEmail(ctx, "new.customer@example.com")
	s.Require().NoError(err)
	s.Require().NotNil(created)
	s.False(created.HasPassword())
	s.Equal(models.RoleUser, created.Role)
	s.Equal(created.ID, review.UserID)
	s.Equal("new.customer", review.User.Name)
}

func (s *ReviewServiceTestSuite) TestList_Summary() {
	ctx := context.Background()
	other := testutil.CreateUser(s.T(), s.testDB.DB, "Other", "other@example.com", "", models.RoleUser)
	_, err := s.svc.Upsert(ctx, s.buyer, service.ReviewInput{ProjectRef: s.project.Slug, Rating: 4, Comment: "Good"})
	s.Require().NoError(err)
	_, err = s.svc.Upsert(ctx, other, service.ReviewInput{ProjectRef: s.project.Slug, Rating: 5, Comment: "Great"})
	s.Require().NoError(err)

	list, err := s.svc.List(ctx, s.project.Slug)

	s.Require().NoError(err)
	s.Len(list.Reviews, 2)
	s.Equal(int64(2), list.Summary.Count)
	s.InDelta(4.5, list.Summary.Average, 0.001)
}

func TestReviewServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ReviewServiceTestSuite))
}
