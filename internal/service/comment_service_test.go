package service_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Baaaki/devmarket/internal/broker"
	"github.com/Baaaki/devmarket/internal/config"
	"github.com/Baaaki/devmarket/internal/journal"
	"github.com/Baaaki/devmarket/internal/models"
	"github.com/Baaaki/devmarket/internal/repository"
	"github.com/Baaaki/devmarket/internal/service"
	"github.com/Baaaki/devmarket/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type CommentServiceTestSuite struct {
	suite.Suite
	testDB        *testutil.TestDatabase
	notifier      *testutil.RecordingNotifier
	svc           *service.CommentService
	notifications *service.NotificationService
	user          *models.User
	admin         *models.User
	project       *models.Project
}

func (s *CommentServiceTestSuite) SetupTest() {
	s.testDB = testutil.SetupTestDatabase(s.T())
	s.notifier = &testutil.RecordingNotifier{}

	projects := repository.NewProjectRepository(s.testDB.DB)
	s.svc = service.NewCommentService(repository.NewCommentRepository(s.testDB.DB), projects, s.notifier)

	j, err := journal.Open(filepath.Join(s.T().TempDir(), "journal.log"))
	s.Require().NoError(err)
	s.T().Cleanup(func() { j.Close() })
	purchases, err := service.NewPurchaseService(
		repository.NewPurchaseRepository(s.testDB.DB),
		projects,
		testutil.NewMemoryStore(),
		j,
		s.notifier,
		config.DefaultDeliveryEmailPattern,
		time.Second,
	)
	s.Require().NoError(err)
	s.notifications = service.NewNotificationService(s.svc, purchases)

	s.user = testutil.DefaultTestUser(s.T(), s.testDB.DB)
	s.admin = testutil.DefaultAdminUser(s.T(), s.testDB.DB)
	s.project = testutil.CreateProject(s.T(), s.testDB.DB, s.admin, "Discussed Project")
}

func (s *CommentServiceTestSuite) TearDownTest() {
	s.testDB.Teardown(s.T())
}

func (s *CommentServiceTestSuite) comment(actor *models.User, parent *uuid.UUID, body string) *service.CommentView {
	view, err := s.svc.Create(context.Background(), actor, service.CommentInput{
		ProjectRef: s.project.Slug,
		ParentID:   parent,
		Body:       body,
	})
	s.Require().NoError(err)
	return view
}

func (s *CommentServiceTestSuite) TestCreate_NotifiesForUserComments() {
	top := s.comment(s.user, nil, "  Does it support dark mode?  ")

	s.Equal("Does it support dark mode?", top.Body)
	s.False(top.IsRead)
	s.Equal(s.user.Name, top.User.Name)

	sent := s.notifier.Sent()
	s.Require().Len(sent, 1)
	s.Equal(broker.NotificationCommentCreated, sent[0].Type)
	s.Equal(top.ID, *sent[0].CommentID)

	reply := s.comment(s.admin, &top.ID, "Yes, out of the box.")
	s.True(reply.IsRead)
	s.Len(s.notifier.Sent(), 1, "admin comments do not notify")
}

func (s *CommentServiceTestSuite) TestCreate_Validation() {
	ctx := context.Background()
	other := testutil.CreateProject(s.T(), s.testDB.DB, s.admin, "Other Project")
	top := s.comment(s.user, nil, "Question")
	reply := s.comment(s.admin, &top.ID, "Answer")
	foreign, err := s.svc.Create(ctx, s.user, service.CommentInput{ProjectRef: other.Slug, Body: "Elsewhere"})
	s.Require().NoError(err)
	missing := uuid.New()

	testCases := []struct {
		name string
		in   service.CommentInput
		want error
	}{
		{name: "empty_body", in: service.CommentInput{ProjectRef: s.project.Slug, Body: " \n "}, want: service.ErrInvalidArgument},
		{name: "long_body", in: service.CommentInput{ProjectRef: s.project.Slug, Body: strings.Repeat("x", 1001)}, want: service.ErrInvalidArgument},
		{name: "nested_reply", in: service.CommentInput{ProjectRef: s.project.Slug, ParentID: &reply.ID, Body: "Deeper"}, want: service.ErrInvalidArgument},
		{name: "parent_on_other_project", in: service.CommentInput{ProjectRef: s.project.Slug, ParentID: &foreign.ID, Body: "Cross"}, want: service.ErrInvalidArgument},
		{name: "missing_parent", in: service.CommentInput{ProjectRef: s.project.Slug, ParentID: &missing, Body: "Orphan"}, want: service.ErrInvalidArgument},
		{name: "unknown_project", in: service.CommentInput{ProjectRef: "nope", Body: "Hello"}, want: service.ErrNotFound},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, err := s.svc.Create(ctx, s.user, tc.in)
			s.ErrorIs(err, tc.want)
		})
	}

	_, err = s.svc.Create(ctx, nil, service.CommentInput{ProjectRef: s.project.Slug, Body: "Anonymous"})
	s.ErrorIs(err, service.ErrIdentityUnresolved)
}

func (s *CommentServiceTestSuite) TestList_Threads() {
	first := s.comment(s.user, nil, "First question")
	s.comment(s.admin, &first.ID, "First answer")
	s.comment(s.user, &first.ID, "Follow-up")

	threads, err := s.svc.List(context.Background(), s.project.ID.String())

	s.Require().NoError(err)
	s.Require().Len(threads, 1)
	s.Equal(first.ID, threads[0].ID)
	s.Require().Len(threads[0].Replies, 2)
	s.Equal("First answer", threads[0].Replies[0].Body)
	s.Equal("Follow-up", threads[0].Replies[1].Body)
	s.Equal(s.admin.Name, threads[0].Replies[0].User.Name)
}

func (s *CommentServiceTestSuite) TestSummaryAndMarkRead() {
	ctx := context.Background()
	a := s.comment(s.user, nil, "One")
	s.comment(s.user, nil, "Two")
	s.comment(s.admin, &a.ID, "Reply")

	_, err := s.notifications.Summary(ctx, s.user)
	s.ErrorIs(err, service.ErrForbidden)

	summary, err := s.notifications.Summary(ctx, s.admin)
	s.Require().NoError(err)
	s.Equal(int64(2), summary.UnreadComments)
	s.Equal(int64(0), summary.PendingPurchases)
	s.Require().Len(summary.Comments, 2)
	s.Equal(s.project.Title, summary.Comments[0].ProjectTitle)

	_, err = s.svc.MarkRead(ctx, s.user, nil)
	s.ErrorIs(err, service.ErrForbidden)

	n, err := s.svc.MarkRead(ctx, s.admin, []uuid.UUID{a.ID})
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	n, err = s.svc.MarkRead(ctx, s.admin, nil)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	summary, err = s.notifications.Summary(ctx, s.admin)
	s.Require().NoError(err)
	s.Zero(summary.UnreadComments)
	s.Empty(summary.Comments)
}

func TestCommentServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CommentServiceTestSuite))
}
