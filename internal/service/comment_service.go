package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Baaaki/devmarket/internal/broker"
	"github.com/Baaaki/devmarket/internal/models"
	"github.com/Baaaki/devmarket/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxUnreadListed = 50

type CommentInput struct {
	ProjectRef string
	ParentID   *uuid.UUID
	Body       string
}

type CommentView struct {
	ID        uuid.UUID           `json:"id"`
	ProjectID uuid.UUID           `json:"project_id"`
	ParentID  *uuid.UUID          `json:"parent_id,omitempty"`
	Body      string              `json:"body"`
	IsRead    bool                `json:"is_read"`
	CreatedAt time.Time           `json:"created_at"`
	User      *models.UserSummary `json:"user,omitempty"`
	// Set on admin listings only.
	ProjectTitle string        `json:"project_title,omitempty"`
	Replies      []CommentView `json:"replies,omitempty"`
}

type CommentService struct {
	comments CommentStore
	projects ProjectStore
	notifier Notifier
}

func NewCommentService(comments CommentStore, projects ProjectStore, notifier Notifier) *CommentService {
	return &CommentService{comments: comments, projects: projects, notifier: notifier}
}

func (s *CommentService) Create(ctx context.Context, actor *models.User, in CommentInput) (*CommentView, error) {
	if actor == nil {
		return nil, ErrIdentityUnresolved
	}

	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, invalidf("comment body is required")
	}
	if utf8.RuneCountInString(body) > models.MaxCommentLength {
		return nil, invalidf("comment must be at most %d characters", models.MaxCommentLength)
	}

	project, err := findProject(ctx, s.projects, in.ProjectRef)
	if err != nil {
		return nil, err
	}

	if in.ParentID != nil {
		parent, err := s.comments.GetCommentByID(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil || parent.ProjectID != project.ID {
			return nil, invalidf("parent comment not found on this project")
		}
		if parent.ParentID != nil {
			return nil, invalidf("replies cannot be nested")
		}
	}

	comment := &models.Comment{
		ProjectID: project.ID,
		UserID:    actor.ID,
		ParentID:  in.ParentID,
		Body:      body,
		// Admins are the audience of unread notifications; their own
		// comments never need attention.
		IsRead: actor.IsAdmin(),
	}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		logger.Log.Error("Failed to create comment",
			zap.String("project_id", project.ID.String()),
			zap.String("user_id", actor.ID.String()),
			zap.Error(err),
		)
		return nil, err
	}
	comment.User = actor

	logger.Log.Info("Comment created",
		zap.String("comment_id", comment.ID.String()),
		zap.String("project_id", project.ID.String()),
		zap.String("user_id", actor.ID.String()),
	)

	if !actor.IsAdmin() && s.notifier != nil {
		err := s.notifier.Publish(ctx, broker.Notification{
			Type:      broker.NotificationCommentCreated,
			ProjectID: &project.ID,
			CommentID: &comment.ID,
			Message:   fmt.Sprintf("%s commented on %q", actor.Name, project.Title),
		})
		if err != nil {
			logger.Log.Warn("Failed to publish notification", zap.Error(err))
		}
	}

	view := toCommentView(comment)
	return &view, nil
}

// List returns the threads of a project: top-level comments, newest first,
// each with its replies in posting order.
func (s *CommentService) List(ctx context.Context, projectRef string) ([]CommentView, error) {
	project, err := findProject(ctx, s.projects, projectRef)
	if err != nil {
		return nil, err
	}

	threads, err := s.comments.ListThreads(ctx, project.ID)
	if err != nil {
		logger.Log.Error("Failed to list comments", zap.String("project_id", project.ID.String()), zap.Error(err))
		return nil, err
	}

	out := make([]CommentView, 0, len(threads))
	for i := range threads {
		view := toCommentView(&threads[i])
		for j := range threads[i].Replies {
			view.Replies = append(view.Replies, toCommentView(&threads[i].Replies[j]))
		}
		out = append(out, view)
	}
	return out, nil
}

// MarkRead flags comments as read; no ids means all of them.
func (s *CommentService) MarkRead(ctx context.Context, actor *models.User, ids []uuid.UUID) (int64, error) {
	if !actor.IsAdmin() {
		return 0, ErrForbidden
	}

	n, err := s.comments.MarkRead(ctx, ids)
	if err != nil {
		logger.Log.Error("Failed to mark comments read", zap.Error(err))
		return 0, err
	}

	logger.Log.Info("Comments marked read",
		zap.Int64("count", n),
		zap.String("admin_id", actor.ID.String()),
	)
	return n, nil
}

func (s *CommentService) unread(ctx context.Context) (int64, []CommentView, error) {
	count, err := s.comments.CountUnread(ctx)
	if err != nil {
		return 0, nil, err
	}
	comments, err := s.comments.ListUnread(ctx, maxUnreadListed)
	if err != nil {
		return 0, nil, err
	}

	out := make([]CommentView, 0, len(comments))
	for i := range comments {
		view := toCommentView(&comments[i])
		if comments[i].Project != nil {
			view.ProjectTitle = comments[i].Project.Title
		}
		out = append(out, view)
	}
	return count, out, nil
}

func toCommentView(c *models.Comment) CommentView {
	return CommentView{
		ID:        c.ID,
		ProjectID: c.ProjectID,
		ParentID:  c.ParentID,
		Body:      c.Body,
		IsRead:    c.IsRead,
		CreatedAt: c.CreatedAt,
		User:      c.User.Summary(),
	}
}
