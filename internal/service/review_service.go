package service

import (
	"context"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/Baaaki/devmarket/internal/models"
	"github.com/Baaaki/devmarket/pkg/logger"
	"go.uber.org/zap"
)

type ReviewInput struct {
	ProjectRef string
	Rating     int
	Comment    string
	// AuthorEmail lets an admin file a review on behalf of someone else. The
	// account is created when the email is unknown.
	AuthorEmail string
	AuthorName  string
}

type ReviewView struct {
	models.Review
	User *models.UserSummary `json:"user,omitempty"`
}

type ReviewList struct {
	Reviews []ReviewView         `json:"reviews"`
	Summary models.RatingSummary `json:"summary"`
}

type ReviewService struct {
	reviews  ReviewStore
	projects ProjectStore
	identity *IdentityResolver
}

func NewReviewService(reviews ReviewStore, projects ProjectStore, identity *IdentityResolver) *ReviewService {
	return &ReviewService{reviews: reviews, projects: projects, identity: identity}
}

// Upsert stores the author's single review of a project, replacing rating
// and comment when one already exists.
func (s *ReviewService) Upsert(ctx context.Context, actor *models.User, in ReviewInput) (*ReviewView, error) {
	if actor == nil {
		return nil, ErrIdentityUnresolved
	}

	comment := strings.TrimSpace(in.Comment)
	if in.Rating < 1 || in.Rating > 5 {
		return nil, invalidf("rating must be between 1 and 5")
	}
	if comment == "" {
		return nil, invalidf("comment is required")
	}
	if utf8.RuneCountInString(comment) > models.MaxReviewCommentLength {
		return nil, invalidf("comment must be at most %d characters", models.MaxReviewCommentLength)
	}

	author := actor
	if email := strings.TrimSpace(in.AuthorEmail); email != "" && !strings.EqualFold(email, actor.Email) {
		if !actor.IsAdmin() {
			return nil, ErrForbidden
		}
		normalized := normalizeEmail(email)
		if normalized == "" {
			return nil, invalidf("invalid author email")
		}
		var err error
		if author, err = s.identity.findOrCreate(ctx, normalized, in.AuthorName); err != nil {
			return nil, err
		}
	}

	project, err := findProject(ctx, s.projects, in.ProjectRef)
	if err != nil {
		return nil, err
	}

	review := &models.Review{
		ProjectID: project.ID,
		UserID:    author.ID,
		Rating:    in.Rating,
		Comment:   comment,
	}
	if err := s.reviews.UpsertReview(ctx, review); err != nil {
		logger.Log.Error("Failed to upsert review",
			zap.String("project_id", project.ID.String()),
			zap.String("user_id", author.ID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	// The stored row keeps its original id on update, so read it back.
	stored, err := s.reviews.GetReview(ctx, project.ID, author.ID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, ErrNotFound
	}

	logger.Log.Info("Review saved",
		zap.String("review_id", stored.ID.String()),
		zap.String("project_id", project.ID.String()),
		zap.String("user_id", author.ID.String()),
		zap.Int("rating", in.Rating),
	)
	return &ReviewView{Review: *stored, User: stored.User.Summary()}, nil
}

func (s *ReviewService) List(ctx context.Context, projectRef string) (*ReviewList, error) {
	project, err := findProject(ctx, s.projects, projectRef)
	if err != nil {
		return nil, err
	}

	reviews, err := s.reviews.ListByProject(ctx, project.ID)
	if err != nil {
		logger.Log.Error("Failed to list reviews", zap.String("project_id", project.ID.String()), zap.Error(err))
		return nil, err
	}
	summary, err := s.reviews.Summary(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	summary.Average = math.Round(summary.Average*10) / 10

	out := &ReviewList{Reviews: make([]ReviewView, 0, len(reviews)), Summary: summary}
	for i := range reviews {
		out.Reviews = append(out.Reviews, ReviewView{Review: reviews[i], User: reviews[i].User.Summary()})
	}
	return out, nil
}
