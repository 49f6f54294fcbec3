package repository

import (
	"context"
	"errors"

	"github.com/Baaaki/devmarket/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// UpsertReview inserts the review or, when the (project, user) pair already has
// one, overwrites its rating and comment in the same statement.
func (r *ReviewRepository) UpsertReview(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rating", "comment", "updated_at"}),
	}).Create(review).Error
}

func (r *ReviewRepository) GetReview(ctx context.Context, projectID, userID uuid.UUID) (*models.Review, error) {
	var review models.Review
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&review).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &review, nil
}

func (r *ReviewRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Review, error) {
	var reviews []models.Review
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("project_id = ?", projectID).
		Order("updated_at DESC").
		Find(&reviews).Error
	return reviews, err
}

func (r *ReviewRepository) Summary(ctx context.Context, projectID uuid.UUID) (models.RatingSummary, error) {
	var summary models.RatingSummary
	err := r.db.WithContext(ctx).Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Where("project_id = ?", projectID).
		Scan(&summary).Error
	return summary, err
}
