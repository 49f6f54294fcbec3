package repository

import (
	"context"
	"time"

	"github.com/Baaaki/devmarket/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ViewRepository struct {
	db *gorm.DB
}

func NewViewRepository(db *gorm.DB) *ViewRepository {
	return &ViewRepository{db: db}
}

// InsertView records a view; false means the (project, device) pair was
// already counted after cutoff. An older row for the pair is expired but may
// not be swept yet, so it is refreshed in place.
func (r *ViewRepository) InsertView(ctx context.Context, view *models.View, cutoff time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "device_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"created_at"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "views.created_at < ?", Vars: []interface{}{cutoff}},
			}},
		}).
		Create(view)
	return res.RowsAffected > 0, res.Error
}

func (r *ViewRepository) CountSince(ctx context.Context, projectID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.View{}).
		Where("project_id = ? AND created_at >= ?", projectID, since).
		Count(&count).Error
	return count, err
}

// DeleteOlderThan removes expired views and returns how many were dropped.
func (r *ViewRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.View{})
	return res.RowsAffected, res.Error
}
