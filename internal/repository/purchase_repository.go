package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Baaaki/devmarket/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PurchaseFilter struct {
	UserID    *uuid.UUID
	ProjectID *uuid.UUID
	Status    models.PurchaseStatus
}

// Decision is the admin outcome written onto a pending purchase.
type Decision struct {
	Status     models.PurchaseStatus
	Feedback   *string
	ReviewedBy uuid.UUID
	ReviewedAt time.Time
}

type PurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// CreatePurchase inserts a purchase. A second pending purchase for the same
// project and user fails with gorm.ErrDuplicatedKey.
func (r *PurchaseRepository) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	return r.db.WithContext(ctx).Create(purchase).Error
}

func (r *PurchaseRepository) GetPurchaseByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.WithContext(ctx).
		Preload("Project").
		Preload("User").
		Where("id = ?", id).
		First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

func (r *PurchaseRepository) FindPending(ctx context.Context, projectID, userID uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ? AND status = ?", projectID, userID, models.PurchaseStatusPending).
		First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

func (r *PurchaseRepository) ListPurchases(ctx context.Context, f PurchaseFilter) ([]models.Purchase, error) {
	q := r.db.WithContext(ctx).Preload("Project").Preload("User")
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.ProjectID != nil {
		q = q.Where("project_id = ?", *f.ProjectID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var purchases []models.Purchase
	err := q.Order("created_at DESC").Find(&purchases).Error
	return purchases, err
}

// ApplyDecision moves a purchase out of pending. The update is conditional on
// the row still being pending; false means nothing was changed.
func (r *PurchaseRepository) ApplyDecision(ctx context.Context, id uuid.UUID, d Decision) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Purchase{}).
		Where("id = ? AND status = ?", id, models.PurchaseStatusPending).
		Updates(map[string]interface{}{
			"status":      d.Status,
			"feedback":    d.Feedback,
			"reviewed_by": d.ReviewedBy,
			"reviewed_at": d.ReviewedAt,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *PurchaseRepository) CountByStatus(ctx context.Context, status models.PurchaseStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Purchase{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}
