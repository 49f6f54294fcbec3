package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/Baaaki/devmarket/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProjectFilter struct {
	Type       models.ProjectType
	ForSale    *bool
	Technology string
	Search     string
	Page       int
	PageSize   int
}

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) CreateProject(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

// SaveProject writes every column of an existing project.
func (r *ProjectRepository) SaveProject(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Save(project).Error
}

func (r *ProjectRepository) DeleteProject(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// SQLite does not enforce the cascades, so dependents are removed explicitly.
		for _, dependent := range []interface{}{&models.View{}, &models.Review{}, &models.Comment{}, &models.Purchase{}} {
			if err := tx.Where("project_id = ?", id).Delete(dependent).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Project{}, "id = ?", id).Error
	})
}

func (r *ProjectRepository) GetProjectByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *ProjectRepository) GetProjectBySlug(ctx context.Context, slug string) (*models.Project, error) {
	return r.first(ctx, "slug = ?", slug)
}

func (r *ProjectRepository) first(ctx context.Context, query string, arg interface{}) (*models.Project, error) {
	var project models.Project
	err := r.db.WithContext(ctx).Where(query, arg).First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &project, nil
}

// SlugTaken reports whether another project already uses slug.
func (r *ProjectRepository) SlugTaken(ctx context.Context, slug string, exclude uuid.UUID) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.Project{}).Where("slug = ?", slug)
	if exclude != uuid.Nil {
		q = q.Where("id <> ?", exclude)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

// ListProjects returns one page of projects, newest first, plus the total match count.
func (r *ProjectRepository) ListProjects(ctx context.Context, f ProjectFilter) ([]models.Project, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Project{})
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.ForSale != nil {
		q = q.Where("for_sale = ?", *f.ForSale)
	}
	if f.Search != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(f.Search)+"%")
	}
	if f.Technology != "" {
		// JSON array stored as text on both drivers: match the quoted element.
		q = q.Where("LOWER(CAST(technologies AS TEXT)) LIKE ?", `%"`+strings.ToLower(f.Technology)+`"%`)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var projects []models.Project
	err := q.Session(&gorm.Session{}).
		Order("created_at DESC").
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&projects).Error
	return projects, total, err
}

// ListSitemapEntries returns slug and modification time of every project.
func (r *ProjectRepository) ListSitemapEntries(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	err := r.db.WithContext(ctx).
		Select("id", "slug", "updated_at").
		Order("updated_at DESC").
		Find(&projects).Error
	return projects, err
}
