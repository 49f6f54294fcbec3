package service

import (
	"context"
	"time"

	"github.com/Baaaki/devmarket/internal/broker"
	"github.com/Baaaki/devmarket/internal/journal"
	"github.com/Baaaki/devmarket/internal/models"
	"github.com/Baaaki/devmarket/internal/repository"
	"github.com/google/uuid"
)

// Persistence contracts consumed by the services. The gorm repositories in
// internal/repository satisfy them.

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetAllUsers(ctx context.Context) ([]models.User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) (bool, error)
	ClaimAccount(ctx context.Context, id uuid.UUID, name, passwordHash string) (bool, error)
}

type ProjectStore interface {
	CreateProject(ctx context.Context, project *models.Project) error
	SaveProject(ctx context.Context, project *models.Project) error
	DeleteProject(ctx context.Context, id uuid.UUID) error
	GetProjectByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	GetProjectBySlug(ctx context.Context, slug string) (*models.Project, error)
	SlugTaken(ctx context.Context, slug string, exclude uuid.UUID) (bool, error)
	ListProjects(ctx context.Context, f repository.ProjectFilter) ([]models.Project, int64, error)
	ListSitemapEntries(ctx context.Context) ([]models.Project, error)
}

type PurchaseStore interface {
	CreatePurchase(ctx context.Context, purchase *models.Purchase) error
	GetPurchaseByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	FindPending(ctx context.Context, projectID, userID uuid.UUID) (*models.Purchase, error)
	ListPurchases(ctx context.Context, f repository.PurchaseFilter) ([]models.Purchase, error)
	ApplyDecision(ctx context.Context, id uuid.UUID, d repository.Decision) (bool, error)
	CountByStatus(ctx context.Context, status models.PurchaseStatus) (int64, error)
}

type ReviewStore interface {
	UpsertReview(ctx context.Context, review *models.Review) error
	GetReview(ctx context.Context, projectID, userID uuid.UUID) (*models.Review, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Review, error)
	Summary(ctx context.Context, projectID uuid.UUID) (models.RatingSummary, error)
}

type ViewStore interface {
	InsertView(ctx context.Context, view *models.View, cutoff time.Time) (bool, error)
	CountSince(ctx context.Context, projectID uuid.UUID, since time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type CommentStore interface {
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetCommentByID(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	ListThreads(ctx context.Context, projectID uuid.UUID) ([]models.Comment, error)
	ListUnread(ctx context.Context, limit int) ([]models.Comment, error)
	CountUnread(ctx context.Context) (int64, error)
	MarkRead(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// Journal records decisions and orphaned uploads.
type Journal interface {
	Append(entry journal.Entry) error
}

// Notifier publishes events to the live admin feed. Publishing is best effort.
type Notifier interface {
	Publish(ctx context.Context, n broker.Notification) error
}
