package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Baaaki/devmarket/internal/models"
	"github.com/Baaaki/devmarket/internal/repository"
	"github.com/Baaaki/devmarket/internal/seo"
	"github.com/Baaaki/devmarket/internal/storage"
	"github.com/Baaaki/devmarket/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 12
	maxPageSize     = 100
	slugAttempts    = 3
)

// ProjectInput carries the writable project fields. Nil fields are left
// unchanged on update and take their zero value on create.
type ProjectInput struct {
	Title        *string             `json:"title"`
	Description  *string             `json:"description"`
	Price        *float64            `json:"price"`
	Images       []string            `json:"images"`
	Technologies []string            `json:"technologies"`
	Features     []string            `json:"features"`
	Type         *models.ProjectType `json:"type"`
	DemoURL      *string             `json:"demo_url"`
	SourceURL    *string             `json:"source_url"`
	FileURL      *string             `json:"file_url"`
	PaymentQRURL *string             `json:"payment_qr_url"`
	// PaymentURI is rendered to a QR image and replaces PaymentQRURL.
	PaymentURI *string `json:"payment_uri"`
	ForSale    *bool   `json:"for_sale"`
}

type ProjectQuery struct {
	Type     models.ProjectType
	ForSale  *bool
	Tag      string
	Search   string
	Page     int
	PageSize int
}

type ProjectPage struct {
	Items    []models.Project `json:"items"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// ProjectDetail is a project with its aggregates.
type ProjectDetail struct {
	*models.Project
	Owner  *models.UserSummary  `json:"owner,omitempty"`
	Rating models.RatingSummary `json:"rating"`
	Views  int64                `json:"views"`
}

// ViewCounter reports recent views of a project.
type ViewCounter interface {
	CountRecent(ctx context.Context, projectID uuid.UUID) (int64, error)
}

type ProjectService struct {
	projects ProjectStore
	users    UserStore
	reviews  ReviewStore
	views    ViewCounter
	store    storage.ObjectStore
	drafter  *seo.Drafter
	siteURL  string
}

func NewProjectService(
	projects ProjectStore,
	users UserStore,
	reviews ReviewStore,
	views ViewCounter,
	store storage.ObjectStore,
	drafter *seo.Drafter,
	siteURL string,
) *ProjectService {
	return &ProjectService{
		projects: projects,
		users:    users,
		reviews:  reviews,
		views:    views,
		store:    store,
		drafter:  drafter,
		siteURL:  siteURL,
	}
}

func (s *ProjectService) Create(ctx context.Context, actor *models.User, in ProjectInput) (*models.Project, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}

	project := &models.Project{OwnerID: actor.ID, Type: models.ProjectTypeOther}
	if in.Title == nil {
		return nil, invalidf("title is required")
	}
	if err := s.apply(ctx, project, in); err != nil {
		logger.Log.Warn("Project validation failed", zap.String("user_id", actor.ID.String()), zap.Error(err))
		return nil, err
	}

	base := Slugify(project.Title)
	if base == "" {
		base = "project"
	}
	err := s.withUniqueSlug(ctx, project, base, func() error {
		return s.projects.CreateProject(ctx, project)
	})
	if err != nil {
		logger.Log.Error("Failed to create project", zap.String("user_id", actor.ID.String()), zap.Error(err))
		return nil, err
	}

	logger.Log.Info("Project created",
		zap.String("project_id", project.ID.String()),
		zap.String("slug", project.Slug),
		zap.String("user_id", actor.ID.String()),
	)
	return project, nil
}

func (s *ProjectService) Update(ctx context.Context, actor *models.User, id uuid.UUID, in ProjectInput) (*models.Project, error) {
	project, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	previousTitle := project.Title
	if err := s.apply(ctx, project, in); err != nil {
		logger.Log.Warn("Project validation failed", zap.String("project_id", id.String()), zap.Error(err))
		return nil, err
	}

	save := func() error { return s.projects.SaveProject(ctx, project) }
	if project.Title != previousTitle {
		// A title without usable characters keeps the previous slug.
		if base := Slugify(project.Title); base != "" && base != project.Slug {
			err = s.withUniqueSlug(ctx, project, base, save)
		} else {
			err = save()
		}
	} else {
		err = save()
	}
	if err != nil {
		logger.Log.Error("Failed to update project", zap.String("project_id", id.String()), zap.Error(err))
		return nil, err
	}

	logger.Log.Info("Project updated",
		zap.String("project_id", id.String()),
		zap.String("slug", project.Slug),
		zap.String("user_id", actor.ID.String()),
	)
	return project, nil
}

func (s *ProjectService) Delete(ctx context.Context, actor *models.User, id uuid.UUID) error {
	if _, err := s.editable(ctx, actor, id); err != nil {
		return err
	}
	if err := s.projects.DeleteProject(ctx, id); err != nil {
		logger.Log.Error("Failed to delete project", zap.String("project_id", id.String()), zap.Error(err))
		return err
	}

	logger.Log.Info("Project deleted",
		zap.String("project_id", id.String()),
		zap.String("user_id", actor.ID.String()),
	)
	return nil
}

// Resolve finds a project by id or slug. It returns ErrNotFound when neither matches.
func (s *ProjectService) Resolve(ctx context.Context, ref string) (*models.Project, error) {
	return findProject(ctx, s.projects, ref)
}

func findProject(ctx context.Context, projects ProjectStore, ref string) (*models.Project, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, invalidf("project reference is required")
	}

	var (
		project *models.Project
		err     error
	)
	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		project, err = projects.GetProjectByID(ctx, id)
	} else {
		project, err = projects.GetProjectBySlug(ctx, strings.ToLower(ref))
	}
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrNotFound
	}
	return project, nil
}

func (s *ProjectService) Get(ctx context.Context, ref string) (*ProjectDetail, error) {
	project, err := s.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	detail := &ProjectDetail{Project: project}

	owner, err := s.users.GetUserByID(ctx, project.OwnerID)
	if err != nil {
		return nil, err
	}
	detail.Owner = owner.Summary()

	if detail.Rating, err = s.reviews.Summary(ctx, project.ID); err != nil {
		return nil, err
	}
	detail.Rating.Average = math.Round(detail.Rating.Average*10) / 10

	// View counts are analytics; a failure only hides the number.
	if detail.Views, err = s.views.CountRecent(ctx, project.ID); err != nil {
		logger.Log.Warn("Failed to count views", zap.String("project_id", project.ID.String()), zap.Error(err))
		detail.Views = 0
	}
	return detail, nil
}

func (s *ProjectService) List(ctx context.Context, q ProjectQuery) (*ProjectPage, error) {
	if q.Type != "" && !q.Type.Valid() {
		return nil, invalidf("unknown project type %q", q.Type)
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = defaultPageSize
	}
	if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}

	items, total, err := s.projects.ListProjects(ctx, repository.ProjectFilter{
		Type:       q.Type,
		ForSale:    q.ForSale,
		Technology: strings.TrimSpace(q.Tag),
		Search:     strings.TrimSpace(q.Search),
		Page:       q.Page,
		PageSize:   q.PageSize,
	})
	if err != nil {
		logger.Log.Error("Failed to list projects", zap.Error(err))
		return nil, err
	}
	if items == nil {
		items = []models.Project{}
	}
	return &ProjectPage{Items: items, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}

// GenerateSEO drafts metadata for a project and stores it. Drafting never
// fails; only loading or saving the project can.
func (s *ProjectService) GenerateSEO(ctx context.Context, actor *models.User, id uuid.UUID) (*models.Project, error) {
	project, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	md := s.drafter.Draft(ctx, seo.ProjectFields{
		Title:        project.Title,
		Description:  project.Description,
		Type:         string(project.Type),
		Technologies: project.Technologies,
		Features:     project.Features,
	})
	project.SEOTitle = md.Title
	project.SEODescription = md.Description
	project.SEOKeywords = md.Keywords

	if err := s.projects.SaveProject(ctx, project); err != nil {
		logger.Log.Error("Failed to save SEO metadata", zap.String("project_id", id.String()), zap.Error(err))
		return nil, err
	}

	logger.Log.Info("SEO metadata stored",
		zap.String("project_id", id.String()),
		zap.String("source", md.Source),
	)
	return project, nil
}

func (s *ProjectService) Sitemap(ctx context.Context) ([]byte, error) {
	projects, err := s.projects.ListSitemapEntries(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]seo.SitemapEntry, 0, len(projects))
	for _, p := range projects {
		entries = append(entries, seo.SitemapEntry{Slug: p.Slug, UpdatedAt: p.UpdatedAt})
	}
	return seo.Sitemap(s.siteURL, entries)
}

func (s *ProjectService) Robots() string {
	return seo.Robots(s.siteURL)
}

// editable loads a project the actor owns, or any project for admins.
func (s *ProjectService) editable(ctx context.Context, actor *models.User, id uuid.UUID) (*models.Project, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	project, err := s.projects.GetProjectByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrNotFound
	}
	if project.OwnerID != actor.ID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return project, nil
}

// withUniqueSlug assigns the first free slug derived from base and runs
// write, retrying when a concurrent writer took the same slug.
func (s *ProjectService) withUniqueSlug(ctx context.Context, project *models.Project, base string, write func() error) error {
	var err error
	for attempt := 0; attempt < slugAttempts; attempt++ {
		project.Slug, err = uniqueSlug(ctx, s.projects, base, project.ID)
		if err != nil {
			return err
		}
		if err = write(); !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
	}
	return err
}

func (s *ProjectService) apply(ctx context.Context, p *models.Project, in ProjectInput) error {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if n := utf8.RuneCountInString(title); n < 3 || n > 200 {
			return invalidf("title must be between 3 and 200 characters")
		}
		p.Title = title
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		if *in.Price < 0 || math.IsNaN(*in.Price) || math.IsInf(*in.Price, 0) {
			return invalidf("price must be zero or positive")
		}
		p.Price = math.Round(*in.Price*100) / 100
	}
	if in.Type != nil {
		if !in.Type.Valid() {
			return invalidf("unknown project type %q", *in.Type)
		}
		p.Type = *in.Type
	}
	if in.Images != nil {
		p.Images = cleanList(in.Images)
	}
	if in.Technologies != nil {
		p.Technologies = cleanList(in.Technologies)
	}
	if in.Features != nil {
		p.Features = cleanList(in.Features)
	}
	if in.DemoURL != nil {
		p.DemoURL = strings.TrimSpace(*in.DemoURL)
	}
	if in.SourceURL != nil {
		p.SourceURL = strings.TrimSpace(*in.SourceURL)
	}
	if in.FileURL != nil {
		p.FileURL = strings.TrimSpace(*in.FileURL)
	}
	if in.ForSale != nil {
		p.ForSale = *in.ForSale
	}
	if in.PaymentQRURL != nil {
		p.PaymentQRURL = strings.TrimSpace(*in.PaymentQRURL)
	}
	if in.PaymentURI != nil && strings.TrimSpace(*in.PaymentURI) != "" {
		url, err := s.storeQR(ctx, strings.TrimSpace(*in.PaymentURI))
		if err != nil {
			return err
		}
		p.PaymentQRURL = url
	}
	if p.ForSale && p.FileURL == "" {
		return invalidf("a project for sale needs a downloadable file")
	}
	return nil
}

func (s *ProjectService) storeQR(ctx context.Context, uri string) (string, error) {
	start := time.Now()
	url, err := storage.StoreQRCode(ctx, s.store, uri)
	if err != nil {
		logger.Log.Error("Failed to store payment QR code", zap.Error(err))
		return "", wrapStorage(err)
	}
	logger.Log.Debug("Payment QR code stored", zap.String("url", url), zap.Duration("duration", time.Since(start)))
	return url, nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// wrapStorage classifies an object store error: bad uploads are the
// caller's fault, everything else is a storage failure.
func wrapStorage(err error) error {
	if storage.IsRejected(err) {
		return invalidf("%v", err)
	}
	return errors.Join(ErrStorageFailure, err)
}
