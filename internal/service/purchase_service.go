package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/Baaaki/devmarket/internal/broker"
	"github.com/Baaaki/devmarket/internal/journal"
	"github.com/Baaaki/devmarket/internal/models"
	"github.com/Baaaki/devmarket/internal/repository"
	"github.com/Baaaki/devmarket/internal/storage"
	"github.com/Baaaki/devmarket/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PurchaseScope selects whose purchases a listing covers.
type PurchaseScope string

const (
	ScopeOwn PurchaseScope = "own"
	ScopeAll PurchaseScope = "all"
)

// Proof is the uploaded payment proof image.
type Proof struct {
	Filename string
	Content  io.Reader
}

type CreatePurchaseInput struct {
	ProjectID     uuid.UUID
	DeliveryEmail string
	Proof         Proof
}

type PurchaseQuery struct {
	ProjectID *uuid.UUID
	Status    models.PurchaseStatus
	Scope     PurchaseScope
}

type ReviewDecision struct {
	Status   models.PurchaseStatus
	Feedback string
}

// PurchaseView is a purchase as returned to clients: the project is reduced
// to its public listing fields and the buyer to a summary.
type PurchaseView struct {
	models.Purchase
	Project *PurchaseProject    `json:"project,omitempty"`
	User    *models.UserSummary `json:"user,omitempty"`
}

type PurchaseProject struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
	Slug  string    `json:"slug"`
	Price float64   `json:"price"`
}

// Download is what an approved buyer receives: a stored object URL that the
// caller streams, or an external URL handed back as is.
type Download struct {
	URL      string
	Filename string
}

type PurchaseService struct {
	purchases      PurchaseStore
	projects       ProjectStore
	store          storage.ObjectStore
	journal        Journal
	notifier       Notifier
	emailPolicy    *regexp.Regexp
	storageTimeout time.Duration
}

func NewPurchaseService(
	purchases PurchaseStore,
	projects ProjectStore,
	store storage.ObjectStore,
	journal Journal,
	notifier Notifier,
	emailPattern string,
	storageTimeout time.Duration,
) (*PurchaseService, error) {
	policy, err := regexp.Compile(emailPattern)
	if err != nil {
		return nil, fmt.Errorf("delivery email pattern: %w", err)
	}
	return &PurchaseService{
		purchases:      purchases,
		projects:       projects,
		store:          store,
		journal:        journal,
		notifier:       notifier,
		emailPolicy:    policy,
		storageTimeout: storageTimeout,
	}, nil
}

// ValidDeliveryEmail reports whether email satisfies the delivery policy.
func (s *PurchaseService) ValidDeliveryEmail(email string) bool {
	return s.emailPolicy.MatchString(email)
}

func (s *PurchaseService) Create(ctx context.Context, actor *models.User, in CreatePurchaseInput) (*models.Purchase, error) {
	start := time.Now()
	if actor == nil {
		return nil, ErrIdentityUnresolved
	}

	email := strings.TrimSpace(in.DeliveryEmail)
	if !s.ValidDeliveryEmail(email) {
		logger.Log.Warn("Purchase rejected: delivery email does not match policy",
			zap.String("user_id", actor.ID.String()),
			zap.String("delivery_email", email),
		)
		return nil, invalidf("delivery email must match %s", s.emailPolicy.String())
	}
	if in.Proof.Content == nil {
		return nil, invalidf("payment proof is required")
	}

	existing, err := s.purchases.FindPending(ctx, in.ProjectID, actor.ID)
	if err != nil {
		logger.Log.Error("Failed to check pending purchase", zap.Error(err))
		return nil, err
	}
	if existing != nil {
		logger.Log.Warn("Purchase rejected: pending purchase exists",
			zap.String("user_id", actor.ID.String()),
			zap.String("project_id", in.ProjectID.String()),
			zap.String("purchase_id", existing.ID.String()),
		)
		return nil, &DuplicatePendingError{ExistingID: existing.ID}
	}

	project, err := s.projects.GetProjectByID(ctx, in.ProjectID)
	if err != nil {
		logger.Log.Error("Failed to load project", zap.String("project_id", in.ProjectID.String()), zap.Error(err))
		return nil, err
	}
	if project == nil {
		return nil, fmt.Errorf("%w: project", ErrNotFound)
	}
	if !project.ForSale {
		return nil, invalidf("project is not for sale")
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	proofURL, err := s.store.Store(storeCtx, storage.CategoryProofs, in.Proof.Filename, in.Proof.Content)
	cancel()
	if err != nil {
		logger.Log.Error("Failed to store payment proof",
			zap.String("user_id", actor.ID.String()),
			zap.String("project_id", in.ProjectID.String()),
			zap.Error(err),
		)
		return nil, wrapStorage(err)
	}

	purchase := &models.Purchase{
		ProjectID:       in.ProjectID,
		UserID:          actor.ID,
		Status:          models.PurchaseStatusPending,
		PaymentProofURL: proofURL,
		DeliveryEmail:   email,
	}
	if err := s.purchases.CreatePurchase(ctx, purchase); err != nil {
		return nil, s.handleInsertFailure(ctx, actor, in.ProjectID, proofURL, err)
	}

	logger.Log.Info("Purchase created",
		zap.String("purchase_id", purchase.ID.String()),
		zap.String("project_id", in.ProjectID.String()),
		zap.String("user_id", actor.ID.String()),
		zap.Duration("duration", time.Since(start)),
	)

	s.notify(ctx, broker.Notification{
		Type:       broker.NotificationPurchaseCreated,
		ProjectID:  &purchase.ProjectID,
		PurchaseID: &purchase.ID,
		Message:    fmt.Sprintf("%s requested %q", actor.Name, project.Title),
	})
	return purchase, nil
}

// handleInsertFailure runs after the proof is already stored. A lost race on
// the pending index is reported like any other duplicate; otherwise the
// stored proof has no owner and is journaled for manual cleanup.
func (s *PurchaseService) handleInsertFailure(ctx context.Context, actor *models.User, projectID uuid.UUID, proofURL string, insertErr error) error {
	if errors.Is(insertErr, gorm.ErrDuplicatedKey) {
		if winner, err := s.purchases.FindPending(ctx, projectID, actor.ID); err == nil && winner != nil {
			s.recordOrphan(actor, proofURL, "lost race to purchase "+winner.ID.String())
			return &DuplicatePendingError{ExistingID: winner.ID}
		}
	}

	s.recordOrphan(actor, proofURL, insertErr.Error())
	logger.Log.Error("Failed to insert purchase after storing proof",
		zap.String("user_id", actor.ID.String()),
		zap.String("project_id", projectID.String()),
		zap.String("orphaned_url", proofURL),
		zap.Error(insertErr),
	)
	return insertErr
}

func (s *PurchaseService) recordOrphan(actor *models.User, url, detail string) {
	err := s.journal.Append(journal.Entry{
		Kind:    journal.KindOrphanedUpload,
		ActorID: actor.ID.String(),
		URL:     url,
		Detail:  detail,
	})
	if err != nil {
		logger.Log.Error("Failed to journal orphaned upload", zap.String("url", url), zap.Error(err))
	}
}

// List returns the purchases visible to actor. Only admins may widen the
// scope to every buyer; anyone else always sees their own purchases.
func (s *PurchaseService) List(ctx context.Context, actor *models.User, q PurchaseQuery) ([]PurchaseView, error) {
	if actor == nil {
		return nil, ErrIdentityUnresolved
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, invalidf("unknown status %q", q.Status)
	}

	filter := repository.PurchaseFilter{ProjectID: q.ProjectID, Status: q.Status}
	if !(actor.IsAdmin() && q.Scope == ScopeAll) {
		filter.UserID = &actor.ID
	}

	purchases, err := s.purchases.ListPurchases(ctx, filter)
	if err != nil {
		logger.Log.Error("Failed to list purchases", zap.String("user_id", actor.ID.String()), zap.Error(err))
		return nil, err
	}

	views := make([]PurchaseView, 0, len(purchases))
	for i := range purchases {
		views = append(views, toPurchaseView(&purchases[i]))
	}
	return views, nil
}

func (s *PurchaseService) Get(ctx context.Context, actor *models.User, id uuid.UUID) (*PurchaseView, error) {
	purchase, err := s.visible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	view := toPurchaseView(purchase)
	return &view, nil
}

// Review records the admin decision on a pending purchase. Decisions are
// final: a purchase that already left pending fails with ErrAlreadyReviewed,
// including when two admins decide concurrently.
func (s *PurchaseService) Review(ctx context.Context, actor *models.User, id uuid.UUID, d ReviewDecision) (*PurchaseView, error) {
	if actor == nil {
		return nil, ErrIdentityUnresolved
	}
	if !actor.IsAdmin() {
		logger.Log.Warn("Purchase review denied: not an admin",
			zap.String("user_id", actor.ID.String()),
			zap.String("purchase_id", id.String()),
		)
		return nil, ErrForbidden
	}
	if !d.Status.IsDecision() {
		return nil, invalidf("status must be approved or rejected")
	}

	var feedback *string
	if d.Status == models.PurchaseStatusRejected {
		if strings.TrimSpace(d.Feedback) == "" {
			return nil, invalidf("feedback is required when rejecting")
		}
		f := d.Feedback
		feedback = &f
	}

	purchase, err := s.purchases.GetPurchaseByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if purchase == nil {
		return nil, ErrNotFound
	}
	if purchase.Status != models.PurchaseStatusPending {
		return nil, ErrAlreadyReviewed
	}

	now := time.Now().UTC()
	applied, err := s.purchases.ApplyDecision(ctx, id, repository.Decision{
		Status:     d.Status,
		Feedback:   feedback,
		ReviewedBy: actor.ID,
		ReviewedAt: now,
	})
	if err != nil {
		logger.Log.Error("Failed to apply purchase decision", zap.String("purchase_id", id.String()), zap.Error(err))
		return nil, err
	}
	if !applied {
		return nil, ErrAlreadyReviewed
	}

	purchase.Status = d.Status
	purchase.Feedback = feedback
	purchase.ReviewedBy = &actor.ID
	purchase.ReviewedAt = &now

	logger.Log.Info("Purchase reviewed",
		zap.String("purchase_id", id.String()),
		zap.String("status", string(d.Status)),
		zap.String("admin_id", actor.ID.String()),
	)

	var detail string
	if feedback != nil {
		detail = *feedback
	}
	if err := s.journal.Append(journal.Entry{
		Kind:       journal.KindPurchaseReviewed,
		PurchaseID: id.String(),
		ActorID:    actor.ID.String(),
		Status:     string(d.Status),
		Detail:     detail,
	}); err != nil {
		logger.Log.Error("Failed to journal purchase decision", zap.String("purchase_id", id.String()), zap.Error(err))
	}

	s.notify(ctx, broker.Notification{
		Type:       broker.NotificationPurchaseReviewed,
		ProjectID:  &purchase.ProjectID,
		PurchaseID: &purchase.ID,
		Message:    fmt.Sprintf("purchase %s %s", purchase.ID, d.Status),
	})

	view := toPurchaseView(purchase)
	return &view, nil
}

// Download returns the deliverable of an approved purchase.
func (s *PurchaseService) Download(ctx context.Context, actor *models.User, id uuid.UUID) (*Download, error) {
	purchase, err := s.visible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if purchase.Status != models.PurchaseStatusApproved {
		return nil, fmt.Errorf("%w: purchase is %s", ErrForbidden, purchase.Status)
	}
	if purchase.Project == nil || !purchase.Project.HasFile() {
		return nil, fmt.Errorf("%w: project has no downloadable file", ErrNotFound)
	}

	logger.Log.Info("Purchase download",
		zap.String("purchase_id", id.String()),
		zap.String("user_id", actor.ID.String()),
	)
	return &Download{
		URL:      purchase.Project.FileURL,
		Filename: purchase.Project.Slug,
	}, nil
}

// OpenObject streams a stored deliverable or proof. URLs this server did not
// issue fail with storage.ErrForeignURL.
func (s *PurchaseService) OpenObject(ctx context.Context, url string) (io.ReadCloser, string, error) {
	rc, ctype, err := s.store.Open(ctx, url)
	if err != nil {
		if errors.Is(err, storage.ErrForeignURL) {
			return nil, "", err
		}
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "", fmt.Errorf("%w: stored object", ErrNotFound)
		}
		return nil, "", errors.Join(ErrStorageFailure, err)
	}
	return rc, ctype, nil
}

// Proof returns the payment proof URL of a purchase to its buyer or an admin.
func (s *PurchaseService) Proof(ctx context.Context, actor *models.User, id uuid.UUID) (string, error) {
	purchase, err := s.visible(ctx, actor, id)
	if err != nil {
		return "", err
	}
	return purchase.PaymentProofURL, nil
}

// PendingCount is used by the admin notification summary.
func (s *PurchaseService) PendingCount(ctx context.Context) (int64, error) {
	return s.purchases.CountByStatus(ctx, models.PurchaseStatusPending)
}

func (s *PurchaseService) visible(ctx context.Context, actor *models.User, id uuid.UUID) (*models.Purchase, error) {
	if actor == nil {
		return nil, ErrIdentityUnresolved
	}
	purchase, err := s.purchases.GetPurchaseByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if purchase == nil {
		return nil, ErrNotFound
	}
	if purchase.UserID != actor.ID && !actor.IsAdmin() {
		// Other buyers' purchases are indistinguishable from missing ones.
		return nil, ErrNotFound
	}
	return purchase, nil
}

func (s *PurchaseService) notify(ctx context.Context, n broker.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, n); err != nil {
		logger.Log.Warn("Failed to publish notification", zap.String("type", string(n.Type)), zap.Error(err))
	}
}

func toPurchaseView(p *models.Purchase) PurchaseView {
	view := PurchaseView{Purchase: *p}
	view.Purchase.Project = nil
	view.Purchase.User = nil
	if p.Project != nil {
		view.Project = &PurchaseProject{ID: p.Project.ID, Title: p.Project.Title, Slug: p.Project.Slug, Price: p.Project.Price}
	}
	view.User = p.User.Summary()
	return view
}
