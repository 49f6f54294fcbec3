package service

import (
	"context"

	"github.com/Baaaki/devmarket/internal/models"
	"github.com/Baaaki/devmarket/pkg/logger"
	"go.uber.org/zap"
)

// AdminSummary is the polling view of what needs an admin's attention.
type AdminSummary struct {
	PendingPurchases int64         `json:"pending_purchases"`
	UnreadComments   int64         `json:"unread_comments"`
	Comments         []CommentView `json:"comments"`
}

type NotificationService struct {
	comments  *CommentService
	purchases *PurchaseService
}

func NewNotificationService(comments *CommentService, purchases *PurchaseService) *NotificationService {
	return &NotificationService{comments: comments, purchases: purchases}
}

func (s *NotificationService) Summary(ctx context.Context, actor *models.User) (*AdminSummary, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	pending, err := s.purchases.PendingCount(ctx)
	if err != nil {
		logger.Log.Error("Failed to count pending purchases", zap.Error(err))
		return nil, err
	}
	unread, comments, err := s.comments.unread(ctx)
	if err != nil {
		logger.Log.Error("Failed to load unread comments", zap.Error(err))
		return nil, err
	}

	return &AdminSummary{
		PendingPurchases: pending,
		UnreadComments:   unread,
		Comments:         comments,
	}, nil
}
