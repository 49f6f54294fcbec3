package broker

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationPurchaseCreated  NotificationType = "purchase.created"
	NotificationPurchaseReviewed NotificationType = "purchase.reviewed"
	NotificationCommentCreated   NotificationType = "comment.created"
)

// Notification is one event of the live admin feed.
type Notification struct {
	Type       NotificationType `json:"type"`
	ProjectID  *uuid.UUID       `json:"project_id,omitempty"`
	PurchaseID *uuid.UUID       `json:"purchase_id,omitempty"`
	CommentID  *uuid.UUID       `json:"comment_id,omitempty"`
	Message    string           `json:"message"`
	Timestamp  time.Time        `json:"timestamp"`
}

// NotificationBroker fans admin notifications out across server instances.
type NotificationBroker interface {
	Publish(ctx context.Context, n Notification) error
	// Subscribe delivers notifications until ctx is cancelled, then closes the channel.
	Subscribe(ctx context.Context) (<-chan Notification, error)
	Close() error
}
