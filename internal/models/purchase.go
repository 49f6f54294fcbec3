package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PurchaseStatus string

const (
	PurchaseStatusPending  PurchaseStatus = "pending"
	PurchaseStatusApproved PurchaseStatus = "approved"
	PurchaseStatusRejected PurchaseStatus = "rejected"
)

func (s PurchaseStatus) Valid() bool {
	switch s {
	case PurchaseStatusPending, PurchaseStatusApproved, PurchaseStatusRejected:
		return true
	}
	return false
}

// IsDecision reports whether s is a status an admin may move a pending purchase to.
func (s PurchaseStatus) IsDecision() bool {
	return s == PurchaseStatusApproved || s == PurchaseStatusRejected
}

// Purchase is one manual, proof-of-payment purchase request.
// At most one pending row per (project_id, user_id) is allowed; the partial unique
// index enforcing that is created in database.Migrate.
type Purchase struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"project_id"`
	UserID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Status          PurchaseStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PaymentProofURL string         `gorm:"type:text;not null" json:"payment_proof_url"`
	DeliveryEmail   string         `gorm:"type:varchar(100);not null" json:"delivery_email"`
	Feedback        *string        `gorm:"type:text" json:"feedback,omitempty"`
	ReviewedBy      *uuid.UUID     `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time     `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`

	Project *Project `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"project,omitempty"`
	User    *User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

func (p *Purchase) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = PurchaseStatusPending
	}
	return nil
}
