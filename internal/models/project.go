package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ProjectType string

const (
	ProjectTypeTemplate ProjectType = "template"
	ProjectTypeApp      ProjectType = "app"
	ProjectTypePlugin   ProjectType = "plugin"
	ProjectTypeOther    ProjectType = "other"
)

func (t ProjectType) Valid() bool {
	switch t {
	case ProjectTypeTemplate, ProjectTypeApp, ProjectTypePlugin, ProjectTypeOther:
		return true
	}
	return false
}

type Project struct {
	ID           uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID      uuid.UUID                   `gorm:"type:uuid;not null;index" json:"owner_id"`
	Title        string                      `gorm:"type:varchar(200);not null" json:"title"`
	Slug         string                      `gorm:"type:varchar(100);uniqueIndex;not null" json:"slug"`
	Description  string                      `gorm:"type:text" json:"description"`
	Price        float64                     `gorm:"type:decimal(10,2);not null;default:0" json:"price"`
	Images       datatypes.JSONSlice[string] `json:"images"`
	Technologies datatypes.JSONSlice[string] `json:"technologies"`
	Features     datatypes.JSONSlice[string] `json:"features"`
	Type         ProjectType                 `gorm:"type:varchar(20);not null;index" json:"type"`
	DemoURL      string                      `gorm:"type:text" json:"demo_url,omitempty"`
	SourceURL    string                      `gorm:"type:text" json:"source_url,omitempty"`
	// Delivered only through an approved purchase, never serialised.
	FileURL      string `gorm:"type:text" json:"-"`
	PaymentQRURL string `gorm:"type:text" json:"payment_qr_url,omitempty"`
	ForSale      bool   `gorm:"not null;default:false;index" json:"for_sale"`

	SEOTitle       string                      `gorm:"type:varchar(70)" json:"seo_title,omitempty"`
	SEODescription string                      `gorm:"type:varchar(200)" json:"seo_description,omitempty"`
	SEOKeywords    datatypes.JSONSlice[string] `json:"seo_keywords,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Owner *User `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p *Project) HasFile() bool {
	return p.FileURL != ""
}
