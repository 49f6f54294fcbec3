package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// View is one counted visit of a device to a project page.
// Rows expire after the configured retention window (30 days by default).
type View struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_views_project_device"`
	DeviceID  string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_views_project_device"`
	CreatedAt time.Time `gorm:"index"`

	Project *Project `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
}

func (v *View) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
