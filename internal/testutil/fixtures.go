package testutil

import (
	"testing"

	"github.com/Baaaki/devmarket/internal/models"
	"github.com/Baaaki/devmarket/internal/service"
	"github.com/Baaaki/devmarket/internal/utils"
	qrcode "github.com/skip2/go-qrcode"
	"gorm.io/gorm"
)

const DefaultPassword = "Test123456"

// CreateUser inserts a user with a hashed password. An empty password
// creates a password-less account.
func CreateUser(t *testing.T, db *gorm.DB, name, email, password string, role models.Role) *models.User {
	t.Helper()

	user := &models.User{Name: name, Email: email, Role: role}
	if password != "" {
		hash, err := utils.HashPassword(password)
		if err != nil {
			t.Fatalf("Failed to hash password: %v", err)
		}
		user.PasswordHash = &hash
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user %s: %v", email, err)
	}
	return user
}

func DefaultTestUser(t *testing.T, db *gorm.DB) *models.User {
	return CreateUser(t, db, "Test User", "test@example.com", DefaultPassword, models.RoleUser)
}

func DefaultAdminUser(t *testing.T, db *gorm.DB) *models.User {
	return CreateUser(t, db, "Admin", "admin@example.com", DefaultPassword, models.RoleAdmin)
}

// CreateProject inserts a for-sale project with a deliverable file.
func CreateProject(t *testing.T, db *gorm.DB, owner *models.User, title string) *models.Project {
	t.Helper()

	project := &models.Project{
		OwnerID:      owner.ID,
		Title:        title,
		Slug:         service.Slugify(title),
		Description:  "A test project",
		Price:        49,
		Type:         models.ProjectTypeTemplate,
		Technologies: []string{"go", "react"},
		FileURL:      "/uploads/files/deliverable.zip",
		ForSale:      true,
	}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("Failed to create project %q: %v", title, err)
	}
	return project
}

// PNG returns a small valid PNG image suitable as a payment proof.
func PNG(t *testing.T) []byte {
	t.Helper()
	png, err := qrcode.Encode("proof-of-payment", qrcode.Low, 64)
	if err != nil {
		t.Fatalf("Failed to render PNG: %v", err)
	}
	return png
}
