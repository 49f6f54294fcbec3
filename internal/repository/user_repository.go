package repository

import (
	"context"
	"errors"

	"github.com/Baaaki/devmarket/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	// Note: GORM automatically excludes soft-deleted users (deleted_at IS NOT NULL)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetAllUsers returns all active users, newest first
func (r *UserRepository) GetAllUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error
	return users, err
}

// UpdateRole returns false when no user matched.
func (r *UserRepository) UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("role", role)
	return res.RowsAffected > 0, res.Error
}

// ClaimAccount sets name and password on an account that has no password yet.
// It returns false when the account was claimed first by someone else.
func (r *UserRepository) ClaimAccount(ctx context.Context, id uuid.UUID, name, passwordHash string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND (password_hash IS NULL OR password_hash = '')", id).
		Updates(map[string]interface{}{"name": name, "password_hash": passwordHash})
	return res.RowsAffected > 0, res.Error
}
