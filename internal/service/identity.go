package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Baaaki/devmarket/internal/models"
	"github.com/Baaaki/devmarket/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Session is what a verified token says about the caller.
type Session struct {
	UserID uuid.UUID
	Email  string
	Name   string
}

// IdentityResolver maps a session to a persisted user. It never invents a
// placeholder identity: a session with neither a known id nor an email fails.
type IdentityResolver struct {
	users UserStore
}

func NewIdentityResolver(users UserStore) *IdentityResolver {
	return &IdentityResolver{users: users}
}

func (r *IdentityResolver) Resolve(ctx context.Context, s Session) (*models.User, error) {
	if s.UserID != uuid.Nil {
		user, err := r.users.GetUserByID(ctx, s.UserID)
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
	}

	email := normalizeEmail(s.Email)
	if email == "" {
		logger.Log.Warn("Identity unresolved: session has no usable id or email",
			zap.String("session_user_id", s.UserID.String()),
		)
		return nil, ErrIdentityUnresolved
	}

	return r.findOrCreate(ctx, email, s.Name)
}

// findOrCreate returns the user registered under email, creating a minimal
// password-less account when none exists.
func (r *IdentityResolver) findOrCreate(ctx context.Context, email, name string) (*models.User, error) {
	user, err := r.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	if strings.TrimSpace(name) == "" {
		name = email[:strings.Index(email, "@")]
	}
	user = &models.User{Name: strings.TrimSpace(name), Email: email, Role: models.RoleUser}
	if err := r.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Created concurrently by another request.
			return r.users.GetUserByEmail(ctx, email)
		}
		return nil, err
	}

	logger.Log.Info("Created user from session identity",
		zap.String("user_id", user.ID.String()),
		zap.String("email", email),
	)
	return user, nil
}

func normalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailRegex.MatchString(email) {
		return ""
	}
	return email
}
