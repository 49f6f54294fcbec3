package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Baaaki/devmarket/internal/models"
	"github.com/Baaaki/devmarket/internal/utils"
	"github.com/Baaaki/devmarket/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type AuthService struct {
	users         UserStore
	jwtSecret     string
	jwtExpiration time.Duration
}

func NewAuthService(users UserStore, jwtSecret string, jwtExpiration time.Duration) *AuthService {
	return &AuthService{
		users:         users,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

func (s *AuthService) TokenTTL() time.Duration {
	return s.jwtExpiration
}

func (s *AuthService) Register(ctx context.Context, name, email, password string) (*models.User, string, error) {
	start := time.Now()
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if err := validateRegisterInput(name, email, password); err != nil {
		logger.Log.Warn("Registration validation failed",
			zap.String("email", email),
			zap.Error(err),
		)
		return nil, "", err
	}

	existing, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		logger.Log.Error("Failed to check email existence", zap.String("email", email), zap.Error(err))
		return nil, "", err
	}
	if existing != nil && existing.HasPassword() {
		logger.Log.Warn("Email already exists", zap.String("email", email))
		return nil, "", ErrEmailAlreadyExists
	}

	hashStart := time.Now()
	hashed, err := utils.HashPassword(password)
	if err != nil {
		logger.Log.Error("Failed to hash password", zap.Error(err))
		return nil, "", err
	}
	hashDuration := time.Since(hashStart)

	user := existing
	if user != nil {
		// An implicitly created account (from a review or session) is claimed
		// by the first registration under its email.
		user.Name = name
		user.PasswordHash = &hashed
		claimed, err := s.users.ClaimAccount(ctx, user.ID, name, hashed)
		if err != nil {
			logger.Log.Error("Failed to claim implicit account", zap.String("user_id", user.ID.String()), zap.Error(err))
			return nil, "", err
		}
		if !claimed {
			return nil, "", ErrEmailAlreadyExists
		}
	} else {
		user = &models.User{Name: name, Email: email, PasswordHash: &hashed, Role: models.RoleUser}
		if err := s.users.CreateUser(ctx, user); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, "", ErrEmailAlreadyExists
			}
			logger.Log.Error("Failed to create user in database", zap.String("email", email), zap.Error(err))
			return nil, "", err
		}
	}

	token, err := utils.GenerateToken(user, s.jwtSecret, s.jwtExpiration)
	if err != nil {
		logger.Log.Error("Failed to generate JWT token", zap.String("user_id", user.ID.String()), zap.Error(err))
		return nil, "", err
	}

	logger.Log.Info("User registered successfully",
		zap.String("user_id", user.ID.String()),
		zap.String("email", email),
		zap.Duration("hash_duration", hashDuration),
		zap.Duration("total_duration", time.Since(start)),
	)
	return user, token, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	start := time.Now()
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		logger.Log.Error("Failed to get user by email", zap.String("email", email), zap.Error(err))
		return nil, "", err
	}
	if user == nil || !user.HasPassword() {
		logger.Log.Warn("Login failed: unknown user or no password", zap.String("email", email))
		return nil, "", ErrInvalidCredentials
	}

	verifyStart := time.Now()
	valid, err := utils.VerifyPassword(password, *user.PasswordHash)
	if err != nil {
		logger.Log.Error("Failed to verify password", zap.String("email", email), zap.Error(err))
		return nil, "", err
	}
	verifyDuration := time.Since(verifyStart)

	if !valid {
		logger.Log.Warn("Login failed: invalid password",
			zap.String("email", email),
			zap.String("user_id", user.ID.String()),
		)
		return nil, "", ErrInvalidCredentials
	}

	token, err := utils.GenerateToken(user, s.jwtSecret, s.jwtExpiration)
	if err != nil {
		logger.Log.Error("Failed to generate JWT token", zap.String("user_id", user.ID.String()), zap.Error(err))
		return nil, "", err
	}

	logger.Log.Info("User logged in successfully",
		zap.String("user_id", user.ID.String()),
		zap.Duration("password_verify_duration", verifyDuration),
		zap.Duration("total_duration", time.Since(start)),
	)
	return user, token, nil
}

func validateRegisterInput(name, email, password string) error {
	if n := utf8.RuneCountInString(name); n < 2 || n > 60 {
		return invalidf("name must be between 2 and 60 characters")
	}
	if len(email) > 100 || !emailRegex.MatchString(email) {
		return invalidf("invalid email format")
	}
	if len(password) < 8 {
		return invalidf("password must be at least 8 characters")
	}
	if len(password) > 128 {
		return invalidf("password too long")
	}
	return nil
}

// GetAllUsers lists every account. Admin only.
func (s *AuthService) GetAllUsers(ctx context.Context, actor *models.User) ([]models.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	users, err := s.users.GetAllUsers(ctx)
	if err != nil {
		logger.Log.Error("Failed to fetch all users", zap.Error(err))
		return nil, err
	}

	logger.Log.Debug("Fetched all users", zap.Int("count", len(users)))
	return users, nil
}

// SetRole changes the role of a user. Admins cannot demote themselves so the
// system always keeps at least the acting admin.
func (s *AuthService) SetRole(ctx context.Context, actor *models.User, userID uuid.UUID, role models.Role) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if !role.Valid() {
		return invalidf("role must be user or admin")
	}
	if actor.ID == userID && role != models.RoleAdmin {
		return invalidf("admins cannot demote themselves")
	}

	updated, err := s.users.UpdateRole(ctx, userID, role)
	if err != nil {
		logger.Log.Error("Failed to update role", zap.String("user_id", userID.String()), zap.Error(err))
		return err
	}
	if !updated {
		return ErrNotFound
	}

	logger.Log.Info("User role changed",
		zap.String("user_id", userID.String()),
		zap.String("role", string(role)),
		zap.String("admin_id", actor.ID.String()),
	)
	return nil
}
