package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/Baaaki/devmarket/internal/config"
	"github.com/Baaaki/devmarket/internal/database"
	"github.com/Baaaki/devmarket/internal/models"
	"github.com/Baaaki/devmarket/internal/repository"
	"github.com/Baaaki/devmarket/internal/utils"
	"github.com/Baaaki/devmarket/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := logger.Init(!cfg.IsProduction()); err != nil {
		log.Fatalf("Failed to initialise logger: %v", err)
	}
	defer logger.Sync()

	adminName := os.Getenv("ADMIN_NAME")
	adminEmail := strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminName == "" || adminEmail == "" || adminPassword == "" {
		logger.Log.Fatal("Missing environment variables: ADMIN_NAME, ADMIN_EMAIL, ADMIN_PASSWORD")
	}

	db, err := database.Open(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		logger.Log.Fatal("Failed to migrate", zap.Error(err))
	}

	ctx := context.Background()
	users := repository.NewUserRepository(db)

	existing, err := users.GetUserByEmail(ctx, adminEmail)
	if err != nil {
		logger.Log.Fatal("Failed to look up admin", zap.Error(err))
	}
	if existing != nil {
		if !existing.IsAdmin() {
			if _, err := users.UpdateRole(ctx, existing.ID, models.RoleAdmin); err != nil {
				logger.Log.Fatal("Failed to promote user", zap.Error(err))
			}
			logger.Log.Info("Existing user promoted to admin", zap.String("email", adminEmail))
			return
		}
		logger.Log.Info("Admin user already exists", zap.String("email", adminEmail))
		return
	}

	passwordHash, err := utils.HashPassword(adminPassword)
	if err != nil {
		logger.Log.Fatal("Failed to hash password", zap.Error(err))
	}

	admin := &models.User{
		Name:         adminName,
		Email:        adminEmail,
		PasswordHash: &passwordHash,
		Role:         models.RoleAdmin,
	}
	if err := users.CreateUser(ctx, admin); err != nil {
		logger.Log.Fatal("Failed to create admin", zap.Error(err))
	}

	logger.Log.Info("Admin user created",
		zap.String("user_id", admin.ID.String()),
		zap.String("email", admin.Email),
	)
}
