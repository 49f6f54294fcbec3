package service

import (
	"context"
	"io"
	"time"

	"github.com/Baaaki/devmarket/internal/models"
	"github.com/Baaaki/devmarket/internal/storage"
	"github.com/Baaaki/devmarket/pkg/logger"
	"go.uber.org/zap"
)

// UploadService stores project assets. Payment proofs only enter through
// a purchase.
type UploadService struct {
	store   storage.ObjectStore
	timeout time.Duration
}

func NewUploadService(store storage.ObjectStore, timeout time.Duration) *UploadService {
	return &UploadService{store: store, timeout: timeout}
}

func (s *UploadService) Upload(ctx context.Context, actor *models.User, category storage.Category, filename string, r io.Reader) (string, error) {
	if actor == nil {
		return "", ErrUnauthenticated
	}
	if !category.Valid() || category == storage.CategoryProofs {
		return "", invalidf("category must be images, files or qr")
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	url, err := s.store.Store(ctx, category, filename, r)
	if err != nil {
		logger.Log.Warn("Upload failed",
			zap.String("user_id", actor.ID.String()),
			zap.String("category", string(category)),
			zap.Error(err),
		)
		return "", wrapStorage(err)
	}

	logger.Log.Info("Upload stored",
		zap.String("user_id", actor.ID.String()),
		zap.String("url", url),
		zap.Duration("duration", time.Since(start)),
	)
	return url, nil
}
