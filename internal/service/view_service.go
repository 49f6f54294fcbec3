package service

import (
	"context"
	"strings"
	"time"

	"github.com/Baaaki/devmarket/internal/models"
	"github.com/Baaaki/devmarket/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxDeviceIDLength = 128

// SeenCache is an optional fast path in front of the views table.
type SeenCache interface {
	MarkSeen(ctx context.Context, projectID uuid.UUID, deviceID string, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, projectID uuid.UUID, deviceID string) error
}

// ViewService counts one view per device and project within a rolling window.
type ViewService struct {
	views     ViewStore
	projects  ProjectStore
	cache     SeenCache
	retention time.Duration
	now       func() time.Time
}

func NewViewService(views ViewStore, projects ProjectStore, cache SeenCache, retention time.Duration) *ViewService {
	return &ViewService{
		views:     views,
		projects:  projects,
		cache:     cache,
		retention: retention,
		now:       time.Now,
	}
}

// Record counts a view and reports whether it was new. It never fails:
// unknown projects, bad device ids and storage errors all read as "not
// recorded".
func (s *ViewService) Record(ctx context.Context, projectRef, deviceID string) bool {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" || len(deviceID) > maxDeviceIDLength {
		return false
	}

	project, err := findProject(ctx, s.projects, projectRef)
	if err != nil {
		logger.Log.Debug("View not recorded: project lookup failed",
			zap.String("project_ref", projectRef),
			zap.Error(err),
		)
		return false
	}

	if s.cache != nil {
		first, err := s.cache.MarkSeen(ctx, project.ID, deviceID, s.retention)
		if err == nil && !first {
			return false
		}
		if err != nil {
			logger.Log.Warn("View cache unavailable", zap.Error(err))
		}
	}

	now := s.now()
	view := &models.View{ProjectID: project.ID, DeviceID: deviceID, CreatedAt: now}
	inserted, err := s.views.InsertView(ctx, view, now.Add(-s.retention))
	if err != nil {
		logger.Log.Warn("View not recorded",
			zap.String("project_id", project.ID.String()),
			zap.Error(err),
		)
		if s.cache != nil {
			_ = s.cache.Forget(ctx, project.ID, deviceID)
		}
		return false
	}
	return inserted
}

// Count returns the views of a project within the retention window.
func (s *ViewService) Count(ctx context.Context, projectRef string) (int64, error) {
	project, err := findProject(ctx, s.projects, projectRef)
	if err != nil {
		return 0, err
	}
	return s.CountRecent(ctx, project.ID)
}

func (s *ViewService) CountRecent(ctx context.Context, projectID uuid.UUID) (int64, error) {
	return s.views.CountSince(ctx, projectID, s.now().Add(-s.retention))
}

// Sweep deletes views older than the retention window.
func (s *ViewService) Sweep(ctx context.Context) (int64, error) {
	return s.views.DeleteOlderThan(ctx, s.now().Add(-s.retention))
}

// RunJanitor sweeps expired views every interval until ctx is done.
func (s *ViewService) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Log.Info("View janitor started",
		zap.Duration("interval", interval),
		zap.Duration("retention", s.retention),
	)
	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("View janitor stopped")
			return
		case <-ticker.C:
			start := time.Now()
			deleted, err := s.Sweep(ctx)
			if err != nil {
				logger.Log.Error("View sweep failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				logger.Log.Info("Expired views deleted",
					zap.Int64("deleted", deleted),
					zap.Duration("duration", time.Since(start)),
				)
			}
		}
	}
}
