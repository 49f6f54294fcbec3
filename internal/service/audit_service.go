package service

import (
	"github.com/Baaaki/devmarket/internal/journal"
	"github.com/Baaaki/devmarket/internal/models"
	"github.com/Baaaki/devmarket/pkg/logger"
	"go.uber.org/zap"
)

// JournalReader is the admin side of the journal.
type JournalReader interface {
	ReadAll() ([]journal.Entry, error)
	Prune(ids []string) (int, error)
}

type AuditService struct {
	journal JournalReader
}

func NewAuditService(j JournalReader) *AuditService {
	return &AuditService{journal: j}
}

// Entries lists the journal, optionally restricted to one kind.
func (s *AuditService) Entries(actor *models.User, kind journal.Kind) ([]journal.Entry, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	entries, err := s.journal.ReadAll()
	if err != nil {
		logger.Log.Error("Failed to read journal", zap.Error(err))
		return nil, err
	}
	if kind == "" {
		return entries, nil
	}

	filtered := entries[:0]
	for _, e := range entries {
		if e.Kind == kind {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

// Prune removes handled entries, typically orphaned uploads an operator has
// cleaned up.
func (s *AuditService) Prune(actor *models.User, ids []string) (int, error) {
	if !actor.IsAdmin() {
		return 0, ErrForbidden
	}
	if len(ids) == 0 {
		return 0, invalidf("ids are required")
	}

	removed, err := s.journal.Prune(ids)
	if err != nil {
		logger.Log.Error("Failed to prune journal", zap.Error(err))
		return 0, err
	}

	logger.Log.Info("Journal pruned",
		zap.Int("removed", removed),
		zap.String("admin_id", actor.ID.String()),
	)
	return removed, nil
}
