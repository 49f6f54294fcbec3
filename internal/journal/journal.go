// Package journal is an append-only JSON-lines audit log for purchase
// decisions and for uploads left behind by failed purchase inserts.
package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Baaaki/devmarket/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Kind string

const (
	KindPurchaseReviewed Kind = "purchase.reviewed"
	KindOrphanedUpload   Kind = "orphaned_upload"
)

type Entry struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	PurchaseID string    `json:"purchase_id,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	URL        string    `json:"url,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type Journal struct {
	filePath string
	file     *os.File
	mu       sync.Mutex
}

func Open(filePath string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	return &Journal{filePath: filePath, file: file}, nil
}

// Append writes one entry and syncs it to disk. ID and Timestamp are filled
// in when empty.
func (j *Journal) Append(entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	start := time.Now()
	if _, err := j.file.Write(append(data, '\n')); err != nil {
		logger.Log.Error("Journal: failed to write entry",
			zap.String("kind", string(entry.Kind)),
			zap.Error(err),
		)
		return err
	}
	if err := j.file.Sync(); err != nil {
		logger.Log.Error("Journal: failed to sync",
			zap.String("kind", string(entry.Kind)),
			zap.Error(err),
		)
		return err
	}

	logger.Log.Debug("Journal: entry written",
		zap.String("id", entry.ID),
		zap.String("kind", string(entry.Kind)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *Journal) ReadAll() ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.readAllLocked()
}

// Prune rewrites the journal without the entries whose ids are given and
// returns how many were removed.
func (j *Journal) Prune(ids []string) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.readAllLocked()
	if err != nil {
		return 0, err
	}

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	tempPath := j.filePath + ".tmp"
	tmp, err := os.Create(tempPath)
	if err != nil {
		return 0, err
	}

	w := bufio.NewWriter(tmp)
	removed := 0
	for _, entry := range entries {
		if _, ok := drop[entry.ID]; ok {
			removed++
			continue
		}
		data, err := json.Marshal(entry)
		if err != nil {
			tmp.Close()
			return 0, err
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, err
	}
	tmp.Close()

	if err := j.file.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tempPath, j.filePath); err != nil {
		logger.Log.Error("Journal: failed to replace file",
			zap.String("temp_file", tempPath),
			zap.Error(err),
		)
		return 0, err
	}

	// The old descriptor points at the replaced inode.
	file, err := os.OpenFile(j.filePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return 0, err
	}
	j.file = file

	logger.Log.Info("Journal: pruned",
		zap.Int("removed", removed),
		zap.Int("remaining", len(entries)-removed),
	)
	return removed, nil
}

func (j *Journal) readAllLocked() ([]Entry, error) {
	file, err := os.Open(j.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, err
	}
	defer file.Close()

	entries := []Entry{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}
