package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Baaaki/devmarket/internal/broker"
	"github.com/Baaaki/devmarket/internal/storage"
)

var ErrStoreDown = errors.New("object store unavailable")

// MemoryStore is an in-memory storage.ObjectStore. Set Fail to make every
// Store call fail with ErrStoreDown.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	seq     int
	Fail    bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) Store(ctx context.Context, category storage.Category, filename string, r io.Reader) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Fail {
		return "", ErrStoreDown
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", storage.ErrEmpty
	}

	m.seq++
	url := fmt.Sprintf("/uploads/%s/%d-%s", category, m.seq, filename)
	m.objects[url] = data
	return url, nil
}

func (m *MemoryStore) Open(ctx context.Context, url string) (io.ReadCloser, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !strings.HasPrefix(url, "/uploads/") {
		return nil, "", storage.ErrForeignURL
	}
	data, ok := m.objects[url]
	if !ok {
		return nil, "", storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), "application/octet-stream", nil
}

// Put seeds an object at url.
func (m *MemoryStore) Put(url string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[url] = data
}

func (m *MemoryStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// RecordingNotifier collects published notifications.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []broker.Notification
}

func (r *RecordingNotifier) Publish(ctx context.Context, n broker.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *RecordingNotifier) Sent() []broker.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]broker.Notification(nil), r.sent...)
}
