package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/Baaaki/devmarket/pkg/logger"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var imageTypes = []string{"image/png", "image/jpeg", "image/webp", "image/gif"}

var archiveTypes = []string{
	"application/zip",
	"application/x-tar",
	"application/gzip",
	"application/x-7z-compressed",
	"application/pdf",
}

// LocalStore writes objects below Root and serves them under BaseURL.
type LocalStore struct {
	root     string
	baseURL  string
	maxBytes int64
}

func NewLocalStore(root, baseURL string, maxBytes int64) (*LocalStore, error) {
	for _, c := range []Category{CategoryProofs, CategoryFiles, CategoryImages, CategoryQR} {
		if err := os.MkdirAll(filepath.Join(root, string(c)), 0755); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
	}
	return &LocalStore{
		root:     root,
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: maxBytes,
	}, nil
}

func (s *LocalStore) Store(ctx context.Context, category Category, filename string, r io.Reader) (string, error) {
	start := time.Now()
	if !category.Valid() {
		return "", fmt.Errorf("unknown category %q", category)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if int64(len(data)) > s.maxBytes {
		return "", ErrTooLarge
	}

	mtype := mimetype.Detect(data)
	if !allowed(category, mtype) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
	}

	name := uuid.NewString() + extension(mtype, filename)
	dir := filepath.Join(s.root, string(category))
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close upload: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return "", fmt.Errorf("publish upload: %w", err)
	}

	url := s.baseURL + "/" + string(category) + "/" + name
	logger.Log.Debug("Object stored",
		zap.String("category", string(category)),
		zap.String("mime", mtype.String()),
		zap.Int("bytes", len(data)),
		zap.String("url", url),
		zap.Duration("duration", time.Since(start)),
	)
	return url, nil
}

func (s *LocalStore) Open(ctx context.Context, url string) (io.ReadCloser, string, error) {
	p, err := s.localPath(url)
	if err != nil {
		return nil, "", err
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", ErrObjectNotFound
		}
		return nil, "", err
	}

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return nil, "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, "", err
	}
	return f, mtype.String(), nil
}

// localPath maps a URL issued by Store back to a file below root.
func (s *LocalStore) localPath(url string) (string, error) {
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", ErrForeignURL
	}

	rel := path.Clean("/" + strings.TrimPrefix(url, prefix))
	parts := strings.SplitN(strings.TrimPrefix(rel, "/"), "/", 2)
	if len(parts) != 2 || !Category(parts[0]).Valid() || parts[1] == "" || strings.Contains(parts[1], "/") {
		return "", ErrObjectNotFound
	}
	return filepath.Join(s.root, parts[0], parts[1]), nil
}

func allowed(category Category, mtype *mimetype.MIME) bool {
	accepted := imageTypes
	if category == CategoryFiles {
		accepted = archiveTypes
	}
	for m := mtype; m != nil; m = m.Parent() {
		for _, a := range accepted {
			if m.Is(a) {
				return true
			}
		}
	}
	return false
}

func extension(mtype *mimetype.MIME, filename string) string {
	if ext := mtype.Extension(); ext != "" {
		return ext
	}
	return strings.ToLower(filepath.Ext(filename))
}
