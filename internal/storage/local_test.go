package storage

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, maxBytes int64) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(t.TempDir(), "/uploads/", maxBytes)
	require.NoError(t, err)
	return s
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	png, err := qrcode.Encode("upi://pay?pa=shop@bank", qrcode.Medium, 64)
	require.NoError(t, err)
	return png
}

func TestStore_ImageRoundTrip(t *testing.T) {
	s := newStore(t, 1<<20)
	ctx := context.Background()
	png := pngBytes(t)

	url, err := s.Store(ctx, CategoryProofs, "receipt.PNG", bytes.NewReader(png))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/proofs/"), url)
	assert.True(t, strings.HasSuffix(url, ".png"), url)

	rc, ctype, err := s.Open(ctx, url)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ctype)
	assert.Equal(t, png, got)
}

func TestStore_Rejections(t *testing.T) {
	s := newStore(t, 1<<20)
	ctx := context.Background()

	testCases := []struct {
		name     string
		category Category
		data     []byte
		want     error
	}{
		{name: "text_as_proof", category: CategoryProofs, data: []byte("hello, not an image"), want: ErrUnsupportedType},
		{name: "png_as_file", category: CategoryFiles, data: pngBytes(t), want: ErrUnsupportedType},
		{name: "empty", category: CategoryImages, data: nil, want: ErrEmpty},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Store(ctx, tc.category, "x", bytes.NewReader(tc.data))
			assert.ErrorIs(t, err, tc.want)
			assert.True(t, IsRejected(err))
		})
	}
}

func TestStore_TooLarge(t *testing.T) {
	png := pngBytes(t)
	s := newStore(t, int64(len(png)-1))

	_, err := s.Store(context.Background(), CategoryImages, "a.png", bytes.NewReader(png))

	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestStore_ArchiveAccepted(t *testing.T) {
	s := newStore(t, 1<<20)
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("README.md")
	require.NoError(t, err)
	_, err = w.Write([]byte("# template"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	url, err := s.Store(context.Background(), CategoryFiles, "bundle.zip", &buf)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/files/"), url)
}

func TestStore_CancelledContext(t *testing.T) {
	s := newStore(t, 1<<20)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Store(ctx, CategoryImages, "a.png", bytes.NewReader(pngBytes(t)))

	assert.ErrorIs(t, err, context.Canceled)
	entries, _ := os.ReadDir(filepath.Join(s.root, string(CategoryImages)))
	assert.Empty(t, entries)
}

func TestOpen_UnknownURLs(t *testing.T) {
	s := newStore(t, 1<<20)
	ctx := context.Background()

	_, _, err := s.Open(ctx, "https://cdn.example.com/file.zip")
	assert.ErrorIs(t, err, ErrForeignURL)

	_, _, err = s.Open(ctx, "/uploads/files/../../etc/passwd")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, _, err = s.Open(ctx, "/uploads/files/missing.zip")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestStoreQRCode(t *testing.T) {
	s := newStore(t, 1<<20)

	url, err := StoreQRCode(context.Background(), s, "upi://pay?pa=shop@bank&am=10")

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/qr/"), url)
}
