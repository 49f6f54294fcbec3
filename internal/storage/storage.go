// Package storage persists uploaded objects (payment proofs, deliverable
// files, images, payment QR codes) and hands back a URL for each.
package storage

import (
	"context"
	"errors"
	"io"
)

type Category string

const (
	CategoryProofs Category = "proofs"
	CategoryFiles  Category = "files"
	CategoryImages Category = "images"
	CategoryQR     Category = "qr"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryProofs, CategoryFiles, CategoryImages, CategoryQR:
		return true
	}
	return false
}

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
	ErrEmpty           = errors.New("file is empty")
	// ErrForeignURL is returned by Open for URLs this store did not issue.
	ErrForeignURL     = errors.New("url is not served by this store")
	ErrObjectNotFound = errors.New("object not found")
)

// ObjectStore is the durable home of uploaded bytes.
type ObjectStore interface {
	// Store saves the content of r under category and returns its public URL.
	// filename is only used as a hint for the extension.
	Store(ctx context.Context, category Category, filename string, r io.Reader) (string, error)
	// Open streams a previously stored object and reports its content type.
	Open(ctx context.Context, url string) (io.ReadCloser, string, error)
}

// IsRejected reports whether err is caused by the upload itself rather than
// by the backing store.
func IsRejected(err error) bool {
	return errors.Is(err, ErrUnsupportedType) || errors.Is(err, ErrTooLarge) || errors.Is(err, ErrEmpty)
}
