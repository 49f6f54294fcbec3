package storage

import (
	"bytes"
	"context"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// StoreQRCode renders uri as a 256px PNG and stores it in the qr category.
func StoreQRCode(ctx context.Context, store ObjectStore, uri string) (string, error) {
	png, err := qrcode.Encode(uri, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("render qr code: %w", err)
	}
	return store.Store(ctx, CategoryQR, "payment.png", bytes.NewReader(png))
}
