// Package qr renders check-in tokens as scannable images
package qr

import (
	"errors"

	"github.com/skip2/go-qrcode"
)

// DefaultSize is the edge length in pixels of rendered codes
const DefaultSize = 256

// PNG encodes token as a QR code PNG of size x size pixels using medium error recovery
func PNG(token string, size int) ([]byte, error) {
	if token == "" {
		return nil, errors.New("qr: empty token")
	}
	if size <= 0 {
		size = DefaultSize
	}
	return qrcode.Encode(token, qrcode.Medium, size)
}
