// Package qr renders share payloads as QR code images.
package qr

import (
	"errors"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// MaxPayloadBytes is the binary capacity of a version-40 QR code at the
// lowest error-correction level. Payloads beyond this must travel by file.
const MaxPayloadBytes = 2953

// DefaultSize is the rendered image edge in pixels.
const DefaultSize = 512

// ErrPayloadTooLarge signals the payload exceeds QR capacity; callers should
// offer file export instead.
var ErrPayloadTooLarge = errors.New("payload too large for a QR code, use file export")

// EncodePNG renders the payload bytes as a PNG QR code of the given size.
// Low error correction maximizes capacity; share payloads are verified by
// their JSON structure after decode anyway.
func EncodePNG(payload []byte, size int) ([]byte, error) {
	if len(payload) > MaxPayloadBytes {
		return nil, fmt.Errorf("%w (%d bytes, max %d)", ErrPayloadTooLarge, len(payload), MaxPayloadBytes)
	}
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrcode.Encode(string(payload), qrcode.Low, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}
