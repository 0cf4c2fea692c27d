package qr

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodePNG(t *testing.T) {
	png, err := EncodePNG([]byte(`{"type":"farmdeck_project","version":1}`), 256)
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatalf("expected PNG magic bytes, got %q", png[:4])
	}
}

func TestEncodePNGTooLarge(t *testing.T) {
	big := bytes.Repeat([]byte("x"), MaxPayloadBytes+1)
	_, err := EncodePNG(big, 256)
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestEncodePNGDefaultSize(t *testing.T) {
	if _, err := EncodePNG([]byte("small"), 0); err != nil {
		t.Fatalf("expected default size to apply, got %v", err)
	}
}
