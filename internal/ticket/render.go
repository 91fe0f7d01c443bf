package ticket

import (
	"errors"
	"fmt"

	"github.com/skip2/go-qrcode"
)

const defaultQRSize = 400

// RenderOption customises a Renderer.
type RenderOption func(*Renderer)

// WithSize controls the pixel size of generated images.
func WithSize(size int) RenderOption {
	return func(r *Renderer) {
		if size > 0 {
			r.size = size
		}
	}
}

// WithRecoveryLevel overrides the error correction level.
func WithRecoveryLevel(level qrcode.RecoveryLevel) RenderOption {
	return func(r *Renderer) {
		r.level = level
	}
}

// Renderer turns payloads into PNG-encoded QR images.
type Renderer struct {
	size  int
	level qrcode.RecoveryLevel
}

// NewRenderer builds a renderer using high error correction at 400px by default.
func NewRenderer(opts ...RenderOption) *Renderer {
	r := &Renderer{size: defaultQRSize, level: qrcode.Highest}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Size reports the configured image size in pixels.
func (r *Renderer) Size() int {
	return r.size
}

// PNG encodes the payload as a QR image.
func (r *Renderer) PNG(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, errors.New("ticket: payload is required")
	}
	png, err := qrcode.Encode(string(payload), r.level, r.size)
	if err != nil {
		return nil, fmt.Errorf("ticket: encode qr: %w", err)
	}
	return png, nil
}
