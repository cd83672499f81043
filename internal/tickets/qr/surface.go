// Package qr renders ticket codes. All rendering goes through one shared
// Surface, which admits a single holder at a time.
package qr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/skip2/go-qrcode"
)

// ErrReleased is returned when a canvas is used after Release.
var ErrReleased = errors.New("qr canvas already released")

const DefaultSize = 512

// Encoder turns content into a size x size code image.
type Encoder func(content string, size int) (image.Image, error)

// Encode is the default Encoder: a QR code at medium error correction.
func Encode(content string, size int) (image.Image, error) {
	code, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr: %w", err)
	}
	return code.Image(size), nil
}

type Surface struct {
	slot   chan struct{}
	size   int
	encode Encoder
}

func NewSurface(size int) *Surface {
	return NewSurfaceWithEncoder(size, Encode)
}

// NewSurfaceWithEncoder builds a surface that draws with enc.
func NewSurfaceWithEncoder(size int, enc Encoder) *Surface {
	if size <= 0 {
		size = DefaultSize
	}
	if enc == nil {
		enc = Encode
	}
	return &Surface{
		slot:   make(chan struct{}, 1),
		size:   size,
		encode: enc,
	}
}

// Acquire blocks until the surface is free or ctx is done.
func (s *Surface) Acquire(ctx context.Context) (*Canvas, error) {
	select {
	case s.slot <- struct{}{}:
		return &Canvas{surface: s}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for qr surface: %w", ctx.Err())
	}
}

// Canvas is the caller's exclusive hold on the surface.
type Canvas struct {
	surface *Surface
	mu      sync.Mutex
	done    bool
}

// Render encodes exactly content and returns once the image is complete.
func (c *Canvas) Render(content string) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return nil, ErrReleased
	}
	if content == "" {
		return nil, errors.New("qr content is empty")
	}

	return c.surface.encode(content, c.surface.size)
}

// Release frees the surface for the next caller. Safe to call twice.
func (c *Canvas) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return
	}
	c.done = true
	<-c.surface.slot
}
