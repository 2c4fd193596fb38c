package camera

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"
)

// StillSource serves a fixed picture as if it were a live feed. It backs the
// "still" camera type used for demos and kiosks without a webcam.
type StillSource struct {
	img image.Image
}

// NewStillSource wraps an already decoded image.
func NewStillSource(img image.Image) *StillSource {
	return &StillSource{img: img}
}

// LoadStillSource decodes a JPEG or PNG file.
func LoadStillSource(path string) (*StillSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open still image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode still image: %w", err)
	}
	return NewStillSource(img), nil
}

// RequestStream returns a stream over the still picture.
func (s *StillSource) RequestStream(ctx context.Context, _ Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.img == nil {
		return nil, ErrUnavailable
	}
	return &stillStream{img: s.img}, nil
}

type stillStream struct {
	mu     sync.Mutex
	img    image.Image
	closed bool
}

func (s *stillStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.img, nil
}

func (s *stillStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
