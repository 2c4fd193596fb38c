// Package camera abstracts the host camera. A Source grants at most one
// Stream per request; callers own the stream and must Close it.
package camera

import (
	"context"
	"errors"
	"image"
)

var (
	// ErrUnavailable means no camera can be opened on this host.
	ErrUnavailable = errors.New("camera unavailable")
	// ErrDenied means a camera exists but access was refused.
	ErrDenied = errors.New("camera access denied")
	// ErrClosed is returned by Frame after Close.
	ErrClosed = errors.New("camera stream closed")
)

// Constraints are hints for the stream; sources apply what they support.
type Constraints struct {
	Device     string
	FacingMode string
	Width      int
	Height     int
}

// DefaultConstraints asks for the rear camera at 1280x720.
func DefaultConstraints() Constraints {
	return Constraints{FacingMode: "environment", Width: 1280, Height: 720}
}

// Source hands out camera streams.
type Source interface {
	RequestStream(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is a live camera feed.
type Stream interface {
	Frame() (image.Image, error)
	Close() error
}

// Unavailable is a Source for hosts without a camera.
type Unavailable struct{}

// RequestStream always fails with ErrUnavailable.
func (Unavailable) RequestStream(context.Context, Constraints) (Stream, error) {
	return nil, ErrUnavailable
}
