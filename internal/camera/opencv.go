//go:build gocv

package camera

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

// OpenCVAvailable reports whether the binary was built with OpenCV support.
const OpenCVAvailable = true

// OpenCV opens local capture devices through gocv.
type OpenCV struct{}

// NewOpenCV returns an OpenCV-backed source.
func NewOpenCV() Source {
	return OpenCV{}
}

// RequestStream opens the configured device, or device 0.
func (OpenCV) RequestStream(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var device interface{} = 0
	if c.Device != "" {
		if id, err := strconv.Atoi(c.Device); err == nil {
			device = id
		} else {
			device = c.Device
		}
	}

	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, ErrUnavailable
	}
	if c.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
	}
	if c.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))
	}
	return &openCVStream{vc: vc}, nil
}

type openCVStream struct {
	mu sync.Mutex
	vc *gocv.VideoCapture
}

func (s *openCVStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vc == nil {
		return nil, ErrClosed
	}

	mat := gocv.NewMat()
	defer mat.Close()

	if ok := s.vc.Read(&mat); !ok || mat.Empty() {
		return nil, fmt.Errorf("read frame: device returned no image")
	}
	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return img, nil
}

func (s *openCVStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vc == nil {
		return nil
	}
	err := s.vc.Close()
	s.vc = nil
	return err
}
