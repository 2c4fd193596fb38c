//go:build !gocv

package camera

// OpenCVAvailable reports whether the binary was built with OpenCV support.
const OpenCVAvailable = false

// NewOpenCV returns Unavailable; build with -tags gocv for device capture.
func NewOpenCV() Source {
	return Unavailable{}
}
