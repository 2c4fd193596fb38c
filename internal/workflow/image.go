package workflow

import (
	"sync"
	"time"
)

// CapturedImage is an image payload owned by the workflow. Once released its
// bytes are gone and reads fail with ErrImageReleased.
type CapturedImage struct {
	ID          string
	Name        string
	ContentType string
	CapturedAt  time.Time

	mu       sync.RWMutex
	data     []byte
	released bool
}

func newCapturedImage(id, name, contentType string, data []byte, at time.Time) *CapturedImage {
	return &CapturedImage{
		ID:          id,
		Name:        name,
		ContentType: contentType,
		CapturedAt:  at,
		data:        data,
	}
}

// Bytes returns the payload.
func (c *CapturedImage) Bytes() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.released {
		return nil, ErrImageReleased
	}
	return c.data, nil
}

// Size is the payload length, or 0 after release.
func (c *CapturedImage) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Released reports whether Release has been called.
func (c *CapturedImage) Released() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.released
}

// Release drops the payload. Safe to call more than once.
func (c *CapturedImage) Release() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.data = nil
	c.released = true
	c.mu.Unlock()
}
