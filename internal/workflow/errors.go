package workflow

import "errors"

var (
	// ErrCameraUnavailable asks the caller to fall back to a file picker.
	// It is not a user-facing failure.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrInvalidFileType is returned for non-image payloads; state is unchanged.
	ErrInvalidFileType = errors.New("file is not an image")
	// ErrBusy is returned for any action while a prediction is in flight.
	ErrBusy = errors.New("prediction in progress")
	// ErrInvalidTransition is returned when the action is not allowed from
	// the current state.
	ErrInvalidTransition = errors.New("action not allowed in current state")
	// ErrImageReleased is returned when reading a discarded image.
	ErrImageReleased = errors.New("image released")
	// ErrImageNotFound is returned when no held image matches an id.
	ErrImageNotFound = errors.New("image not found")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("workflow closed")
)
