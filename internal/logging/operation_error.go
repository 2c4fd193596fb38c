package logging

import "fmt"

// OperationError annotates an error with the operation that produced it and,
// when known, the captured image it was working on.
type OperationError struct {
	Operation string
	ImageID   string
	Err       error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	if e.ImageID != "" {
		return fmt.Sprintf("%s (image_id=%s): %v", e.Operation, e.ImageID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOperationError wraps err. It returns nil when err is nil.
func NewOperationError(operation, imageID string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, ImageID: imageID, Err: err}
}
