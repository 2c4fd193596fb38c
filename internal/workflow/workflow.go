// Package workflow implements the capture/predict cycle: open the camera or
// pick a file, submit the image to the classifier, and hold the outcome until
// the user starts over.
package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"mime"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/letter-snap/internal/camera"
	"github.com/example/letter-snap/internal/logging"
	"github.com/example/letter-snap/internal/notify"
	"github.com/example/letter-snap/internal/prediction"
)

const (
	// JPEGQuality is used for every camera frame.
	JPEGQuality = 80
	// FrameName is the file name sent for camera frames.
	FrameName = "captured-image.jpg"
	// FrameContentType is the content type sent for camera frames.
	FrameContentType = "image/jpeg"
)

// Options tunes a Workflow. Zero values pick defaults.
type Options struct {
	Constraints camera.Constraints
	Notifier    notify.Notifier
	Now         func() time.Time
	NewID       func() string
}

// Workflow owns the capture state, the camera stream and the held image.
// Transitions are serialized; the prediction call runs without the lock and
// the Predicting state rejects concurrent actions.
type Workflow struct {
	mu     sync.Mutex
	state  State
	stream camera.Stream
	closed bool

	source      camera.Source
	client      prediction.Client
	notifier    notify.Notifier
	constraints camera.Constraints
	logger      *zap.Logger
	now         func() time.Time
	newID       func() string
}

// New returns a Workflow in the Idle state.
func New(source camera.Source, client prediction.Client, logger *zap.Logger, opts Options) *Workflow {
	if source == nil {
		source = camera.Unavailable{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Workflow{
		state:       Idle{},
		source:      source,
		client:      client,
		notifier:    opts.Notifier,
		constraints: opts.Constraints,
		logger:      logger.Named("capture_workflow"),
		now:         opts.Now,
		newID:       opts.NewID,
	}
	if w.notifier == nil {
		w.notifier = notify.Nop{}
	}
	if w.constraints == (camera.Constraints{}) {
		w.constraints = camera.DefaultConstraints()
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.newID == nil {
		w.newID = uuid.NewString
	}
	return w
}

// State returns the active state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Snapshot returns a serializable view of the active state.
func (w *Workflow) Snapshot() Snapshot {
	return SnapshotOf(w.State())
}

// Image returns the held image with the given id.
func (w *Workflow) Image(id string) (*CapturedImage, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	img := imageOf(w.state)
	if img == nil || img.ID != id || img.Released() {
		return nil, ErrImageNotFound
	}
	return img, nil
}

// StartCapture opens the camera. A denied or missing camera returns an error
// wrapping ErrCameraUnavailable and leaves the state untouched so the caller
// can offer a file picker instead. An already open stream is kept.
func (w *Workflow) StartCapture(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.guardLocked(); err != nil {
		return err
	}
	switch w.state.(type) {
	case CameraActive:
		return nil
	case Idle, Succeeded, Failed:
	default:
		return ErrInvalidTransition
	}

	stream, err := w.source.RequestStream(ctx, w.constraints)
	if err != nil {
		w.logger.Info("camera unavailable, falling back to file selection", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrCameraUnavailable, err)
	}

	w.discardImageLocked()
	w.stream = stream
	w.state = CameraActive{}
	w.logger.Debug("camera started")
	return nil
}

// StopCapture releases the camera and returns to Idle. It does nothing when
// the camera is not active.
func (w *Workflow) StopCapture() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	err := w.releaseStreamLocked()
	if _, ok := w.state.(CameraActive); ok {
		w.state = Idle{}
	}
	return err
}

// CaptureFrame snapshots the live feed as a JPEG, releases the camera and
// submits the image. It returns the state the cycle ended in.
func (w *Workflow) CaptureFrame(ctx context.Context) (State, error) {
	w.mu.Lock()
	if err := w.guardLocked(); err != nil {
		defer w.mu.Unlock()
		return w.state, err
	}
	if _, ok := w.state.(CameraActive); !ok {
		defer w.mu.Unlock()
		return w.state, ErrInvalidTransition
	}

	frame, err := w.stream.Frame()
	if releaseErr := w.releaseStreamLocked(); releaseErr != nil {
		w.logger.Warn("failed to release camera", zap.Error(releaseErr))
	}
	var data []byte
	if err == nil {
		data, err = encodeJPEG(frame)
	}
	if err != nil {
		w.state = Idle{}
		w.mu.Unlock()
		wrapped := logging.NewOperationError("workflow.capture_frame", "", err)
		w.logger.Error("frame capture failed", zap.Error(wrapped))
		return Idle{}, wrapped
	}

	img := newCapturedImage(w.newID(), FrameName, FrameContentType, data, w.now())
	w.state = Captured{Image: img}
	w.mu.Unlock()

	logging.WithOperation(w.logger, "workflow.capture_frame", img.ID).Debug("frame captured", zap.Int("bytes", len(data)))
	return w.Submit(ctx)
}

// SelectFile takes a user-picked file. Non-image payloads are ignored with
// ErrInvalidFileType. Accepted files are submitted immediately.
func (w *Workflow) SelectFile(ctx context.Context, name, contentType string, data []byte) (State, error) {
	w.mu.Lock()
	if err := w.guardLocked(); err != nil {
		defer w.mu.Unlock()
		return w.state, err
	}
	switch w.state.(type) {
	case Idle, Succeeded, Failed:
	default:
		defer w.mu.Unlock()
		return w.state, ErrInvalidTransition
	}

	contentType, ok := imageContentType(contentType, data)
	if !ok {
		defer w.mu.Unlock()
		w.logger.Debug("ignoring non-image file", zap.String("name", name))
		return w.state, ErrInvalidFileType
	}

	w.discardImageLocked()
	owned := make([]byte, len(data))
	copy(owned, data)
	img := newCapturedImage(w.newID(), name, contentType, owned, w.now())
	w.state = Captured{Image: img}
	w.mu.Unlock()

	logging.WithOperation(w.logger, "workflow.select_file", img.ID).Debug("file selected", zap.String("content_type", contentType), zap.Int("bytes", len(owned)))
	return w.Submit(ctx)
}

// Submit sends the captured image to the classifier. The call is not
// cancelled by ctx once issued. Classifier failures end in Failed with a nil
// error; the error return is reserved for rejected transitions.
func (w *Workflow) Submit(ctx context.Context) (State, error) {
	w.mu.Lock()
	if err := w.guardLocked(); err != nil {
		defer w.mu.Unlock()
		return w.state, err
	}
	captured, ok := w.state.(Captured)
	if !ok {
		defer w.mu.Unlock()
		if _, busy := w.state.(Predicting); busy {
			return w.state, ErrBusy
		}
		return w.state, ErrInvalidTransition
	}
	img := captured.Image
	w.state = Predicting{Image: img}
	w.mu.Unlock()

	opLogger := logging.WithOperation(w.logger, "workflow.submit", img.ID)
	opLogger.Info("submitting image for prediction", zap.String("name", img.Name))

	var (
		result prediction.Result
		err    error
	)
	data, err := img.Bytes()
	if err == nil {
		result, err = w.client.Predict(context.WithoutCancel(ctx), prediction.Upload{
			Name:        img.Name,
			ContentType: img.ContentType,
			Data:        data,
		})
	}

	var next State
	if err != nil {
		failed := Failed{Message: err.Error(), Image: img}
		var predErr *prediction.Error
		if errors.As(err, &predErr) {
			failed.Reason = predErr.Kind
		}
		opLogger.Warn("prediction failed",
			zap.Error(logging.NewOperationError("workflow.submit", img.ID, err)),
			zap.String("reason", string(failed.Reason)),
		)
		next = failed
	} else {
		opLogger.Info("prediction succeeded",
			zap.String("prediction", result.Prediction),
			zap.Float64("confidence", result.Confidence),
			zap.Bool("high_confidence", result.HighConfidence()),
		)
		next = Succeeded{Result: result, Image: img}
	}

	w.mu.Lock()
	if w.closed {
		img.Release()
		w.mu.Unlock()
		opLogger.Info("workflow closed during prediction, outcome dropped")
		return Idle{}, logging.NewOperationError("workflow.submit", img.ID, ErrClosed)
	}
	w.state = next
	w.mu.Unlock()

	w.announce(ctx, next)
	return next, nil
}

// Reset discards the held image and any camera stream and returns to Idle.
func (w *Workflow) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.guardLocked(); err != nil {
		return err
	}
	if _, busy := w.state.(Predicting); busy {
		return ErrBusy
	}
	err := w.releaseStreamLocked()
	w.discardImageLocked()
	w.state = Idle{}
	return err
}

// Close releases every resource. An in-flight prediction finishes but its
// outcome is dropped.
func (w *Workflow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	err := w.releaseStreamLocked()
	if _, busy := w.state.(Predicting); !busy {
		w.discardImageLocked()
	}
	w.state = Idle{}
	return err
}

func (w *Workflow) guardLocked() error {
	if w.closed {
		return ErrClosed
	}
	if _, busy := w.state.(Predicting); busy {
		return ErrBusy
	}
	return nil
}

func (w *Workflow) releaseStreamLocked() error {
	if w.stream == nil {
		return nil
	}
	err := w.stream.Close()
	w.stream = nil
	if err != nil {
		return logging.NewOperationError("workflow.release_camera", "", err)
	}
	return nil
}

func (w *Workflow) discardImageLocked() {
	if img := imageOf(w.state); img != nil {
		img.Release()
	}
}

func (w *Workflow) announce(ctx context.Context, s State) {
	var n notify.Notification
	switch v := s.(type) {
	case Succeeded:
		n = notify.Notification{
			Title:       "Analysis complete",
			Description: "Detected letter: " + v.Result.Summary(),
			Variant:     notify.VariantDefault,
		}
	case Failed:
		n = notify.Notification{
			Title:       "Could not analyze the image",
			Description: v.Message,
			Variant:     notify.VariantDestructive,
		}
	default:
		return
	}
	n.Time = w.now()
	if err := w.notifier.Notify(context.WithoutCancel(ctx), n); err != nil {
		w.logger.Warn("notification delivery failed", zap.Error(err))
	}
}

func encodeJPEG(frame image.Image) ([]byte, error) {
	if frame == nil {
		return nil, errors.New("empty frame")
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// imageContentType accepts declared image/* types. Missing or generic types
// are sniffed from the payload.
func imageContentType(declared string, data []byte) (string, bool) {
	if len(data) == 0 {
		return "", false
	}
	mediaType := strings.ToLower(strings.TrimSpace(declared))
	if parsed, _, err := mime.ParseMediaType(declared); err == nil {
		mediaType = parsed
	}
	if strings.HasPrefix(mediaType, "image/") {
		return mediaType, true
	}
	if mediaType != "" && mediaType != "application/octet-stream" {
		return "", false
	}
	detected := mimetype.Detect(data)
	if strings.HasPrefix(detected.String(), "image/") {
		return detected.String(), true
	}
	return "", false
}
