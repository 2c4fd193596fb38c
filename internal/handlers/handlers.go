package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/letter-snap/internal/prediction"
	"github.com/example/letter-snap/internal/workflow"
)

// MaxUploadSize bounds multipart uploads.
const MaxUploadSize = 10 << 20

// FallbackFilePicker tells the client to offer file selection instead of
// the camera.
const FallbackFilePicker = "file_picker"

// Workflow is the subset of the capture workflow the API drives.
type Workflow interface {
	Snapshot() workflow.Snapshot
	StartCapture(ctx context.Context) error
	StopCapture() error
	CaptureFrame(ctx context.Context) (workflow.State, error)
	SelectFile(ctx context.Context, name, contentType string, data []byte) (workflow.State, error)
	Reset() error
	Image(id string) (*workflow.CapturedImage, error)
}

type stateResponse struct {
	workflow.Snapshot
	Fallback string `json:"fallback,omitempty"`
	Ignored  bool   `json:"ignored,omitempty"`
}

type api struct {
	wf     Workflow
	logger *zap.Logger
}

// RegisterRoutes wires the HTTP handlers to the Gin router. notifications
// may be nil to disable the websocket endpoint.
func RegisterRoutes(router *gin.Engine, wf Workflow, notifications http.Handler, authMiddleware gin.HandlerFunc, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &api{wf: wf, logger: logger.Named("handlers")}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	guarded := []gin.HandlerFunc{}
	if authMiddleware != nil {
		guarded = append(guarded, authMiddleware)
	}

	apiGroup := router.Group("/api", guarded...)
	apiGroup.GET("/state", a.getState)
	apiGroup.POST("/camera/start", a.startCamera)
	apiGroup.POST("/camera/stop", a.stopCamera)
	apiGroup.POST("/camera/capture", a.captureFrame)
	apiGroup.POST("/upload", a.upload)
	apiGroup.POST("/reset", a.reset)
	apiGroup.GET("/images/:id", a.getImage)

	if notifications != nil {
		router.Group("/ws", guarded...).GET("/notifications", gin.WrapH(notifications))
	}
}

func (a *api) getState(c *gin.Context) {
	c.JSON(http.StatusOK, stateResponse{Snapshot: a.wf.Snapshot()})
}

func (a *api) startCamera(c *gin.Context) {
	err := a.wf.StartCapture(c.Request.Context())
	if errors.Is(err, workflow.ErrCameraUnavailable) {
		c.JSON(http.StatusOK, stateResponse{Snapshot: a.wf.Snapshot(), Fallback: FallbackFilePicker})
		return
	}
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stateResponse{Snapshot: a.wf.Snapshot()})
}

func (a *api) stopCamera(c *gin.Context) {
	if err := a.wf.StopCapture(); err != nil {
		a.logger.Warn("camera release reported an error", zap.Error(err))
	}
	c.JSON(http.StatusOK, stateResponse{Snapshot: a.wf.Snapshot()})
}

func (a *api) captureFrame(c *gin.Context) {
	state, err := a.wf.CaptureFrame(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stateResponse{Snapshot: workflow.SnapshotOf(state)})
}

func (a *api) upload(c *gin.Context) {
	if c.Request.ContentLength > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds upload limit"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize)

	file, err := c.FormFile(prediction.FileField)
	if err != nil {
		if isTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds upload limit"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open file"})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read file"})
		return
	}

	state, err := a.wf.SelectFile(c.Request.Context(), file.Filename, file.Header.Get("Content-Type"), data)
	if errors.Is(err, workflow.ErrInvalidFileType) {
		c.JSON(http.StatusOK, stateResponse{Snapshot: workflow.SnapshotOf(state), Ignored: true})
		return
	}
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stateResponse{Snapshot: workflow.SnapshotOf(state)})
}

func (a *api) reset(c *gin.Context) {
	if err := a.wf.Reset(); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stateResponse{Snapshot: a.wf.Snapshot()})
}

func (a *api) getImage(c *gin.Context) {
	img, err := a.wf.Image(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	data, err := img.Bytes()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, img.ContentType, data)
}

func (a *api) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, workflow.ErrBusy), errors.Is(err, workflow.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, workflow.ErrClosed):
		status = http.StatusServiceUnavailable
	default:
		a.logger.Error("workflow action failed", zap.Error(err), zap.String("path", c.FullPath()))
	}
	c.JSON(status, gin.H{"error": err.Error(), "state": a.wf.Snapshot().State})
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
