package workflow

import "github.com/example/letter-snap/internal/prediction"

// Kind tags the active state.
type Kind int

const (
	KindIdle Kind = iota
	KindCameraActive
	KindCaptured
	KindPredicting
	KindSucceeded
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindIdle:
		return "idle"
	case KindCameraActive:
		return "camera_active"
	case KindCaptured:
		return "captured"
	case KindPredicting:
		return "predicting"
	case KindSucceeded:
		return "succeeded"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is one of Idle, CameraActive, Captured, Predicting, Succeeded or
// Failed. The set is closed.
type State interface {
	Kind() Kind
	isState()
}

// Idle waits for the user to open the camera or pick a file.
type Idle struct{}

// CameraActive holds a live camera stream.
type CameraActive struct{}

// Captured holds an image that has not been submitted yet.
type Captured struct {
	Image *CapturedImage
}

// Predicting holds the image whose prediction is in flight.
type Predicting struct {
	Image *CapturedImage
}

// Succeeded is a completed cycle. Image stays available for preview until
// the next capture or reset.
type Succeeded struct {
	Result prediction.Result
	Image  *CapturedImage
}

// Failed is a cycle that ended in an error the user must see.
type Failed struct {
	Message string
	Reason  prediction.Kind
	Image   *CapturedImage
}

func (Idle) Kind() Kind         { return KindIdle }
func (CameraActive) Kind() Kind { return KindCameraActive }
func (Captured) Kind() Kind     { return KindCaptured }
func (Predicting) Kind() Kind   { return KindPredicting }
func (Succeeded) Kind() Kind    { return KindSucceeded }
func (Failed) Kind() Kind       { return KindFailed }

func (Idle) isState()         {}
func (CameraActive) isState() {}
func (Captured) isState()     {}
func (Predicting) isState()   {}
func (Succeeded) isState()    {}
func (Failed) isState()       {}

// imageOf returns the image carried by s, if any.
func imageOf(s State) *CapturedImage {
	switch v := s.(type) {
	case Captured:
		return v.Image
	case Predicting:
		return v.Image
	case Succeeded:
		return v.Image
	case Failed:
		return v.Image
	default:
		return nil
	}
}

// ImageView describes the held image without its bytes.
type ImageView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// ResultView is a prediction with its presentation fields.
type ResultView struct {
	Prediction     string  `json:"prediction"`
	Label          string  `json:"label"`
	Confidence     float64 `json:"confidence"`
	Percent        int     `json:"percent"`
	HighConfidence bool    `json:"high_confidence"`
}

// Snapshot is a serializable view of a State.
type Snapshot struct {
	State  string      `json:"state"`
	Busy   bool        `json:"busy"`
	Image  *ImageView  `json:"image,omitempty"`
	Result *ResultView `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// SnapshotOf renders s.
func SnapshotOf(s State) Snapshot {
	snap := Snapshot{State: s.Kind().String(), Busy: s.Kind() == KindPredicting}
	if img := imageOf(s); img != nil && !img.Released() {
		snap.Image = &ImageView{ID: img.ID, Name: img.Name, ContentType: img.ContentType, Size: img.Size()}
	}
	switch v := s.(type) {
	case Succeeded:
		snap.Result = &ResultView{
			Prediction:     v.Result.Prediction,
			Label:          v.Result.Label(),
			Confidence:     v.Result.Confidence,
			Percent:        v.Result.Percent(),
			HighConfidence: v.Result.HighConfidence(),
		}
	case Failed:
		snap.Error = v.Message
	}
	return snap
}
