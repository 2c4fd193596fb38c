// Package prediction talks to the remote letter classifier and holds the
// result type shown to the user.
package prediction

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// HighConfidenceThreshold is the lowest confidence presented as reliable.
const HighConfidenceThreshold = 0.70

// Result is the classifier outcome for one image.
type Result struct {
	Prediction string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
}

// Upload is the image payload sent to the classifier.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Client exposes the subset of functionality used by the capture workflow.
type Client interface {
	Predict(ctx context.Context, upload Upload) (Result, error)
}

// HighConfidence reports whether the result should be presented as reliable.
func (r Result) HighConfidence() bool {
	return r.Confidence >= HighConfidenceThreshold
}

// Percent is the confidence rounded to a whole percentage.
func (r Result) Percent() int {
	return int(math.Round(r.Confidence * 100))
}

// Label is the prediction as displayed.
func (r Result) Label() string {
	return strings.ToUpper(r.Prediction)
}

// Summary renders the result the way notifications and the CLI show it.
func (r Result) Summary() string {
	return fmt.Sprintf("%s (%d%% confidence)", r.Label(), r.Percent())
}
