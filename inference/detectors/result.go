package detectors

import (
	"github.com/nvr-ai/batch-video/models/postprocess"
)

// Result is the prediction for a single frame.
type Result struct {
	// Width and Height are the frame dimensions the boxes refer to.
	Width  int `json:"width"`
	Height int `json:"height"`
	// Instances are the predicted objects in frame pixel coordinates.
	Instances []postprocess.Result `json:"instances"`
	// GroundTruth holds annotated objects when available. Detection never fills it.
	GroundTruth []postprocess.Result `json:"ground_truth,omitempty"`
}

// KeepClass returns a new result holding only the instances of the given
// class. The receiver is not modified.
func (r *Result) KeepClass(class int) *Result {
	return &Result{
		Width:       r.Width,
		Height:      r.Height,
		Instances:   postprocess.KeepClass(r.Instances, class),
		GroundTruth: append([]postprocess.Result(nil), r.GroundTruth...),
	}
}
