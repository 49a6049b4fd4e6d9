// Package postprocess - Postprocessing utilities for models.
package postprocess

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/nvr-ai/batch-video/images"
)

// Result represents a single predicted instance.
type Result struct {
	// The bounding box of the result, in frame pixels once decoded.
	Box images.Rect `json:"box"`
	// The confidence score of the result.
	Score float32 `json:"confidence"`
	// The predicted class index of the result.
	Class int `json:"class"`
}

func (r Result) String() string {
	return fmt.Sprintf("class %d (confidence %.3f) at %s", r.Class, r.Score, r.Box)
}

// KeepClass returns a new slice holding only the results whose class equals
// class. The input slice is never modified.
func KeepClass(results []Result, class int) []Result {
	return lo.Filter(results, func(r Result, _ int) bool {
		return r.Class == class
	})
}

// AboveScore returns a new slice holding the results scoring at or above
// threshold.
func AboveScore(results []Result, threshold float32) []Result {
	return lo.Filter(results, func(r Result, _ int) bool {
		return r.Score >= threshold
	})
}
