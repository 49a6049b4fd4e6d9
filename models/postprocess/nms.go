// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"

	"github.com/nvr-ai/batch-video/images"
)

// DefaultIoUThreshold is the overlap above which a lower scoring box is suppressed.
const DefaultIoUThreshold = 0.45

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// Overlap threshold for suppression.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold" toml:"iou_threshold"`
	// If true, suppress only within same class.
	ClassAware bool `json:"class_aware" yaml:"class_aware" toml:"class_aware"`
	// If true, skip suppression entirely (end-to-end models emit final boxes).
	Disabled bool `json:"disabled" yaml:"disabled" toml:"disabled"`
}

// DefaultNMSConfig returns the class-aware configuration used when a model
// config omits the nms section.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{
		IoUThreshold: DefaultIoUThreshold,
		ClassAware:   true,
	}
}

// ApplyNMS performs greedy Non-Maximum Suppression.
//
// Arguments:
//   - detections: Candidate detections in any order. The slice is not modified.
//   - config: NMS configuration.
//
// Returns:
//   - A new slice ordered by descending score. If no detections are provided, returns nil.
func ApplyNMS(detections []Result, config NMSConfig) []Result {
	n := len(detections)
	if n == 0 {
		return nil
	}

	sorted := make([]Result, n)
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	if config.Disabled {
		return sorted
	}

	filtered := make([]Result, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := sorted[i]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if config.ClassAware && anchor.Class != sorted[j].Class {
				continue
			}
			if images.CalculateIoU(anchor.Box, sorted[j].Box) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}
