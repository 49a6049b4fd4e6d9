package batch

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// VideoLabels is the labels file written next to an output video.
type VideoLabels struct {
	Source  string        `json:"source"`
	Classes []string      `json:"classes"`
	FPS     float64       `json:"fps"`
	Frames  []FrameLabels `json:"frames"`
}

// NumInstances returns the number of instances across all frames.
func (v *VideoLabels) NumInstances() int {
	return lo.SumBy(v.Frames, func(f FrameLabels) int {
		return len(f.Instances)
	})
}

// WriteLabels writes labels as indented JSON, creating the parent directories.
func WriteLabels(path string, labels *VideoLabels) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "write labels %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "write labels %s", path)
	}

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(labels); err != nil {
		f.Close()
		return errors.Wrapf(err, "write labels %s", path)
	}
	return errors.Wrapf(f.Close(), "write labels %s", path)
}
