// Package yolov8 - decodes anchor-free YOLO (v8/v11) detection heads.
package yolov8

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/batch-video/images"
	"github.com/nvr-ai/batch-video/models/model"
	"github.com/nvr-ai/batch-video/models/postprocess"
)

// Decoder decodes [1, 4+classes, anchors] outputs (or the transposed
// [1, anchors, 4+classes] layout). Boxes are cx, cy, w, h in network input pixels.
type Decoder struct{}

// NewDecoder creates a new YOLOv8 decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Name returns the model family served by this decoder.
func (d *Decoder) Name() model.Name {
	return model.ModelNameYOLOv8
}

// Decode converts the first output tensor into frame-space results.
//
// Arguments:
//   - outputs: The output tensors of the model.
//   - geom: The letterbox geometry used during preprocessing.
//   - args: Class count, pre-NMS confidence floor and NMS configuration.
//
// Returns:
//   - The results after NMS, ordered by descending score.
//   - An error if the tensor does not match the expected layout.
func (d *Decoder) Decode(
	outputs []model.Output,
	geom model.Geometry,
	args model.DecodeArgs,
) ([]postprocess.Result, error) {
	out, err := model.FirstOutput(d.Name(), outputs)
	if err != nil {
		return nil, err
	}

	rowSize := 4 + args.NumClasses
	if args.NumClasses <= 0 || len(out.Data)%rowSize != 0 {
		return nil, errors.Errorf(
			"yolov8: output of %d floats does not hold rows of %d values",
			len(out.Data), rowSize,
		)
	}
	anchors := len(out.Data) / rowSize

	// Channel-major is the default export; rows are contiguous only when the
	// last dimension holds the box and class values.
	transposed := len(out.Shape) == 3 && out.Shape[2] == int64(rowSize) && out.Shape[1] != int64(rowSize)
	at := func(anchor, field int) float32 {
		if transposed {
			return out.Data[anchor*rowSize+field]
		}
		return out.Data[field*anchors+anchor]
	}

	candidates := make([]postprocess.Result, 0, 64)
	for idx := 0; idx < anchors; idx++ {
		classID := 0
		probability := float32(-1e9)
		for col := 0; col < args.NumClasses; col++ {
			p := at(idx, 4+col)
			if p > probability {
				probability = p
				classID = col
			}
		}
		if probability < args.ConfidenceThreshold {
			continue
		}

		box := images.RectFromCenter(at(idx, 0), at(idx, 1), at(idx, 2), at(idx, 3))
		candidates = append(candidates, postprocess.Result{
			Box:   geom.ToFrame(box),
			Score: probability,
			Class: classID,
		})
	}

	return postprocess.ApplyNMS(candidates, args.NMS), nil
}
