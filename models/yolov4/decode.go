// Package yolov4 - decodes objectness-style YOLO (v3/v4/v5) detection heads.
package yolov4

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/batch-video/images"
	"github.com/nvr-ai/batch-video/models/model"
	"github.com/nvr-ai/batch-video/models/postprocess"
)

// Decoder decodes [anchors, 5+classes] rows of cx, cy, w, h, objectness and
// per-class scores. Coordinates are normalized to the network input.
type Decoder struct{}

// NewDecoder creates a new YOLOv4 decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Name returns the model family served by this decoder.
func (d *Decoder) Name() model.Name {
	return model.ModelNameYOLOv4
}

// Decode postprocesses the output of the YOLOv4 model.
//
// Arguments:
//   - outputs: The output tensors of the YOLOv4 model.
//   - geom: The letterbox geometry used during preprocessing.
//   - args: Class count, pre-NMS confidence floor and NMS configuration.
//
// Returns:
//   - A slice of postprocessed results.
//   - An error if the tensor does not match the expected layout.
func (d *Decoder) Decode(
	outputs []model.Output,
	geom model.Geometry,
	args model.DecodeArgs,
) ([]postprocess.Result, error) {
	output, err := model.FirstOutput(d.Name(), outputs)
	if err != nil {
		return nil, err
	}

	numCols := 5 + args.NumClasses
	if args.NumClasses <= 0 || len(output.Data)%numCols != 0 {
		return nil, errors.Errorf(
			"yolov4: output of %d floats does not hold rows of %d values",
			len(output.Data), numCols,
		)
	}
	numRows := len(output.Data) / numCols
	inW := float32(geom.InputWidth)
	inH := float32(geom.InputHeight)

	results := make([]postprocess.Result, 0, numRows)
	for i := 0; i < numRows; i++ {
		row := output.Data[i*numCols : (i+1)*numCols]
		objConf := row[4]
		if objConf < args.ConfidenceThreshold {
			continue
		}

		classID := 0
		maxScore := float32(0)
		for j := 5; j < numCols; j++ {
			if row[j] > maxScore {
				maxScore = row[j]
				classID = j - 5
			}
		}

		finalScore := objConf * maxScore
		if finalScore < args.ConfidenceThreshold {
			continue
		}

		box := images.RectFromCenter(row[0]*inW, row[1]*inH, row[2]*inW, row[3]*inH)
		results = append(results, postprocess.Result{
			Box:   geom.ToFrame(box),
			Score: finalScore,
			Class: classID,
		})
	}

	return postprocess.ApplyNMS(results, args.NMS), nil
}
