// Package rfdetr - decodes end-to-end (DETR style) detection outputs.
package rfdetr

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"github.com/nvr-ai/batch-video/images"
	"github.com/nvr-ai/batch-video/models/model"
	"github.com/nvr-ai/batch-video/models/postprocess"
)

const rowSize = 6

// Decoder decodes [queries, 6] rows of x1, y1, x2, y2, score, class in network
// input pixels. Scores exported as logits (outside [0, 1]) are passed through a
// sigmoid.
type Decoder struct{}

// NewDecoder creates a new RF-DETR decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Name returns the model family served by this decoder.
func (d *Decoder) Name() model.Name {
	return model.ModelNameRFDETR
}

// Decode postprocesses the output of the RF-DETR model.
//
// Arguments:
//   - outputs: The output tensors of the RF-DETR model.
//   - geom: The letterbox geometry used during preprocessing.
//   - args: Class count, pre-NMS confidence floor and NMS configuration.
//
// Returns:
//   - A slice of postprocessed results.
//   - An error if the output is malformed.
func (d *Decoder) Decode(
	outputs []model.Output,
	geom model.Geometry,
	args model.DecodeArgs,
) ([]postprocess.Result, error) {
	output, err := model.FirstOutput(d.Name(), outputs)
	if err != nil {
		return nil, err
	}
	if len(output.Data)%rowSize != 0 {
		return nil, errors.Errorf("rfdetr: output of %d floats does not hold rows of %d values", len(output.Data), rowSize)
	}

	numRows := len(output.Data) / rowSize
	results := make([]postprocess.Result, 0, numRows)

	for i := 0; i < numRows; i++ {
		row := output.Data[i*rowSize : (i+1)*rowSize]
		score := row[4]
		if score < 0 || score > 1 {
			score = sigmoid(score)
		}
		if score < args.ConfidenceThreshold {
			continue
		}
		class := int(row[5])
		if class < 0 || (args.NumClasses > 0 && class >= args.NumClasses) {
			continue
		}
		results = append(results, postprocess.Result{
			Box:   geom.ToFrame(images.Rect{X1: row[0], Y1: row[1], X2: row[2], Y2: row[3]}),
			Score: score,
			Class: class,
		})
	}

	return postprocess.ApplyNMS(results, args.NMS), nil
}

func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}
