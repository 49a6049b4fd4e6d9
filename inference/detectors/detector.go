// Package detectors - runs preprocessing, inference and decoding on video frames.
package detectors

import (
	"context"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/batch-video/models/model"
	"github.com/nvr-ai/batch-video/models/preprocess"
)

// Runner executes a model on a packed input tensor.
//
// *providers.Session (ONNX Runtime) and *DNNRunner (OpenCV DNN) implement it.
type Runner interface {
	Run(data []float32, shape []int64) ([]model.Output, error)
	Close() error
}

// Detector turns frames into detection results.
type Detector struct {
	runner   Runner
	pipeline *preprocess.Pipeline
	decoder  model.Decoder
	args     model.DecodeArgs
}

// NewDetector creates a detector. The detector owns the runner and closes it.
//
// Arguments:
//   - runner: The inference backend.
//   - pipeline: Preprocessing; its first step must load from an in-memory frame.
//   - decoder: The output decoder for the model family.
//   - args: Decoder arguments.
//
// Returns:
//   - *Detector: The detector.
func NewDetector(runner Runner, pipeline *preprocess.Pipeline, decoder model.Decoder, args model.DecodeArgs) *Detector {
	return &Detector{
		runner:   runner,
		pipeline: pipeline,
		decoder:  decoder,
		args:     args,
	}
}

// Detect runs the model on one frame. The frame is not modified.
//
// Arguments:
//   - ctx: Cancelling the context stops before inference starts.
//   - frame: A BGR frame.
//
// Returns:
//   - *Result: Instances in frame pixel coordinates.
//   - error: An error if any stage fails.
func (d *Detector) Detect(ctx context.Context, frame gocv.Mat) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame.Empty() {
		return nil, errors.New("empty frame")
	}

	sample, err := d.pipeline.RunFrame(frame)
	if err != nil {
		return nil, errors.Wrap(err, "preprocess")
	}
	defer sample.Close()

	outputs, err := d.runner.Run(sample.Tensor, sample.Shape)
	if err != nil {
		return nil, errors.Wrap(err, "inference")
	}

	instances, err := d.decoder.Decode(outputs, sample.Geometry, d.args)
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	return &Result{
		Width:     frame.Cols(),
		Height:    frame.Rows(),
		Instances: instances,
	}, nil
}

// Close releases the runner.
func (d *Detector) Close() error {
	if d.runner == nil {
		return nil
	}
	err := d.runner.Close()
	d.runner = nil
	return err
}
