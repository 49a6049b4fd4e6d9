// Package model - Definitions shared by every supported detector family.
package model

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/batch-video/images"
	"github.com/nvr-ai/batch-video/models/postprocess"
)

// Name is the unique identifier of a model family's output layout.
type Name string

const (
	// ModelNameYOLOv8 is the anchor-free YOLO head: [1, 4+classes, anchors].
	ModelNameYOLOv8 Name = "yolov8"
	// ModelNameYOLOv4 is the objectness YOLO head: [anchors, 5+classes], normalized boxes.
	ModelNameYOLOv4 Name = "yolov4"
	// ModelNameRFDETR is an end-to-end head: [queries, 6] rows of x1,y1,x2,y2,score,class.
	ModelNameRFDETR Name = "rfdetr"
)

// Output is one named output tensor copied out of the inference runtime.
type Output struct {
	Name  string
	Shape []int64
	Data  []float32
}

// Geometry records how a frame was mapped onto the network input so decoders
// can map boxes back.
type Geometry struct {
	// FrameWidth and FrameHeight are the dimensions of the decoded video frame.
	FrameWidth, FrameHeight int
	// InputWidth and InputHeight are the dimensions of the network input.
	InputWidth, InputHeight int
	// ScaleX and ScaleY are the resize factors from frame to network input.
	ScaleX, ScaleY float32
	// PadX and PadY are the letterbox offsets inside the network input.
	PadX, PadY float32
}

// ToFrame maps a box from network input pixels to clamped frame pixels.
func (g Geometry) ToFrame(r images.Rect) images.Rect {
	return r.Unletterbox(g.ScaleX, g.ScaleY, g.PadX, g.PadY).Clamp(g.FrameWidth, g.FrameHeight)
}

// DecodeArgs carries the per-model values a decoder needs.
type DecodeArgs struct {
	// NumClasses is the length of the model's label list.
	NumClasses int
	// ConfidenceThreshold drops candidates before NMS.
	ConfidenceThreshold float32
	// NMS configures suppression of overlapping candidates.
	NMS postprocess.NMSConfig
}

// Decoder turns raw output tensors into predicted instances in frame coordinates.
type Decoder interface {
	Name() Name
	Decode(outputs []Output, geom Geometry, args DecodeArgs) ([]postprocess.Result, error)
}

// FirstOutput returns the first tensor or an error naming the family that expected it.
func FirstOutput(name Name, outputs []Output) (Output, error) {
	if len(outputs) == 0 {
		return Output{}, errors.Errorf("%s: model produced no outputs", name)
	}
	return outputs[0], nil
}
