// Package models - model configuration, labels and the decoder registry.
package models

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/batch-video/models/model"
	"github.com/nvr-ai/batch-video/models/rfdetr"
	"github.com/nvr-ai/batch-video/models/yolov4"
	"github.com/nvr-ai/batch-video/models/yolov8"
)

// ErrUnknownModel is returned for a model name with no decoder.
var ErrUnknownModel = errors.New("unknown model")

// NewDecoder returns the output decoder for the given model family.
//
// Arguments:
//   - name: The model family from the configuration.
//
// Returns:
//   - The decoder.
//   - ErrUnknownModel if the family is not supported.
//
// Example:
//
//	decoder, err := NewDecoder(model.ModelNameYOLOv8)
//	if err != nil {
//	    return err
//	}
//	results, err := decoder.Decode(outputs, sample.Geometry, cfg.DecodeArgs())
func NewDecoder(name model.Name) (model.Decoder, error) {
	switch name {
	case model.ModelNameYOLOv8:
		return yolov8.NewDecoder(), nil
	case model.ModelNameYOLOv4:
		return yolov4.NewDecoder(), nil
	case model.ModelNameRFDETR:
		return rfdetr.NewDecoder(), nil
	default:
		return nil, errors.Wrapf(ErrUnknownModel, "%q", name)
	}
}
