package models

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/batch-video/models/model"
	"github.com/nvr-ai/batch-video/models/postprocess"
	"github.com/nvr-ai/batch-video/models/preprocess"
)

// DefaultConfidenceThreshold drops candidates before NMS when the config omits it.
const DefaultConfidenceThreshold = 0.25

// InputShape is the network input size in pixels.
type InputShape struct {
	Width  int `json:"width" yaml:"width" toml:"width"`
	Height int `json:"height" yaml:"height" toml:"height"`
}

// Config describes a detection model: its decoder family, tensor names,
// labels and preprocessing pipeline.
type Config struct {
	// Name selects the output decoder.
	Name model.Name `json:"name" yaml:"name" toml:"name"`
	// Inputs are the input tensor names. Only the first is fed.
	Inputs []string `json:"inputs" yaml:"inputs" toml:"inputs"`
	// Outputs are the output tensor names, in the order decoders expect.
	Outputs []string `json:"outputs" yaml:"outputs" toml:"outputs"`
	// InputShape is the network input size.
	InputShape InputShape `json:"input_shape" yaml:"input_shape" toml:"input_shape"`
	// ClassSet names a built-in label list used when Classes is empty.
	ClassSet ClassSetName `json:"class_set" yaml:"class_set" toml:"class_set"`
	// Classes lists the labels by class index.
	Classes []string `json:"classes" yaml:"classes" toml:"classes"`
	// Pipeline is the ordered preprocessing steps.
	Pipeline []preprocess.StepConfig `json:"pipeline" yaml:"pipeline" toml:"pipeline"`
	// NMS configures suppression of overlapping candidates.
	NMS postprocess.NMSConfig `json:"nms" yaml:"nms" toml:"nms"`
	// ConfidenceThreshold drops candidates before NMS.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold" toml:"confidence_threshold"`
}

// DefaultConfig returns a YOLOv8 COCO configuration at 640x640.
func DefaultConfig() Config {
	cfg := newConfig()
	cfg.normalize()
	return cfg
}

// newConfig presets the fields whose zero value is meaningful, so a decoded
// file can still set them to zero explicitly.
func newConfig() Config {
	return Config{
		NMS:                 postprocess.DefaultNMSConfig(),
		ConfidenceThreshold: DefaultConfidenceThreshold,
	}
}

// LoadConfig reads a model configuration. The format is chosen by extension:
// .yaml/.yml or .toml. Omitted fields take their defaults and the result is
// validated. Omitted nms fields keep their defaults; explicit zeros are kept.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read model config")
	}

	cfg := newConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return nil, errors.Wrapf(err, "parse model config %s", path)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, errors.Wrapf(err, "parse model config %s", path)
		}
	default:
		return nil, errors.Errorf("model config %s: unsupported extension %q (want .yaml, .yml or .toml)", path, ext)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "model config %s", path)
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	if c.Name == "" {
		c.Name = model.ModelNameYOLOv8
	}
	if len(c.Inputs) == 0 {
		c.Inputs = []string{"images"}
	}
	if len(c.Outputs) == 0 {
		c.Outputs = []string{"output0"}
	}
	if c.InputShape.Width == 0 && c.InputShape.Height == 0 {
		c.InputShape = InputShape{Width: 640, Height: 640}
	}
	if len(c.Classes) == 0 && c.ClassSet == "" {
		c.ClassSet = ClassSetYOLO
	}
	if len(c.Pipeline) == 0 {
		c.Pipeline = []preprocess.StepConfig{
			{Type: preprocess.StepLoadImageFromFile},
			{Type: preprocess.StepResize, Width: c.InputShape.Width, Height: c.InputShape.Height, KeepRatio: true, PadValue: 114},
			{Type: preprocess.StepNormalize, Mean: []float32{0, 0, 0}, Std: []float32{255, 255, 255}, ToRGB: true},
			{Type: preprocess.StepPackInputs},
		}
	}
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	switch c.Name {
	case model.ModelNameYOLOv8, model.ModelNameYOLOv4, model.ModelNameRFDETR:
	default:
		return errors.Wrapf(ErrUnknownModel, "name %q", c.Name)
	}
	if c.InputShape.Width <= 0 || c.InputShape.Height <= 0 {
		return errors.Errorf("input_shape must be positive, got %dx%d", c.InputShape.Width, c.InputShape.Height)
	}
	if len(c.Classes) == 0 {
		if _, ok := LookupClassSet(c.ClassSet); !ok {
			return errors.Errorf("class_set %q is not a built-in set and classes is empty", c.ClassSet)
		}
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return errors.New("confidence_threshold must be between 0 and 1")
	}
	if c.NMS.IoUThreshold < 0 || c.NMS.IoUThreshold > 1 {
		return errors.New("nms.iou_threshold must be between 0 and 1")
	}
	if _, err := preprocess.NewPipeline(c.Pipeline); err != nil {
		return err
	}
	return nil
}

// Labels returns the class labels by index.
func (c *Config) Labels() []string {
	if len(c.Classes) != 0 {
		return append([]string(nil), c.Classes...)
	}
	set, _ := LookupClassSet(c.ClassSet)
	return append([]string(nil), set.Classes...)
}

// DecodeArgs returns the decoder arguments derived from the configuration.
func (c *Config) DecodeArgs() model.DecodeArgs {
	return model.DecodeArgs{
		NumClasses:          len(c.Labels()),
		ConfidenceThreshold: c.ConfidenceThreshold,
		NMS:                 c.NMS,
	}
}

// WithInMemorySource returns a copy whose first pipeline step loads from an
// in-memory frame instead of a file. The receiver is not modified.
func (c Config) WithInMemorySource() (Config, error) {
	if len(c.Pipeline) == 0 {
		return Config{}, preprocess.ErrEmptyPipeline
	}
	pipeline := make([]preprocess.StepConfig, len(c.Pipeline))
	copy(pipeline, c.Pipeline)
	pipeline[0].Type = preprocess.StepLoadImageFromNDArray
	c.Pipeline = pipeline
	return c, nil
}
