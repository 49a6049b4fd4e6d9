// Package preprocess - configurable pipeline that turns a frame into a network input tensor.
package preprocess

import (
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/batch-video/models/model"
)

// StepType names a pipeline step.
type StepType string

const (
	// StepLoadImageFromFile reads the sample from Sample.Path.
	StepLoadImageFromFile StepType = "LoadImageFromFile"
	// StepLoadImageFromNDArray takes the sample from an in-memory frame.
	StepLoadImageFromNDArray StepType = "LoadImageFromNDArray"
	// StepResize resizes (optionally letterboxed) to the network input size.
	StepResize StepType = "Resize"
	// StepNormalize converts to float32 HWC and applies per-channel mean/std.
	StepNormalize StepType = "Normalize"
	// StepPackInputs packs the HWC buffer into a [1, C, H, W] tensor.
	StepPackInputs StepType = "PackInputs"
)

var (
	// ErrEmptyPipeline is returned when a pipeline has no steps.
	ErrEmptyPipeline = errors.New("preprocess: pipeline has no steps")
	// ErrNoSource is returned when the load step has nothing to load.
	ErrNoSource = errors.New("preprocess: sample has no source for the load step")
)

// StepConfig is the serialized form of one pipeline step.
type StepConfig struct {
	// Type selects the step implementation.
	Type StepType `json:"type" yaml:"type" toml:"type"`
	// Width is the target width for Resize.
	Width int `json:"width,omitempty" yaml:"width,omitempty" toml:"width,omitempty"`
	// Height is the target height for Resize.
	Height int `json:"height,omitempty" yaml:"height,omitempty" toml:"height,omitempty"`
	// KeepRatio letterboxes instead of stretching.
	KeepRatio bool `json:"keep_ratio,omitempty" yaml:"keep_ratio,omitempty" toml:"keep_ratio,omitempty"`
	// PadValue is the gray level of the letterbox border.
	PadValue float64 `json:"pad_value,omitempty" yaml:"pad_value,omitempty" toml:"pad_value,omitempty"`
	// Mean is subtracted per channel by Normalize.
	Mean []float32 `json:"mean,omitempty" yaml:"mean,omitempty" toml:"mean,omitempty"`
	// Std divides per channel by Normalize.
	Std []float32 `json:"std,omitempty" yaml:"std,omitempty" toml:"std,omitempty"`
	// ToRGB swaps OpenCV's BGR order before Normalize.
	ToRGB bool `json:"to_rgb,omitempty" yaml:"to_rgb,omitempty" toml:"to_rgb,omitempty"`
}

// Sample is the state threaded through the steps for one input.
type Sample struct {
	// Path is the source file for StepLoadImageFromFile.
	Path string
	// Frame is the borrowed source for StepLoadImageFromNDArray. Never modified.
	Frame *gocv.Mat
	// Image is the working image owned by the sample.
	Image gocv.Mat
	// Tensor holds HWC floats after Normalize and CHW floats after PackInputs.
	Tensor []float32
	// Shape is the tensor shape once packed.
	Shape []int64
	// Geometry records the mapping between frame and network input.
	Geometry model.Geometry

	channels int
	loaded   bool
}

// Close releases the working image.
func (s *Sample) Close() error {
	if !s.loaded {
		return nil
	}
	s.loaded = false
	return s.Image.Close()
}

// replace swaps the working image, closing the previous one.
func (s *Sample) replace(next gocv.Mat) {
	if s.loaded {
		s.Image.Close()
	}
	s.Image = next
	s.loaded = true
}

// Step is a single transform applied to a sample.
type Step interface {
	Type() StepType
	Apply(sample *Sample) error
}

// Pipeline is an ordered, immutable list of steps.
type Pipeline struct {
	steps []Step
}

// NewPipeline builds a pipeline from its serialized configuration.
//
// Arguments:
//   - configs: The ordered step configurations. The first must be a load step.
//
// Returns:
//   - The pipeline.
//   - An error if a step is unknown or misconfigured.
func NewPipeline(configs []StepConfig) (*Pipeline, error) {
	if len(configs) == 0 {
		return nil, ErrEmptyPipeline
	}

	steps := make([]Step, 0, len(configs))
	for i, cfg := range configs {
		step, err := newStep(cfg)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline step %d", i)
		}
		isLoad := cfg.Type == StepLoadImageFromFile || cfg.Type == StepLoadImageFromNDArray
		if (i == 0) != isLoad {
			return nil, errors.Errorf("pipeline step %d: load steps must come first and only once, got %s", i, cfg.Type)
		}
		steps = append(steps, step)
	}

	return &Pipeline{steps: steps}, nil
}

func newStep(cfg StepConfig) (Step, error) {
	switch cfg.Type {
	case StepLoadImageFromFile:
		return loadFromFile{}, nil
	case StepLoadImageFromNDArray:
		return loadFromNDArray{}, nil
	case StepResize:
		if cfg.Width <= 0 || cfg.Height <= 0 {
			return nil, errors.Errorf("resize: invalid size %dx%d", cfg.Width, cfg.Height)
		}
		return resizeStep{cfg: cfg}, nil
	case StepNormalize:
		if len(cfg.Mean) != len(cfg.Std) {
			return nil, errors.Errorf("normalize: %d mean values for %d std values", len(cfg.Mean), len(cfg.Std))
		}
		for _, s := range cfg.Std {
			if s == 0 {
				return nil, errors.New("normalize: std must not contain zero")
			}
		}
		return normalizeStep{cfg: cfg}, nil
	case StepPackInputs:
		return packInputs{}, nil
	default:
		return nil, errors.Errorf("unknown step type %q", cfg.Type)
	}
}

// Types returns the step types in order.
func (p *Pipeline) Types() []StepType {
	out := make([]StepType, len(p.steps))
	for i, s := range p.steps {
		out[i] = s.Type()
	}
	return out
}

// Run applies every step to the sample. On error the sample's working image is
// released.
func (p *Pipeline) Run(sample *Sample) error {
	for _, step := range p.steps {
		if err := step.Apply(sample); err != nil {
			sample.Close()
			return errors.Wrapf(err, "%s", step.Type())
		}
	}
	return nil
}

// RunFrame runs the pipeline on an in-memory frame. The frame is not modified.
func (p *Pipeline) RunFrame(frame gocv.Mat) (*Sample, error) {
	sample := &Sample{Frame: &frame}
	if err := p.Run(sample); err != nil {
		return nil, err
	}
	return sample, nil
}

type loadFromFile struct{}

func (loadFromFile) Type() StepType { return StepLoadImageFromFile }

func (loadFromFile) Apply(s *Sample) error {
	if s.Path == "" {
		return ErrNoSource
	}
	img := gocv.IMRead(s.Path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return errors.Errorf("could not read image %s", s.Path)
	}
	s.replace(img)
	s.resetGeometry()
	return nil
}

type loadFromNDArray struct{}

func (loadFromNDArray) Type() StepType { return StepLoadImageFromNDArray }

func (loadFromNDArray) Apply(s *Sample) error {
	if s.Frame == nil || s.Frame.Empty() {
		return ErrNoSource
	}
	s.replace(s.Frame.Clone())
	s.resetGeometry()
	return nil
}

func (s *Sample) resetGeometry() {
	w, h := s.Image.Cols(), s.Image.Rows()
	s.Geometry = model.Geometry{
		FrameWidth:  w,
		FrameHeight: h,
		InputWidth:  w,
		InputHeight: h,
		ScaleX:      1,
		ScaleY:      1,
	}
	s.channels = s.Image.Channels()
}

type resizeStep struct {
	cfg StepConfig
}

func (resizeStep) Type() StepType { return StepResize }

func (r resizeStep) Apply(s *Sample) error {
	if !s.loaded {
		return ErrNoSource
	}
	srcW, srcH := float32(s.Image.Cols()), float32(s.Image.Rows())
	dstW, dstH := r.cfg.Width, r.cfg.Height
	scaleX := float32(dstW) / srcW
	scaleY := float32(dstH) / srcH

	resized := gocv.NewMat()
	if !r.cfg.KeepRatio {
		gocv.Resize(s.Image, &resized, image.Pt(dstW, dstH), 0, 0, gocv.InterpolationLinear)
		s.replace(resized)
		s.Geometry.InputWidth, s.Geometry.InputHeight = dstW, dstH
		s.Geometry.ScaleX, s.Geometry.ScaleY = scaleX, scaleY
		s.Geometry.PadX, s.Geometry.PadY = 0, 0
		return nil
	}

	scale := math32.Min(scaleX, scaleY)
	newW := int(math32.Round(srcW * scale))
	newH := int(math32.Round(srcH * scale))
	if newW > dstW {
		newW = dstW
	}
	if newH > dstH {
		newH = dstH
	}
	gocv.Resize(s.Image, &resized, image.Pt(newW, newH), 0, 0, gocv.InterpolationLinear)

	left := (dstW - newW) / 2
	top := (dstH - newH) / 2
	pad := uint8(r.cfg.PadValue)
	boxed := gocv.NewMat()
	gocv.CopyMakeBorder(resized, &boxed, top, dstH-newH-top, left, dstW-newW-left,
		gocv.BorderConstant, color.RGBA{R: pad, G: pad, B: pad, A: 0})
	resized.Close()

	s.replace(boxed)
	s.Geometry.InputWidth, s.Geometry.InputHeight = dstW, dstH
	s.Geometry.ScaleX, s.Geometry.ScaleY = scale, scale
	s.Geometry.PadX, s.Geometry.PadY = float32(left), float32(top)
	return nil
}

type normalizeStep struct {
	cfg StepConfig
}

func (normalizeStep) Type() StepType { return StepNormalize }

func (n normalizeStep) Apply(s *Sample) error {
	if !s.loaded {
		return ErrNoSource
	}
	channels := s.Image.Channels()
	if len(n.cfg.Mean) != 0 && len(n.cfg.Mean) != channels {
		return errors.Errorf("%d mean values for a %d channel image", len(n.cfg.Mean), channels)
	}
	if n.cfg.ToRGB && channels == 3 {
		rgb := gocv.NewMat()
		gocv.CvtColor(s.Image, &rgb, gocv.ColorBGRToRGB)
		s.replace(rgb)
	}

	pixels := s.Image.ToBytes()
	tensor := make([]float32, len(pixels))
	for i, v := range pixels {
		c := i % channels
		f := float32(v)
		if len(n.cfg.Mean) != 0 {
			f = (f - n.cfg.Mean[c]) / n.cfg.Std[c]
		}
		tensor[i] = f
	}
	s.Tensor = tensor
	s.channels = channels
	return nil
}

type packInputs struct{}

func (packInputs) Type() StepType { return StepPackInputs }

// Apply transposes HWC to CHW. Without a preceding Normalize the raw pixel
// values are packed.
func (packInputs) Apply(s *Sample) error {
	if !s.loaded {
		return ErrNoSource
	}
	h, w := s.Image.Rows(), s.Image.Cols()
	channels := s.channels
	hwc := s.Tensor
	if hwc == nil {
		channels = s.Image.Channels()
		pixels := s.Image.ToBytes()
		hwc = make([]float32, len(pixels))
		for i, v := range pixels {
			hwc[i] = float32(v)
		}
	}
	if len(hwc) != h*w*channels {
		return errors.Errorf("tensor holds %d values, expected %dx%dx%d", len(hwc), h, w, channels)
	}

	plane := h * w
	chw := make([]float32, len(hwc))
	for i := 0; i < plane; i++ {
		for c := 0; c < channels; c++ {
			chw[c*plane+i] = hwc[i*channels+c]
		}
	}
	s.Tensor = chw
	s.Shape = []int64{1, int64(channels), int64(h), int64(w)}
	return nil
}
