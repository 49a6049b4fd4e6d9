package preprocess

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/batch-video/images"
)

func solidFrame(t *testing.T, rows, cols int, b, g, r float64) gocv.Mat {
	t.Helper()
	mat := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC3)
	mat.SetTo(gocv.NewScalar(b, g, r, 0))
	t.Cleanup(func() { mat.Close() })
	return mat
}

// TestPipelineLetterbox validates letterbox geometry for a wide frame.
func TestPipelineLetterbox(t *testing.T) {
	frame := solidFrame(t, 100, 200, 0, 0, 0)

	p, err := NewPipeline([]StepConfig{
		{Type: StepLoadImageFromNDArray},
		{Type: StepResize, Width: 64, Height: 64, KeepRatio: true, PadValue: 114},
		{Type: StepPackInputs},
	})
	require.NoError(t, err)

	sample, err := p.RunFrame(frame)
	require.NoError(t, err)
	defer sample.Close()

	assert.Equal(t, []int64{1, 3, 64, 64}, sample.Shape)
	assert.Len(t, sample.Tensor, 3*64*64)

	g := sample.Geometry
	assert.Equal(t, 200, g.FrameWidth)
	assert.Equal(t, 100, g.FrameHeight)
	assert.Equal(t, 64, g.InputWidth)
	assert.Equal(t, 64, g.InputHeight)
	assert.InDelta(t, 0.32, g.ScaleX, 1e-6)
	assert.InDelta(t, 0.32, g.ScaleY, 1e-6)
	assert.InDelta(t, 0, g.PadX, 1e-6)
	assert.InDelta(t, 16, g.PadY, 1e-6)

	// Row 0 lies in the top border, row 32 in the resized frame.
	assert.InDelta(t, 114, sample.Tensor[0], 1e-6, "border takes the pad value")
	assert.InDelta(t, 0, sample.Tensor[32*64], 1e-6, "content keeps the frame value")
}

// TestPipelineStretch validates resizing without keep_ratio.
func TestPipelineStretch(t *testing.T) {
	frame := solidFrame(t, 100, 200, 1, 2, 3)

	p, err := NewPipeline([]StepConfig{
		{Type: StepLoadImageFromNDArray},
		{Type: StepResize, Width: 50, Height: 40},
		{Type: StepPackInputs},
	})
	require.NoError(t, err)

	sample, err := p.RunFrame(frame)
	require.NoError(t, err)
	defer sample.Close()

	assert.Equal(t, []int64{1, 3, 40, 50}, sample.Shape)
	assert.InDelta(t, 0.25, sample.Geometry.ScaleX, 1e-6)
	assert.InDelta(t, 0.4, sample.Geometry.ScaleY, 1e-6)
	assert.Zero(t, sample.Geometry.PadX)
	assert.Zero(t, sample.Geometry.PadY)
}

// TestPipelineNormalize validates channel swap, mean/std and CHW packing.
func TestPipelineNormalize(t *testing.T) {
	frame := solidFrame(t, 2, 4, 10, 20, 30)

	p, err := NewPipeline([]StepConfig{
		{Type: StepLoadImageFromNDArray},
		{Type: StepNormalize, Mean: []float32{10, 10, 10}, Std: []float32{2, 2, 2}, ToRGB: true},
		{Type: StepPackInputs},
	})
	require.NoError(t, err)

	sample, err := p.RunFrame(frame)
	require.NoError(t, err)
	defer sample.Close()

	plane := 2 * 4
	require.Len(t, sample.Tensor, 3*plane)
	for i := 0; i < plane; i++ {
		assert.InDelta(t, 10, sample.Tensor[i], 1e-6, "red plane")
		assert.InDelta(t, 5, sample.Tensor[plane+i], 1e-6, "green plane")
		assert.InDelta(t, 0, sample.Tensor[2*plane+i], 1e-6, "blue plane")
	}
}

// TestPipelineDoesNotModifyFrame ensures the caller's frame survives preprocessing.
func TestPipelineDoesNotModifyFrame(t *testing.T) {
	frame := solidFrame(t, 48, 64, 50, 60, 70)
	before := images.ComputeMatChecksum(frame)

	p, err := NewPipeline([]StepConfig{
		{Type: StepLoadImageFromNDArray},
		{Type: StepResize, Width: 32, Height: 32, KeepRatio: true},
		{Type: StepNormalize, Mean: []float32{0, 0, 0}, Std: []float32{255, 255, 255}, ToRGB: true},
		{Type: StepPackInputs},
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		sample, err := p.RunFrame(frame)
		require.NoError(t, err)
		require.NoError(t, sample.Close())
	}

	assert.Equal(t, before, images.ComputeMatChecksum(frame))
}

func TestNewPipeline_Errors(t *testing.T) {
	tests := []struct {
		name    string
		configs []StepConfig
		target  error
	}{
		{name: "empty", configs: nil, target: ErrEmptyPipeline},
		{name: "load not first", configs: []StepConfig{{Type: StepPackInputs}}},
		{name: "two loads", configs: []StepConfig{
			{Type: StepLoadImageFromNDArray},
			{Type: StepLoadImageFromFile},
		}},
		{name: "unknown step", configs: []StepConfig{
			{Type: StepLoadImageFromNDArray},
			{Type: "RandomFlip"},
		}},
		{name: "resize without size", configs: []StepConfig{
			{Type: StepLoadImageFromNDArray},
			{Type: StepResize},
		}},
		{name: "zero std", configs: []StepConfig{
			{Type: StepLoadImageFromNDArray},
			{Type: StepNormalize, Mean: []float32{0}, Std: []float32{0}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPipeline(tt.configs)
			require.Error(t, err)
			assert.Nil(t, p)
			if tt.target != nil {
				assert.True(t, errors.Is(err, tt.target))
			}
		})
	}
}

// TestPipelineFileLoaderRejectsFrames covers a pipeline whose first step was
// not switched to the in-memory loader.
func TestPipelineFileLoaderRejectsFrames(t *testing.T) {
	frame := solidFrame(t, 8, 8, 0, 0, 0)

	p, err := NewPipeline([]StepConfig{
		{Type: StepLoadImageFromFile},
		{Type: StepPackInputs},
	})
	require.NoError(t, err)
	assert.Equal(t, []StepType{StepLoadImageFromFile, StepPackInputs}, p.Types())

	_, err = p.RunFrame(frame)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSource))
}
