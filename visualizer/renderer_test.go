package visualizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/batch-video/images"
	"github.com/nvr-ai/batch-video/inference/detectors"
	"github.com/nvr-ai/batch-video/models/postprocess"
)

func blackFrame(t *testing.T) gocv.Mat {
	t.Helper()
	frame := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })
	return frame
}

func pixelSum(m gocv.Mat, row, col int) int {
	v := m.GetVecbAt(row, col)
	return int(v[0]) + int(v[1]) + int(v[2])
}

func testResult() *detectors.Result {
	return &detectors.Result{
		Width:  100,
		Height: 100,
		Instances: []postprocess.Result{
			{Box: images.Rect{X1: 10, Y1: 10, X2: 50, Y2: 50}, Score: 0.3, Class: 0},
			{Box: images.Rect{X1: 60, Y1: 60, X2: 90, Y2: 90}, Score: 0.29, Class: 0},
		},
	}
}

func TestRenderer_ScoreThreshold(t *testing.T) {
	r := NewRenderer(Meta{Classes: []string{"person"}})
	defer r.Close()
	frame := blackFrame(t)
	before := images.ComputeMatChecksum(frame)

	require.NoError(t, r.AddDataSample("clip", frame, testResult(), DrawOptions{ScoreThreshold: 0.3}))

	drawn := r.Drawn()
	require.Len(t, drawn, 1, "scores equal to the threshold are drawn")
	assert.InDelta(t, 0.3, drawn[0].Score, 1e-6)
	assert.Equal(t, "clip", r.Name())

	img, err := r.Image()
	require.NoError(t, err)
	defer img.Close()

	assert.Positive(t, pixelSum(img, 30, 10), "left edge of the kept box")
	assert.Zero(t, pixelSum(img, 75, 60), "left edge of the dropped box")
	assert.Equal(t, before, images.ComputeMatChecksum(frame), "input frame must not be modified")
}

func TestRenderer_GroundTruth(t *testing.T) {
	result := &detectors.Result{
		Width:       100,
		Height:      100,
		GroundTruth: []postprocess.Result{{Box: images.Rect{X1: 60, Y1: 60, X2: 90, Y2: 90}, Class: 0}},
	}

	r := NewRenderer(Meta{Classes: []string{"person"}})
	defer r.Close()

	require.NoError(t, r.AddDataSample("gt", blackFrame(t), result, DrawOptions{}))
	img, err := r.Image()
	require.NoError(t, err)
	assert.Zero(t, pixelSum(img, 75, 60))
	img.Close()

	require.NoError(t, r.AddDataSample("gt", blackFrame(t), result, DrawOptions{DrawGT: true}))
	img, err = r.Image()
	require.NoError(t, err)
	assert.Positive(t, pixelSum(img, 75, 60))
	img.Close()
}

func TestRenderer_ImageIsFreshCopy(t *testing.T) {
	r := NewRenderer(Meta{})
	defer r.Close()

	_, err := r.Image()
	assert.ErrorIs(t, err, ErrNoImage)

	require.NoError(t, r.AddDataSample("a", blackFrame(t), nil, DrawOptions{}))

	first, err := r.Image()
	require.NoError(t, err)
	defer first.Close()
	first.SetTo(gocv.NewScalar(255, 255, 255, 0))

	second, err := r.Image()
	require.NoError(t, err)
	defer second.Close()
	assert.Zero(t, pixelSum(second, 0, 0), "mutating one copy must not affect the next")
}

func TestRenderer_EmptyFrame(t *testing.T) {
	r := NewRenderer(Meta{})
	empty := gocv.NewMat()
	defer empty.Close()
	assert.Error(t, r.AddDataSample("x", empty, nil, DrawOptions{}))
	assert.NoError(t, r.Close())
}

func TestMeta_Label(t *testing.T) {
	m := Meta{Classes: []string{"person", "car"}}
	assert.Equal(t, "car", m.Label(1))
	assert.Equal(t, "7", m.Label(7))
	assert.Equal(t, "-1", m.Label(-1))
}

func TestNewPalette(t *testing.T) {
	palette := NewPalette(80)
	require.Len(t, palette, 80)
	assert.NotEqual(t, palette[0], palette[1])
	assert.Len(t, NewPalette(0), 1)
}
