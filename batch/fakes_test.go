package batch

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/batch-video/images"
	"github.com/nvr-ai/batch-video/inference/detectors"
	"github.com/nvr-ai/batch-video/models/postprocess"
	"github.com/nvr-ai/batch-video/visualizer"
)

// fakeSource yields n 8x8 frames whose blue channel is 10 * frame index.
type fakeSource struct {
	frames []gocv.Mat
	fps    float64
	next   int
	closed bool
}

func newFakeSource(t *testing.T, n int, fps float64) *fakeSource {
	t.Helper()
	src := &fakeSource{fps: fps}
	for i := 0; i < n; i++ {
		m := gocv.NewMatWithSize(8, 8, gocv.MatTypeCV8UC3)
		m.SetTo(gocv.NewScalar(float64(i*10), 0, 0, 0))
		src.frames = append(src.frames, m)
	}
	t.Cleanup(func() {
		for i := range src.frames {
			src.frames[i].Close()
		}
	})
	return src
}

func (s *fakeSource) Read(frame *gocv.Mat) bool {
	if s.closed || s.next >= len(s.frames) {
		return false
	}
	s.frames[s.next].CopyTo(frame)
	s.next++
	return true
}

func (s *fakeSource) FPS() float64    { return s.fps }
func (s *fakeSource) FrameCount() int { return len(s.frames) }

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

// fakeDetector returns, for every frame, a confident and a weak instance of
// class 0 plus a confident instance of class 1.
type fakeDetector struct {
	calls  int
	failAt int // 1-based call that fails; 0 never fails
	err    error
}

func (d *fakeDetector) Detect(ctx context.Context, frame gocv.Mat) (*detectors.Result, error) {
	d.calls++
	if d.failAt > 0 && d.calls == d.failAt {
		return nil, d.err
	}
	return &detectors.Result{
		Width:  frame.Cols(),
		Height: frame.Rows(),
		Instances: []postprocess.Result{
			{Box: images.Rect{X1: 1, Y1: 1, X2: 4, Y2: 4}, Score: 0.9, Class: 0},
			{Box: images.Rect{X1: 2, Y1: 2, X2: 6, Y2: 6}, Score: 0.95, Class: 1},
			{Box: images.Rect{X1: 3, Y1: 3, X2: 7, Y2: 7}, Score: 0.1, Class: 0},
		},
	}, nil
}

// fakeRenderer records what it is asked to draw and hands back copies of the
// undrawn frame.
type fakeRenderer struct {
	results []*detectors.Result
	opts    []visualizer.DrawOptions
	names   []string
	last    gocv.Mat
	drawn   []postprocess.Result
	loaded  bool
}

func newFakeRenderer(t *testing.T) *fakeRenderer {
	r := &fakeRenderer{}
	t.Cleanup(func() {
		if r.loaded {
			r.last.Close()
		}
	})
	return r
}

func (r *fakeRenderer) AddDataSample(name string, frame gocv.Mat, result *detectors.Result, opts visualizer.DrawOptions) error {
	r.names = append(r.names, name)
	r.results = append(r.results, result)
	r.opts = append(r.opts, opts)
	if r.loaded {
		r.last.Close()
	}
	r.last = frame.Clone()
	r.loaded = true
	r.drawn = postprocess.AboveScore(result.Instances, opts.ScoreThreshold)
	return nil
}

func (r *fakeRenderer) Image() (gocv.Mat, error) {
	if !r.loaded {
		return gocv.NewMat(), errors.New("nothing rendered")
	}
	return r.last.Clone(), nil
}

func (r *fakeRenderer) Drawn() []postprocess.Result {
	return r.drawn
}
