// Package visualizer - draws detection results onto video frames.
package visualizer

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/batch-video/inference/detectors"
	"github.com/nvr-ai/batch-video/models/postprocess"
)

// ErrNoImage is returned by Image before anything was rendered.
var ErrNoImage = errors.New("visualizer: nothing rendered yet")

// Meta is the label metadata a renderer is bound to.
type Meta struct {
	// Classes are the labels indexed by class id.
	Classes []string
}

// Label returns the class name, or the index itself when it is out of range.
func (m Meta) Label(class int) string {
	if class >= 0 && class < len(m.Classes) {
		return m.Classes[class]
	}
	return strconv.Itoa(class)
}

// DrawOptions control a single AddDataSample call.
type DrawOptions struct {
	// DrawGT also draws the result's ground truth boxes.
	DrawGT bool
	// ScoreThreshold hides instances scoring below it. Scores equal to it are drawn.
	ScoreThreshold float32
}

var groundTruthColor = color.RGBA{R: 255, G: 255, B: 255, A: 0}

// Renderer draws boxes and captions on a copy of each frame and keeps the last
// rendered image. It is not safe for concurrent use.
type Renderer struct {
	meta      Meta
	palette   []color.RGBA
	thickness int
	fontScale float64

	name   string
	image  gocv.Mat
	drawn  []postprocess.Result
	loaded bool
}

// NewRenderer creates a renderer bound to the given labels.
func NewRenderer(meta Meta) *Renderer {
	return &Renderer{
		meta:      Meta{Classes: append([]string(nil), meta.Classes...)},
		palette:   NewPalette(len(meta.Classes)),
		thickness: 2,
		fontScale: 0.5,
	}
}

// NewPalette returns n visually distinct colors spaced around the hue wheel
// by the golden angle.
func NewPalette(n int) []color.RGBA {
	if n <= 0 {
		n = 1
	}
	palette := make([]color.RGBA, n)
	for i := range palette {
		hue := math.Mod(float64(i)*137.508, 360)
		r, g, b := colorful.Hsv(hue, 0.75, 0.95).RGB255()
		palette[i] = color.RGBA{R: r, G: g, B: b, A: 0}
	}
	return palette
}

// Meta returns the renderer's label metadata.
func (r *Renderer) Meta() Meta {
	return r.meta
}

func (r *Renderer) colorFor(class int) color.RGBA {
	if class < 0 {
		class = -class
	}
	return r.palette[class%len(r.palette)]
}

// AddDataSample renders a result onto a copy of frame and stores it as the
// current image. The frame and the result are not modified.
//
// Arguments:
//   - name: Identifies the sample; kept for the current image.
//   - frame: The source frame.
//   - result: The detections to draw, in frame pixel coordinates.
//   - opts: Ground truth and score threshold options.
//
// Returns:
//   - error: An error if the frame is empty.
func (r *Renderer) AddDataSample(name string, frame gocv.Mat, result *detectors.Result, opts DrawOptions) error {
	if frame.Empty() {
		return errors.New("visualizer: empty frame")
	}

	canvas := frame.Clone()
	var drawn []postprocess.Result
	if result != nil {
		if opts.DrawGT {
			for _, gt := range result.GroundTruth {
				r.drawBox(&canvas, gt.Box.ToRectangle(), groundTruthColor, r.meta.Label(gt.Class))
			}
		}
		drawn = postprocess.AboveScore(result.Instances, opts.ScoreThreshold)
		for _, inst := range drawn {
			caption := fmt.Sprintf("%s: %.2f", r.meta.Label(inst.Class), inst.Score)
			r.drawBox(&canvas, inst.Box.ToRectangle(), r.colorFor(inst.Class), caption)
		}
	}

	if r.loaded {
		r.image.Close()
	}
	r.image = canvas
	r.loaded = true
	r.name = name
	r.drawn = drawn
	return nil
}

func (r *Renderer) drawBox(canvas *gocv.Mat, box image.Rectangle, c color.RGBA, caption string) {
	gocv.Rectangle(canvas, box, c, r.thickness)
	if caption == "" {
		return
	}

	size := gocv.GetTextSize(caption, gocv.FontHersheySimplex, r.fontScale, 1)
	top := box.Min.Y - size.Y - 4
	if top < 0 {
		top = box.Min.Y
	}
	background := image.Rect(box.Min.X, top, box.Min.X+size.X+4, top+size.Y+4)
	gocv.Rectangle(canvas, background, c, -1)
	gocv.PutText(canvas, caption, image.Pt(box.Min.X+2, top+size.Y+1),
		gocv.FontHersheySimplex, r.fontScale, color.RGBA{A: 0}, 1)
}

// Image returns a fresh copy of the last rendered image. The caller owns it.
func (r *Renderer) Image() (gocv.Mat, error) {
	if !r.loaded {
		return gocv.NewMat(), ErrNoImage
	}
	return r.image.Clone(), nil
}

// Name returns the name given to the last rendered sample.
func (r *Renderer) Name() string {
	return r.name
}

// Drawn returns the instances drawn on the last rendered image.
func (r *Renderer) Drawn() []postprocess.Result {
	return append([]postprocess.Result(nil), r.drawn...)
}

// Close releases the current image.
func (r *Renderer) Close() error {
	if !r.loaded {
		return nil
	}
	r.loaded = false
	r.drawn = nil
	return r.image.Close()
}
