package batch

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/batch-video/inference/detectors"
	"github.com/nvr-ai/batch-video/models/postprocess"
	"github.com/nvr-ai/batch-video/profiler"
	"github.com/nvr-ai/batch-video/video"
	"github.com/nvr-ai/batch-video/visualizer"
)

// SampleName is the name every frame is rendered under.
const SampleName = "video"

// Detector runs inference on a single frame.
type Detector interface {
	Detect(ctx context.Context, frame gocv.Mat) (*detectors.Result, error)
}

// Renderer draws a result onto a frame and hands out copies of the drawing.
type Renderer interface {
	AddDataSample(name string, frame gocv.Mat, result *detectors.Result, opts visualizer.DrawOptions) error
	Image() (gocv.Mat, error)
	Drawn() []postprocess.Result
}

// FrameSource yields decoded frames in order.
type FrameSource interface {
	Read(frame *gocv.Mat) bool
	FPS() float64
	FrameCount() int
}

// FrameOptions control ProcessFrames.
type FrameOptions struct {
	// TargetClass is the only class passed to the renderer.
	TargetClass int
	// ScoreThreshold is the minimum score drawn.
	ScoreThreshold float32
	// Labels collects the drawn instances of every frame.
	Labels bool
	// Progress receives a progress bar; nil disables it.
	Progress io.Writer
	// Description labels the progress bar.
	Description string
	// Profiler records per-stage timings; nil disables it.
	Profiler *profiler.Profiler
}

// FrameLabels are the instances drawn on one output frame.
type FrameLabels struct {
	Frame     int                  `json:"frame"`
	Instances []postprocess.Result `json:"instances"`
}

// Processed is the outcome of a successful ProcessFrames.
type Processed struct {
	// Frames holds one rendered frame per input frame, in input order.
	Frames *video.Frames
	// Labels is filled when FrameOptions.Labels is set.
	Labels []FrameLabels
}

// Close releases the rendered frames.
func (p *Processed) Close() {
	if p != nil && p.Frames != nil {
		p.Frames.Close()
	}
}

// ProcessFrames reads every frame from src, detects objects, keeps only the
// target class, renders the result and buffers the rendered copy. The context
// is checked before each frame. The first error releases the buffer and is
// returned with the frame index.
//
// Arguments:
//   - ctx: Cancels the loop between frames.
//   - src: The decoded video.
//   - detector: Runs inference.
//   - renderer: Draws the filtered result.
//   - opts: Target class, threshold and reporting options.
//
// Returns:
//   - *Processed: The rendered frames; the caller must Close it.
//   - error: The first detection or rendering error.
func ProcessFrames(ctx context.Context, src FrameSource, detector Detector, renderer Renderer, opts FrameOptions) (*Processed, error) {
	out := &Processed{Frames: video.NewFrames(src.FrameCount())}
	bar := newProgressBar(opts.Progress, src.FrameCount(), opts.Description)

	frame := gocv.NewMat()
	defer frame.Close()

	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			out.Close()
			return nil, errors.Wrapf(err, "frame %d", index)
		}

		done := opts.Profiler.StartOperation(profiler.StageRead)
		ok := src.Read(&frame)
		done()
		if !ok {
			break
		}

		rendered, err := processFrame(ctx, frame, detector, renderer, opts)
		if err != nil {
			out.Close()
			return nil, errors.Wrapf(err, "frame %d", index)
		}
		out.Frames.Append(rendered)

		if opts.Labels {
			out.Labels = append(out.Labels, FrameLabels{Frame: index, Instances: renderer.Drawn()})
		}
		if bar != nil {
			bar.Add(1)
		}
	}

	if bar != nil {
		bar.Finish()
	}
	return out, nil
}

func processFrame(ctx context.Context, frame gocv.Mat, detector Detector, renderer Renderer, opts FrameOptions) (gocv.Mat, error) {
	done := opts.Profiler.StartOperation(profiler.StageDetect)
	result, err := detector.Detect(ctx, frame)
	done()
	if err != nil {
		return gocv.Mat{}, errors.Wrap(err, "detect")
	}

	done = opts.Profiler.StartOperation(profiler.StageRender)
	defer done()

	filtered := result.KeepClass(opts.TargetClass)
	if err := renderer.AddDataSample(SampleName, frame, filtered, visualizer.DrawOptions{
		DrawGT:         false,
		ScoreThreshold: opts.ScoreThreshold,
	}); err != nil {
		return gocv.Mat{}, errors.Wrap(err, "render")
	}
	image, err := renderer.Image()
	if err != nil {
		return gocv.Mat{}, errors.Wrap(err, "render")
	}
	return image, nil
}

// newProgressBar returns nil unless w is a terminal.
func newProgressBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	if !isTerminal(w) {
		return nil
	}
	if total <= 0 {
		total = -1
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
