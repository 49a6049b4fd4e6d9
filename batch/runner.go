package batch

import (
	"context"
	"io"
	"path/filepath"

	"github.com/cyclopcam/logs"
	"github.com/pkg/errors"

	"github.com/nvr-ai/batch-video/profiler"
	"github.com/nvr-ai/batch-video/video"
)

// Reader is a FrameSource that must be closed.
type Reader interface {
	FrameSource
	Close() error
}

// Config describes a batch run.
type Config struct {
	// Input is the root holding one directory per category.
	Input string
	// Output is the root the category directories are mirrored into.
	Output string
	// Extension selects the input videos.
	Extension string
	// FirstOnly stops after the first category directory, with at most one video.
	FirstOnly bool
	// TargetClass is the only class drawn.
	TargetClass int
	// ScoreThreshold is the minimum score drawn.
	ScoreThreshold float32
	// Codec is the output fourcc.
	Codec string
	// Labels writes a JSON labels file next to every output video.
	Labels bool
	// Profile logs per-stage timings after every video.
	Profile bool
	// Progress receives a progress bar when it is a terminal.
	Progress io.Writer
}

// Stats summarizes a run.
type Stats struct {
	// Videos is the number of videos written.
	Videos int
	// Frames is the number of frames written across all videos.
	Frames int
	// Skipped is the number of videos that decoded to no frames.
	Skipped int
}

// Runner processes every discovered video sequentially. The detector and the
// renderer are shared across videos and must not be used concurrently.
type Runner struct {
	log      logs.Log
	config   Config
	detector Detector
	renderer Renderer
	classes  []string
	profiler *profiler.Profiler

	// OpenReader opens an input video. Defaults to video.Open.
	OpenReader func(path string) (Reader, error)
	// WriteVideo encodes an output video. Defaults to video.WriteFile.
	WriteVideo func(path string, frames *video.Frames, fps float64, codec string) error
}

// NewRunner creates a runner.
//
// Arguments:
//   - log: Receives progress and warnings.
//   - config: The run configuration.
//   - detector: The loaded model.
//   - renderer: The renderer bound to the model's labels.
//   - classes: The model's labels, written to the labels files.
//
// Returns:
//   - *Runner: The runner.
func NewRunner(log logs.Log, config Config, detector Detector, renderer Renderer, classes []string) *Runner {
	r := &Runner{
		log:      log,
		config:   config,
		detector: detector,
		renderer: renderer,
		classes:  append([]string(nil), classes...),
		OpenReader: func(path string) (Reader, error) {
			return video.Open(path)
		},
		WriteVideo: video.WriteFile,
	}
	if config.Profile {
		r.profiler = profiler.New(0)
	}
	return r
}

// Run discovers the jobs and processes them in order. The first error aborts
// the run; videos already written are kept.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	jobs, err := Discover(r.config.Input, r.config.Output, r.config.Extension, r.config.FirstOnly)
	if err != nil {
		return stats, err
	}
	if len(jobs) == 0 {
		r.log.Warnf("No *%s videos found under %s", NormalizeExtension(r.config.Extension), r.config.Input)
		return stats, nil
	}
	r.log.Infof("Found %d videos under %s", len(jobs), r.config.Input)

	for i, job := range jobs {
		r.log.Infof("[%d/%d] %s", i+1, len(jobs), job.Input)
		frames, err := r.runJob(ctx, job)
		if err != nil {
			r.log.Errorf("Aborting at %s: %v", job.Input, err)
			return stats, errors.Wrapf(err, "process %s", job.Input)
		}
		if frames == 0 {
			r.log.Warnf("Skipping %s: no frames decoded", job.Input)
			stats.Skipped++
			continue
		}
		stats.Videos++
		stats.Frames += frames
	}

	r.log.Infof("Wrote %d videos (%d frames), skipped %d", stats.Videos, stats.Frames, stats.Skipped)
	return stats, nil
}

func (r *Runner) runJob(ctx context.Context, job Job) (int, error) {
	reader, err := r.OpenReader(job.Input)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	fps := reader.FPS()
	r.log.Debugf("%s: %d frames at %.2f fps", job.Input, reader.FrameCount(), fps)

	processed, err := ProcessFrames(ctx, reader, r.detector, r.renderer, FrameOptions{
		TargetClass:    r.config.TargetClass,
		ScoreThreshold: r.config.ScoreThreshold,
		Labels:         r.config.Labels,
		Progress:       r.config.Progress,
		Description:    job.Category + "/" + filepath.Base(job.Input),
		Profiler:       r.profiler,
	})
	if err != nil {
		return 0, err
	}
	defer processed.Close()

	count := processed.Frames.Len()
	if count == 0 {
		return 0, nil
	}

	done := r.profiler.StartOperation(profiler.StageEncode)
	err = r.WriteVideo(job.Output, processed.Frames, fps, r.config.Codec)
	done()
	if err != nil {
		return 0, err
	}
	r.log.Infof("Wrote %s (%d frames)", job.Output, count)

	if r.config.Labels {
		labels := &VideoLabels{
			Source:  job.Input,
			Classes: r.classes,
			FPS:     fps,
			Frames:  processed.Labels,
		}
		if err := WriteLabels(job.LabelsPath(), labels); err != nil {
			return 0, err
		}
		r.log.Infof("Wrote %s (%d detections)", job.LabelsPath(), labels.NumInstances())
	}

	if r.profiler != nil {
		r.profiler.Report(r.log, job.Input)
		r.profiler.Reset()
	}
	return count, nil
}
