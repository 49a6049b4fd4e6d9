package main

import (
	"os"
	"path/filepath"

	"github.com/cyclopcam/logs"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nvr-ai/batch-video/batch"
	"github.com/nvr-ai/batch-video/inference"
	"github.com/nvr-ai/batch-video/inference/providers"
	"github.com/nvr-ai/batch-video/video"
	"github.com/nvr-ai/batch-video/visualizer"
)

type options struct {
	extension   string
	scoreThr    float64
	device      string
	backend     string
	targetClass int
	firstOnly   bool
	codec       string
	labels      bool
	profile     bool
	ortLib      string
}

type arguments struct {
	input      string
	output     string
	config     string
	checkpoint string
}

func newRootCommand(log logs.Log) *cobra.Command {
	var opts options
	var args arguments

	rootCmd := &cobra.Command{
		Use:   "batchvideo INPUT OUTPUT CONFIG CHECKPOINT",
		Short: "Draw detections of one class onto every video in a directory tree",
		Long: "Runs every INPUT/<category>/*.<extension> video through the detection model\n" +
			"described by CONFIG and CHECKPOINT, draws the boxes of the target class onto\n" +
			"each frame and writes OUTPUT/<category>/<name>.mp4 at the source frame rate.",
		Args:          cobra.ExactArgs(4),
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, positional []string) error {
			args = arguments{
				input:      positional[0],
				output:     positional[1],
				config:     positional[2],
				checkpoint: positional[3],
			}
			return validate(args, opts)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, log, args, opts)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.extension, "extension", "x", "mp4", "The filename extension filter")
	flags.Float64Var(&opts.scoreThr, "score-thr", 0.3, "Bbox score threshold")
	flags.StringVar(&opts.device, "device", "cuda:0", "Compute device: cpu, cuda[:N], openvino or coreml")
	flags.StringVar(&opts.backend, "backend", string(inference.BackendONNXRuntime), "Inference runtime: onnxruntime or opencv")
	flags.IntVar(&opts.targetClass, "target-class", 0, "The only class index drawn")
	flags.BoolVar(&opts.firstOnly, "first-only", false, "Process only the first category directory, and at most its first matching video")
	flags.StringVar(&opts.codec, "codec", video.DefaultCodec, "Output fourcc")
	flags.BoolVar(&opts.labels, "labels", false, "Write a JSON labels file next to every output video")
	flags.BoolVar(&opts.profile, "profile", false, "Log per-stage timings after every video")
	flags.StringVar(&opts.ortLib, "ort-lib", "", "ONNX Runtime shared library (default $"+providers.SharedLibraryEnv+")")

	return rootCmd
}

// validate checks the arguments before any model work and creates the output
// root.
func validate(args arguments, opts options) error {
	info, err := os.Stat(args.input)
	if err != nil {
		return errors.Wrap(err, "INPUT")
	}
	if !info.IsDir() {
		return errors.Errorf("INPUT %s is not a directory", args.input)
	}
	if _, err := os.ReadDir(args.input); err != nil {
		return errors.Wrap(err, "INPUT")
	}

	if info, err := os.Stat(args.output); err == nil && !info.IsDir() {
		return errors.Errorf("OUTPUT %s is not a directory", args.output)
	}

	if err := checkReadableFile("CONFIG", args.config); err != nil {
		return err
	}
	if err := checkReadableFile("CHECKPOINT", args.checkpoint); err != nil {
		return err
	}
	if filepath.Ext(args.checkpoint) != ".onnx" {
		return errors.Errorf("CHECKPOINT %s is not an .onnx file", args.checkpoint)
	}

	if batch.NormalizeExtension(opts.extension) == "." {
		return errors.New("--extension must not be empty")
	}
	// Above 1 is allowed and draws nothing.
	if opts.scoreThr < 0 {
		return errors.Errorf("--score-thr %v is negative", opts.scoreThr)
	}
	if opts.targetClass < 0 {
		return errors.Errorf("--target-class %d is negative", opts.targetClass)
	}
	if _, err := inference.ParseBackend(opts.backend); err != nil {
		return err
	}
	if _, err := providers.ParseDevice(opts.device); err != nil {
		return err
	}

	return errors.Wrap(os.MkdirAll(args.output, 0o755), "OUTPUT")
}

func checkReadableFile(name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, name)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.Wrap(err, name)
	}
	if info.IsDir() {
		return errors.Errorf("%s %s is a directory", name, path)
	}
	return nil
}

func run(cmd *cobra.Command, log logs.Log, args arguments, opts options) error {
	backend, err := inference.ParseBackend(opts.backend)
	if err != nil {
		return err
	}

	model, err := inference.Load(log, inference.LoadArgs{
		Config:      args.config,
		Checkpoint:  args.checkpoint,
		Device:      opts.device,
		Backend:     backend,
		LibraryPath: opts.ortLib,
	})
	if err != nil {
		return err
	}
	defer model.Close()

	if opts.targetClass >= len(model.Classes) {
		log.Warnf("--target-class %d is outside the model's %d classes; nothing will be drawn",
			opts.targetClass, len(model.Classes))
	}

	renderer := visualizer.NewRenderer(visualizer.Meta{Classes: model.Classes})
	defer renderer.Close()

	runner := batch.NewRunner(log, batch.Config{
		Input:          args.input,
		Output:         args.output,
		Extension:      opts.extension,
		FirstOnly:      opts.firstOnly,
		TargetClass:    opts.targetClass,
		ScoreThreshold: float32(opts.scoreThr),
		Codec:          opts.codec,
		Labels:         opts.labels,
		Profile:        opts.profile,
		Progress:       cmd.ErrOrStderr(),
	}, model.Detector, renderer, model.Classes)

	_, err = runner.Run(cmd.Context())
	return err
}
