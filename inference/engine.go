// Package inference - loads a detection model onto a device.
package inference

import (
	"os"

	"github.com/cyclopcam/logs"
	"github.com/pkg/errors"

	"github.com/nvr-ai/batch-video/inference/detectors"
	"github.com/nvr-ai/batch-video/inference/providers"
	"github.com/nvr-ai/batch-video/models"
	"github.com/nvr-ai/batch-video/models/preprocess"
)

// Backend selects the inference runtime.
type Backend string

const (
	// BackendONNXRuntime runs the model through ONNX Runtime.
	BackendONNXRuntime Backend = "onnxruntime"
	// BackendOpenCV runs the model through OpenCV's DNN module.
	BackendOpenCV Backend = "opencv"
)

// ParseBackend validates a backend name.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(s); b {
	case BackendONNXRuntime, BackendOpenCV:
		return b, nil
	case "":
		return BackendONNXRuntime, nil
	default:
		return "", errors.Errorf("unknown backend %q (want %s or %s)", s, BackendONNXRuntime, BackendOpenCV)
	}
}

// Model is a loaded detector together with its label metadata.
type Model struct {
	// Detector runs inference on frames.
	Detector *detectors.Detector
	// Classes are the labels indexed by class id.
	Classes []string
	// Config is the model configuration with the in-memory load step applied.
	Config models.Config
	// Device is the device the model is bound to.
	Device providers.Device
}

// Close releases the runtime session.
func (m *Model) Close() error {
	if m == nil || m.Detector == nil {
		return nil
	}
	return m.Detector.Close()
}

// EngineBuilder assembles a Model step by step. The first error short-circuits
// the remaining steps and is returned by Build.
type EngineBuilder struct {
	device   providers.Device
	provider providers.ExecutionProvider
	config   *models.Config
	pipeline *preprocess.Pipeline
	runner   detectors.Runner
	err      error
}

// NewEngineBuilder creates a new engine builder.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func NewEngineBuilder() *EngineBuilder {
	return &EngineBuilder{}
}

// WithDevice parses the device string and selects the execution provider.
//
// Arguments:
//   - device: e.g. "cuda:0" or "cpu".
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithDevice(device string) *EngineBuilder {
	if b.HasError() {
		return b
	}

	d, err := providers.ParseDevice(device)
	if err != nil {
		b.err = err
		return b
	}
	provider, err := d.Provider()
	if err != nil {
		b.err = err
		return b
	}
	b.device = d
	b.provider = provider
	return b
}

// WithModel binds the model configuration. The first pipeline step is switched
// to load from in-memory frames.
//
// Arguments:
//   - cfg: The validated model configuration.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithModel(cfg models.Config) *EngineBuilder {
	if b.HasError() {
		return b
	}

	inMemory, err := cfg.WithInMemorySource()
	if err != nil {
		b.err = err
		return b
	}
	pipeline, err := preprocess.NewPipeline(inMemory.Pipeline)
	if err != nil {
		b.err = errors.Wrap(err, "build pipeline")
		return b
	}
	b.config = &inMemory
	b.pipeline = pipeline
	return b
}

// WithRuntime creates the inference session for the checkpoint. WithDevice and
// WithModel must come first.
//
// Arguments:
//   - backend: The runtime to use.
//   - checkpoint: The ONNX weights file.
//   - libraryPath: The ONNX Runtime shared library; empty uses the environment or the bundled default.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithRuntime(backend Backend, checkpoint, libraryPath string) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if b.provider == nil || b.config == nil {
		b.err = errors.New("device and model must be configured before the runtime")
		return b
	}
	if _, err := os.Stat(checkpoint); err != nil {
		b.err = errors.Wrap(err, "checkpoint")
		return b
	}

	switch backend {
	case BackendOpenCV:
		runner, err := detectors.NewDNNRunner(checkpoint, b.config.Outputs, b.device)
		if err != nil {
			b.err = err
			return b
		}
		b.runner = runner
	default:
		session, err := providers.NewSession(b.provider, providers.NewSessionArgs{
			ModelPath:    checkpoint,
			Inputs:       b.config.Inputs,
			Outputs:      b.config.Outputs,
			LibraryPath:  libraryPath,
			Optimization: providers.DefaultOptimizationConfig(),
		})
		if err != nil {
			b.err = err
			return b
		}
		b.runner = session
	}
	return b
}

// WithRunner injects an already constructed runner in place of WithRuntime.
//
// Arguments:
//   - runner: The inference backend. Build takes ownership.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithRunner(runner detectors.Runner) *EngineBuilder {
	if b.HasError() {
		return b
	}
	b.runner = runner
	return b
}

// HasError checks if the engine builder has errors.
//
// Returns:
//   - bool: True if there are errors, false otherwise.
func (b *EngineBuilder) HasError() bool {
	return b.err != nil
}

// Build builds the model. On failure any runner already created is closed.
//
// Returns:
//   - *Model: The model.
//   - error: The error if any.
func (b *EngineBuilder) Build() (*Model, error) {
	m, err := b.build()
	if err != nil && b.runner != nil {
		b.runner.Close()
		b.runner = nil
	}
	return m, err
}

func (b *EngineBuilder) build() (*Model, error) {
	if b.HasError() {
		return nil, b.err
	}
	if b.provider == nil {
		return nil, errors.New("device not configured")
	}
	if b.config == nil {
		return nil, errors.New("model not configured")
	}
	if b.runner == nil {
		return nil, errors.New("runtime not configured")
	}

	decoder, err := models.NewDecoder(b.config.Name)
	if err != nil {
		return nil, err
	}

	return &Model{
		Detector: detectors.NewDetector(b.runner, b.pipeline, decoder, b.config.DecodeArgs()),
		Classes:  b.config.Labels(),
		Config:   *b.config,
		Device:   b.device,
	}, nil
}

// LoadArgs are the inputs to Load.
type LoadArgs struct {
	// Config is the model configuration file (.yaml, .yml or .toml).
	Config string
	// Checkpoint is the ONNX weights file.
	Checkpoint string
	// Device is the compute device, e.g. "cuda:0".
	Device string
	// Backend is the inference runtime.
	Backend Backend
	// LibraryPath is the ONNX Runtime shared library; optional.
	LibraryPath string
}

// Load reads the configuration and creates a model bound to the device. No
// partially initialized model is ever returned.
//
// Arguments:
//   - log: Receives the load summary.
//   - args: Paths, device and backend.
//
// Returns:
//   - *Model: The loaded model; the caller must Close it.
//   - error: An error if any step fails.
func Load(log logs.Log, args LoadArgs) (*Model, error) {
	cfg, err := models.LoadConfig(args.Config)
	if err != nil {
		return nil, err
	}

	m, err := NewEngineBuilder().
		WithDevice(args.Device).
		WithModel(*cfg).
		WithRuntime(args.Backend, args.Checkpoint, args.LibraryPath).
		Build()
	if err != nil {
		return nil, errors.Wrap(err, "load model")
	}

	log.Infof("Loaded %s model %s on %s (%s backend, %d classes)",
		m.Config.Name, args.Checkpoint, m.Device, args.Backend, len(m.Classes))
	return m, nil
}
