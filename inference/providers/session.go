package providers

import (
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/batch-video/models/model"
)

var envMu sync.Mutex

// Session represents a model session from the onnxruntime.
type Session struct {
	session *ort.DynamicAdvancedSession
	inputs  []string
	outputs []string
}

// NewSessionArgs represents the arguments for creating a new ONNX session.
type NewSessionArgs struct {
	// The path to the ONNX model file.
	ModelPath string
	// The input tensor names. Only the first is fed.
	Inputs []string
	// The output tensor names, in the order the decoder expects.
	Outputs []string
	// LibraryPath is the ONNX Runtime shared library.
	LibraryPath string
	// Optimization tunes the session.
	Optimization OptimizationConfig
}

// NewSession creates a new ONNX Runtime session whose output tensors are
// allocated per run, so any input size and output shape is accepted.
//
// Order of operations:
//  1. Environment setup: loads the native library once per process.
//  2. Session options: optimization level, threading and the execution provider.
//  3. Session creation: loads the model and binds the tensor names.
//
// Arguments:
//   - provider: The provider for the session.
//   - args: The arguments for the session.
//
// Returns:
//   - *Session: The runnable session.
//   - error: An error if the session creation fails.
func NewSession(provider ExecutionProvider, args NewSessionArgs) (*Session, error) {
	if len(args.Inputs) == 0 || len(args.Outputs) == 0 {
		return nil, errors.New("session needs at least one input and one output name")
	}
	if err := InitializeEnvironment(args.LibraryPath); err != nil {
		return nil, err
	}

	options, err := OptimizedSessionOptions(args.Optimization, provider)
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(args.ModelPath, args.Inputs, args.Outputs, options)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating ORT session for %s", args.ModelPath)
	}

	return &Session{
		session: session,
		inputs:  args.Inputs,
		outputs: args.Outputs,
	}, nil
}

// InitializeEnvironment points ONNX Runtime at the shared library and
// initializes it. Subsequent calls are no-ops.
func InitializeEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	path, err := ResolveSharedLibPath(libraryPath)
	if err != nil {
		return err
	}
	ort.SetSharedLibraryPath(path)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "error initializing ORT environment")
	}
	return nil
}

// Run feeds one float32 tensor to the first input and copies every output out
// of the runtime.
//
// Arguments:
//   - data: The input tensor values.
//   - shape: The input tensor shape, e.g. [1, 3, 640, 640].
//
// Returns:
//   - []model.Output: One entry per output name, in order.
//   - error: An error if inference fails or an output is not float32.
func (s *Session) Run(data []float32, shape []int64) ([]model.Output, error) {
	input, err := ort.NewTensor(ort.NewShape(shape...), data)
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	defer input.Destroy()

	values := make([]ort.Value, len(s.outputs))
	if err := s.session.Run([]ort.Value{input}, values); err != nil {
		return nil, errors.Wrap(err, "error running ORT session")
	}
	defer func() {
		for _, v := range values {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	outputs := make([]model.Output, len(values))
	for i, v := range values {
		tensor, ok := v.(*ort.Tensor[float32])
		if !ok {
			return nil, errors.Errorf("output %q is %T, expected a float32 tensor", s.outputs[i], v)
		}
		outputs[i] = model.Output{
			Name:  s.outputs[i],
			Shape: append([]int64(nil), tensor.GetShape()...),
			Data:  append([]float32(nil), tensor.GetData()...),
		}
	}
	return outputs, nil
}

// Close releases the resources associated with the Session.
func (s *Session) Close() error {
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	if err != nil {
		return errors.Wrap(err, "error destroying ORT session")
	}
	return nil
}
