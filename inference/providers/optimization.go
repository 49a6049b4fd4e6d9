package providers

import (
	"runtime"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// OptimizationConfig contains ONNX Runtime session tuning.
type OptimizationConfig struct {
	// GraphOptimizationLevel controls the level of graph optimization
	GraphOptimizationLevel ort.GraphOptimizationLevel `json:"graph_optimization_level"`

	// ExecutionMode controls sequential vs parallel execution
	ExecutionMode ort.ExecutionMode `json:"execution_mode"`

	// IntraOpNumThreads sets threads for parallelizing ops
	IntraOpNumThreads int `json:"intra_op_num_threads"`

	// InterOpNumThreads sets threads for parallelizing independent ops
	InterOpNumThreads int `json:"inter_op_num_threads"`
}

// DefaultOptimizationConfig returns extended graph optimizations with
// sequential execution, which suits one frame at a time.
func DefaultOptimizationConfig() OptimizationConfig {
	return OptimizationConfig{
		GraphOptimizationLevel: ort.GraphOptimizationLevelEnableExtended,
		ExecutionMode:          ort.ExecutionModeSequential,
		IntraOpNumThreads:      maxInt(1, runtime.NumCPU()/2),
		InterOpNumThreads:      1,
	}
}

// OptimizedSessionOptions creates session options from the configuration and
// registers the execution provider.
//
// Arguments:
//   - config: Optimization settings.
//   - provider: The execution provider to append.
//
// Returns:
//   - *ort.SessionOptions: The options; the caller must destroy them.
//   - error: An error if the options could not be created or the provider refused.
func OptimizedSessionOptions(config OptimizationConfig, provider ExecutionProvider) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session options")
	}

	options.SetGraphOptimizationLevel(config.GraphOptimizationLevel)
	options.SetExecutionMode(config.ExecutionMode)
	options.SetIntraOpNumThreads(config.IntraOpNumThreads)
	options.SetInterOpNumThreads(config.InterOpNumThreads)

	if err := provider.Append(options); err != nil {
		options.Destroy()
		return nil, err
	}

	return options, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
