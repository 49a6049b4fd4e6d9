package providers

import (
	"strconv"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	// CUDAProviderBackend uses NVIDIA CUDA for inference optimization.
	CUDAProviderBackend ProviderBackend = "cuda"
)

// CUDAProvider implements the ExecutionProvider interface.
type CUDAProvider struct {
	options CUDAOptions
}

// CUDAOptions contains arguments for the CUDA provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/CUDA-ExecutionProvider.html#configuration-options
type CUDAOptions struct {
	// The device ID.
	DeviceID int `json:"deviceID"            yaml:"deviceID"`
	// The size limit of the device memory arena in bytes. Zero leaves the runtime default.
	GPUMemLimit int64 `json:"gpuMemLimit"         yaml:"gpuMemLimit"`
	// The strategy for extending the device memory arena.
	// 0: kNextPowerOfTwo - subsequent extensions extend by larger amounts (multiplied by powers of
	// two)
	// 1: kSameAsRequested - extend by the requested amount
	ArenaExtendStrategy int `json:"arenaExtendStrategy" yaml:"arenaExtendStrategy"`
	// The type of search done for cuDNN convolution algorithms.
	// 0: EXHAUSTIVE - expensive exhaustive benchmarking using cudnnFindConvolutionForwardAlgorithmEx
	// 1: HEURISTIC - lightweight heuristic based search using cudnnGetConvolutionForwardAlgorithm_v7
	// 2: DEFAULT - default algorithm using CUDNN_CONVOLUTION_FWD_ALGO_IMPLICIT_PRECOMP_GEMM
	CudnnConvAlgoSearch int `json:"cudnnConvAlgoSearch" yaml:"cudnnConvAlgoSearch"`
	// Whether to do copies in the default stream or use separate streams.
	DoCopyInDefaultStream bool `json:"doCopyInDefaultStream" yaml:"doCopyInDefaultStream"`
	// TF32 math mode on Ampere and later GPUs.
	UseTF32 int `json:"useTF32"             yaml:"useTF32"`
}

// ToNativeProviderOptions converts the CUDA options to a CUDA provider options.
// The caller must destroy the returned options.
func (o *CUDAOptions) ToNativeProviderOptions() (*ort.CUDAProviderOptions, error) {
	opts, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return nil, err
	}

	values := map[string]string{
		"device_id":                 strconv.Itoa(o.DeviceID),
		"arena_extend_strategy":     arenaStrategy(o.ArenaExtendStrategy),
		"cudnn_conv_algo_search":    convAlgoSearch(o.CudnnConvAlgoSearch),
		"do_copy_in_default_stream": boolFlag(o.DoCopyInDefaultStream),
		"use_tf32":                  strconv.Itoa(o.UseTF32),
	}
	if o.GPUMemLimit > 0 {
		values["gpu_mem_limit"] = strconv.FormatInt(o.GPUMemLimit, 10)
	}
	if err := opts.Update(values); err != nil {
		opts.Destroy()
		return nil, err
	}

	return opts, nil
}

func arenaStrategy(v int) string {
	if v == 1 {
		return "kSameAsRequested"
	}
	return "kNextPowerOfTwo"
}

func convAlgoSearch(v int) string {
	switch v {
	case 1:
		return "HEURISTIC"
	case 2:
		return "DEFAULT"
	default:
		return "EXHAUSTIVE"
	}
}

func boolFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// isProviderOptions is a marker function to ensure the options are valid.
func (CUDAOptions) isProviderOptions() {}

// Backend returns the backend of the CUDA provider.
func (p *CUDAProvider) Backend() ProviderBackend {
	return CUDAProviderBackend
}

// Options returns the options of the CUDA provider.
func (p *CUDAProvider) Options() ProviderOptions {
	return p.options
}

// Append registers CUDA on the session options.
func (p *CUDAProvider) Append(options *ort.SessionOptions) error {
	cuda, err := p.options.ToNativeProviderOptions()
	if err != nil {
		return errors.Wrap(ErrDeviceUnavailable, err.Error())
	}
	defer cuda.Destroy()

	if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
		return errors.Wrapf(ErrDeviceUnavailable, "cuda:%d: %v", p.options.DeviceID, err)
	}
	return nil
}

// NewCUDAProvider creates a new CUDA provider.
func NewCUDAProvider(args CUDAOptions) *CUDAProvider {
	return &CUDAProvider{
		options: args,
	}
}
