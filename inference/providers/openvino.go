package providers

import (
	"strconv"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	// OpenVINOProviderBackend uses Intel OpenVINO for inference optimization.
	OpenVINOProviderBackend ProviderBackend = "openvino"
)

// OpenVINOProvider implements the ExecutionProvider interface.
type OpenVINOProvider struct {
	options OpenVINOOptions
}

// OpenVINOOptions contains arguments for the OpenVINO provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type OpenVINOOptions struct {
	// Overrides the accelerator hardware type with these values at runtime (CPU, GPU, NPU).
	// If this option is not explicitly set, default hardware specified during build is used.
	DeviceType string `json:"deviceType"           yaml:"deviceType"`
	// FP32, FP16 or ACCURACY. Empty leaves the per-device default.
	Precision string `json:"precision"            yaml:"precision"`
	// Overrides the accelerator default value of number of threads with this value at runtime.
	NumOfThreads int `json:"numOfThreads"         yaml:"numOfThreads"`
	// This option enables rewriting dynamic shaped models to static shape at runtime and execute.
	DisableDynamicShapes bool `json:"disableDynamicShapes" yaml:"disableDynamicShapes"`
}

// isProviderOptions is a marker function to ensure the options are valid.
func (OpenVINOOptions) isProviderOptions() {}

// Backend returns the backend of the OpenVINO provider.
func (p *OpenVINOProvider) Backend() ProviderBackend {
	return OpenVINOProviderBackend
}

// Options returns the options of the OpenVINO provider.
func (p *OpenVINOProvider) Options() ProviderOptions {
	return p.options
}

// Append registers OpenVINO on the session options.
func (p *OpenVINOProvider) Append(options *ort.SessionOptions) error {
	config := map[string]string{
		"disable_dynamic_shapes": strconv.FormatBool(p.options.DisableDynamicShapes),
	}
	if p.options.DeviceType != "" {
		config["device_type"] = p.options.DeviceType
	}
	if p.options.Precision != "" {
		config["precision"] = p.options.Precision
	}
	if p.options.NumOfThreads > 0 {
		config["num_of_threads"] = strconv.Itoa(p.options.NumOfThreads)
	}
	if err := options.AppendExecutionProviderOpenVINO(config); err != nil {
		return errors.Wrapf(ErrDeviceUnavailable, "openvino: %v", err)
	}
	return nil
}

// NewOpenVINOProvider creates a new OpenVINO provider.
func NewOpenVINOProvider(args OpenVINOOptions) *OpenVINOProvider {
	return &OpenVINOProvider{options: args}
}
