package providers

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	// CoreMLProviderBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
)

// CoreML provider flags, see coreml_provider_factory.h.
const (
	coreMLFlagUseCPUOnly           uint32 = 0x001
	coreMLFlagOnlyAllowStaticShape uint32 = 0x008
)

// CoreMLProvider implements the ExecutionProvider interface.
type CoreMLProvider struct {
	options CoreMLOptions
}

// CoreMLOptions contains arguments for the CoreML provider.
// See: https://onnxruntime.ai/docs/execution-providers/CoreML-ExecutionProvider.html
type CoreMLOptions struct {
	// Limit CoreML to running on CPU only.
	CPUOnly bool `json:"cpuOnly"                  yaml:"cpuOnly"`
	// Only allow the CoreML EP to take nodes with inputs that have static shapes.
	RequireStaticInputShapes bool `json:"requireStaticInputShapes" yaml:"requireStaticInputShapes"`
}

func (CoreMLOptions) isProviderOptions() {}

func (o CoreMLOptions) flags() uint32 {
	var flags uint32
	if o.CPUOnly {
		flags |= coreMLFlagUseCPUOnly
	}
	if o.RequireStaticInputShapes {
		flags |= coreMLFlagOnlyAllowStaticShape
	}
	return flags
}

// Backend returns the backend of the CoreML provider.
func (p *CoreMLProvider) Backend() ProviderBackend {
	return CoreMLProviderBackend
}

// Options returns the options of the CoreML provider.
func (p *CoreMLProvider) Options() ProviderOptions {
	return p.options
}

// Append registers CoreML on the session options.
func (p *CoreMLProvider) Append(options *ort.SessionOptions) error {
	if err := options.AppendExecutionProviderCoreML(p.options.flags()); err != nil {
		return errors.Wrapf(ErrDeviceUnavailable, "coreml: %v", err)
	}
	return nil
}

// NewCoreMLProvider creates a new CoreML provider.
func NewCoreMLProvider(options CoreMLOptions) *CoreMLProvider {
	return &CoreMLProvider{
		options: options,
	}
}
