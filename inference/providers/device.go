package providers

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrDeviceUnavailable is returned when a device string cannot be parsed or the
// runtime refuses the matching execution provider.
var ErrDeviceUnavailable = errors.New("device unavailable")

// Device is a parsed compute device such as "cuda:0" or "cpu".
type Device struct {
	Backend ProviderBackend
	// Index is the accelerator ordinal; only meaningful for CUDA.
	Index int
}

// String returns the canonical form of the device.
func (d Device) String() string {
	if d.Backend == CUDAProviderBackend {
		return string(d.Backend) + ":" + strconv.Itoa(d.Index)
	}
	return string(d.Backend)
}

// ParseDevice parses "cpu", "cuda", "cuda:N", "openvino" and "coreml".
// "gpu" is accepted as an alias of "cuda".
func ParseDevice(s string) (Device, error) {
	name, index, hasIndex := strings.Cut(strings.ToLower(strings.TrimSpace(s)), ":")
	d := Device{}

	switch name {
	case "cpu":
		d.Backend = CPUProviderBackend
	case "cuda", "gpu":
		d.Backend = CUDAProviderBackend
	case "openvino":
		d.Backend = OpenVINOProviderBackend
	case "coreml", "mps":
		d.Backend = CoreMLProviderBackend
	default:
		return Device{}, errors.Wrapf(ErrDeviceUnavailable, "unknown device %q", s)
	}

	if hasIndex {
		if d.Backend != CUDAProviderBackend {
			return Device{}, errors.Wrapf(ErrDeviceUnavailable, "device %q does not take an index", s)
		}
		n, err := strconv.Atoi(index)
		if err != nil || n < 0 {
			return Device{}, errors.Wrapf(ErrDeviceUnavailable, "invalid device index in %q", s)
		}
		d.Index = n
	}

	return d, nil
}

// Provider returns the execution provider for the device with default options.
func (d Device) Provider() (ExecutionProvider, error) {
	switch d.Backend {
	case CPUProviderBackend:
		return NewProvider(CPUOptions{})
	case CUDAProviderBackend:
		return NewProvider(CUDAOptions{DeviceID: d.Index, DoCopyInDefaultStream: true})
	case OpenVINOProviderBackend:
		return NewProvider(OpenVINOOptions{})
	case CoreMLProviderBackend:
		return NewProvider(CoreMLOptions{})
	default:
		return nil, errors.Wrapf(ErrDeviceUnavailable, "%q", d.Backend)
	}
}
