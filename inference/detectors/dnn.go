package detectors

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/batch-video/inference/providers"
	"github.com/nvr-ai/batch-video/models/model"
)

// cudaDeviceCount is the number of CUDA devices OpenCV can use.
var cudaDeviceCount = cudaDevices

// DNNRunner runs an ONNX graph through OpenCV's DNN module instead of ONNX Runtime.
type DNNRunner struct {
	mu      sync.Mutex
	net     gocv.Net
	outputs []string
	closed  bool
}

// NewDNNRunner loads the model with gocv.ReadNet and selects the backend for the device.
//
// Arguments:
//   - modelPath: The ONNX model file.
//   - outputs: The output layer names, in the order the decoder expects.
//   - device: The compute device.
//
// Returns:
//   - *DNNRunner: The runner.
//   - error: An error if the file is missing, the device is unavailable or
//     OpenCV cannot parse the file.
func NewDNNRunner(modelPath string, outputs []string, device providers.Device) (*DNNRunner, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, errors.Wrap(err, "model file not found")
	}
	if len(outputs) == 0 {
		return nil, errors.New("at least one output name is required")
	}
	if device.Backend == providers.CUDAProviderBackend {
		if n := cudaDeviceCount(); device.Index >= n {
			return nil, errors.Wrapf(providers.ErrDeviceUnavailable,
				"opencv: %s requested but %d CUDA device(s) are usable", device, n)
		}
	}

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		net.Close()
		return nil, errors.Errorf("failed to load ONNX model: %s", modelPath)
	}

	switch device.Backend {
	case providers.CUDAProviderBackend:
		net.SetPreferableBackend(gocv.NetBackendCUDA)
		net.SetPreferableTarget(gocv.NetTargetCUDA)
	case providers.OpenVINOProviderBackend:
		net.SetPreferableBackend(gocv.NetBackendOpenVINO)
		net.SetPreferableTarget(gocv.NetTargetCPU)
	default:
		net.SetPreferableBackend(gocv.NetBackendOpenCV)
		net.SetPreferableTarget(gocv.NetTargetCPU)
	}

	return &DNNRunner{net: net, outputs: outputs}, nil
}

// Run feeds the tensor as the network input blob and copies out every output layer.
func (r *DNNRunner) Run(data []float32, shape []int64) ([]model.Output, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errors.New("runner is closed")
	}

	dims := make([]int, len(shape))
	total := 1
	for i, d := range shape {
		dims[i] = int(d)
		total *= int(d)
	}
	if total != len(data) {
		return nil, errors.Errorf("shape %v holds %d values, got %d", shape, total, len(data))
	}

	blob := gocv.NewMatWithSizes(dims, gocv.MatTypeCV32F)
	defer blob.Close()
	buf, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "input blob")
	}
	copy(buf, data)

	r.net.SetInput(blob, "")
	mats := r.net.ForwardLayers(r.outputs)
	defer func() {
		for _, m := range mats {
			m.Close()
		}
	}()

	outputs := make([]model.Output, len(mats))
	for i, m := range mats {
		values, err := m.DataPtrFloat32()
		if err != nil {
			return nil, errors.Wrapf(err, "output %q", r.outputs[i])
		}
		sizes := m.Size()
		outShape := make([]int64, len(sizes))
		for j, s := range sizes {
			outShape[j] = int64(s)
		}
		outputs[i] = model.Output{
			Name:  r.outputs[i],
			Shape: outShape,
			Data:  append([]float32(nil), values...),
		}
	}
	return outputs, nil
}

// Close releases the network.
func (r *DNNRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.net.Close()
}
