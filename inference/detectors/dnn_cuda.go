//go:build cuda

package detectors

import "gocv.io/x/gocv/cuda"

func cudaDevices() int {
	return cuda.GetCudaEnabledDeviceCount()
}
