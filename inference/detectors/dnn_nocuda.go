//go:build !cuda

package detectors

// cudaDevices reports no devices when gocv is built without the cuda tag.
func cudaDevices() int {
	return 0
}
