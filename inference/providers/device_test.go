package providers

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDevice(t *testing.T) {
	tests := []struct {
		input    string
		expected Device
		wantErr  bool
	}{
		{input: "cpu", expected: Device{Backend: CPUProviderBackend}},
		{input: "cuda", expected: Device{Backend: CUDAProviderBackend}},
		{input: "cuda:0", expected: Device{Backend: CUDAProviderBackend}},
		{input: "CUDA:3", expected: Device{Backend: CUDAProviderBackend, Index: 3}},
		{input: "gpu:1", expected: Device{Backend: CUDAProviderBackend, Index: 1}},
		{input: "openvino", expected: Device{Backend: OpenVINOProviderBackend}},
		{input: "coreml", expected: Device{Backend: CoreMLProviderBackend}},
		{input: " cpu ", expected: Device{Backend: CPUProviderBackend}},
		{input: "", wantErr: true},
		{input: "tpu", wantErr: true},
		{input: "cuda:x", wantErr: true},
		{input: "cuda:-1", wantErr: true},
		{input: "cpu:0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := ParseDevice(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrDeviceUnavailable))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}

func TestDevice_String(t *testing.T) {
	assert.Equal(t, "cuda:2", Device{Backend: CUDAProviderBackend, Index: 2}.String())
	assert.Equal(t, "cpu", Device{Backend: CPUProviderBackend}.String())
}

func TestDevice_Provider(t *testing.T) {
	for _, backend := range []ProviderBackend{
		CPUProviderBackend,
		CUDAProviderBackend,
		OpenVINOProviderBackend,
		CoreMLProviderBackend,
	} {
		p, err := Device{Backend: backend, Index: 1}.Provider()
		require.NoError(t, err)
		assert.Equal(t, backend, p.Backend())
	}

	p, err := Device{Backend: CUDAProviderBackend, Index: 1}.Provider()
	require.NoError(t, err)
	opts, ok := p.Options().(CUDAOptions)
	require.True(t, ok)
	assert.Equal(t, 1, opts.DeviceID)

	_, err = Device{Backend: "tpu"}.Provider()
	assert.True(t, errors.Is(err, ErrDeviceUnavailable))
}

func TestNewProvider_Unsupported(t *testing.T) {
	_, err := NewProvider(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider options type")
	assert.Contains(t, fmt.Sprintf("%+v", err), "providers.NewProvider", "errors carry a stack trace")
}

func TestCoreMLFlags(t *testing.T) {
	assert.Equal(t, uint32(0), CoreMLOptions{}.flags())
	assert.Equal(t, coreMLFlagUseCPUOnly|coreMLFlagOnlyAllowStaticShape,
		CoreMLOptions{CPUOnly: true, RequireStaticInputShapes: true}.flags())
}

func TestResolveSharedLibPath(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "libonnxruntime.so")
	require.NoError(t, os.WriteFile(lib, []byte{0}, 0o644))

	t.Run("explicit wins", func(t *testing.T) {
		t.Setenv(SharedLibraryEnv, filepath.Join(dir, "other.so"))
		path, err := ResolveSharedLibPath(lib)
		require.NoError(t, err)
		assert.Equal(t, lib, path)
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv(SharedLibraryEnv, lib)
		path, err := ResolveSharedLibPath("")
		require.NoError(t, err)
		assert.Equal(t, lib, path)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := ResolveSharedLibPath(filepath.Join(dir, "nope.so"))
		assert.True(t, errors.Is(err, ErrSharedLibraryNotFound))
	})

	t.Run("directory", func(t *testing.T) {
		_, err := ResolveSharedLibPath(dir)
		assert.True(t, errors.Is(err, ErrSharedLibraryNotFound))
	})
}
