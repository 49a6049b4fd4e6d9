package providers

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
)

// SharedLibraryEnv overrides the ONNX Runtime shared library location.
const SharedLibraryEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// ErrSharedLibraryNotFound is returned when no ONNX Runtime library can be located.
var ErrSharedLibraryNotFound = errors.New("onnxruntime shared library not found")

// GetSharedLibPath returns the bundled library path for the current platform.
//
// Returns:
//   - string: The path to the shared library, or "" if the platform is unsupported.
func GetSharedLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join("third_party", "onnxruntime.dll")
	case "darwin":
		return filepath.Join("third_party", "libonnxruntime.dylib")
	case "linux":
		if runtime.GOARCH == "arm64" {
			return filepath.Join("third_party", "onnxruntime_arm64.so")
		}
		return filepath.Join("third_party", "onnxruntime.so")
	}
	return ""
}

// ResolveSharedLibPath picks the library in order: explicit path, the
// SharedLibraryEnv variable, then the bundled platform path.
//
// Arguments:
//   - explicit: A path from the command line; may be empty.
//
// Returns:
//   - string: An existing library path.
//   - error: ErrSharedLibraryNotFound when the chosen path does not exist.
func ResolveSharedLibPath(explicit string) (string, error) {
	path := explicit
	if path == "" {
		path = os.Getenv(SharedLibraryEnv)
	}
	if path == "" {
		path = GetSharedLibPath()
	}
	if path == "" {
		return "", errors.Wrapf(ErrSharedLibraryNotFound, "no bundled library for %s/%s", runtime.GOOS, runtime.GOARCH)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", errors.Wrapf(ErrSharedLibraryNotFound, "%s (set --ort-lib or %s)", path, SharedLibraryEnv)
	}
	return path, nil
}
