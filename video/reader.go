// Package video - reads frames from video files and encodes frame buffers back
// into video files.
package video

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrReaderClosed is returned when reading from a closed reader.
var ErrReaderClosed = errors.New("video: reader closed")

// Reader is a forward-only frame source over a video file.
type Reader struct {
	path    string
	capture *gocv.VideoCapture
	fps     float64
	count   int
	closed  bool
}

// Open opens a video file for reading.
//
// Arguments:
//   - path: The video file.
//
// Returns:
//   - *Reader: The reader; the caller must Close it.
//   - error: An error if the file cannot be opened or decoded.
func Open(path string) (*Reader, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		if capture != nil {
			capture.Close()
		}
		return nil, errors.Wrapf(err, "open video %s", path)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, errors.Errorf("open video %s: no decoder available", path)
	}

	return &Reader{
		path:    path,
		capture: capture,
		fps:     capture.Get(gocv.VideoCaptureFPS),
		count:   int(capture.Get(gocv.VideoCaptureFrameCount)),
	}, nil
}

// Path returns the file the reader was opened on.
func (r *Reader) Path() string {
	return r.path
}

// FPS returns the frame rate reported by the container.
func (r *Reader) FPS() float64 {
	return r.fps
}

// FrameCount returns the frame count reported by the container. Some
// containers only estimate it, so it is used for progress reporting only.
func (r *Reader) FrameCount() int {
	return r.count
}

// Read decodes the next frame into frame. It returns false at the end of the
// stream or once the reader is closed.
func (r *Reader) Read(frame *gocv.Mat) bool {
	if r.closed {
		return false
	}
	if ok := r.capture.Read(frame); !ok {
		return false
	}
	return !frame.Empty()
}

// Err reports whether the reader was closed.
func (r *Reader) Err() error {
	if r.closed {
		return ErrReaderClosed
	}
	return nil
}

// Close releases the decoder. Closing twice is a no-op.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.capture.Close()
}
