package video

import (
	"image"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// DefaultCodec is the fourcc used for .mp4 output.
const DefaultCodec = "mp4v"

// Frames is an ordered, append-only buffer of frames. It owns the frames
// appended to it.
type Frames struct {
	mats []gocv.Mat
}

// NewFrames creates an empty buffer with room for capacity frames.
func NewFrames(capacity int) *Frames {
	if capacity < 0 {
		capacity = 0
	}
	return &Frames{mats: make([]gocv.Mat, 0, capacity)}
}

// Append takes ownership of frame.
func (f *Frames) Append(frame gocv.Mat) {
	f.mats = append(f.mats, frame)
}

// Len returns the number of buffered frames.
func (f *Frames) Len() int {
	return len(f.mats)
}

// At returns the i-th frame. The buffer keeps ownership.
func (f *Frames) At(i int) gocv.Mat {
	return f.mats[i]
}

// Size returns the dimensions of the first frame.
func (f *Frames) Size() image.Point {
	if len(f.mats) == 0 {
		return image.Point{}
	}
	return image.Pt(f.mats[0].Cols(), f.mats[0].Rows())
}

// Close releases every buffered frame and empties the buffer.
func (f *Frames) Close() {
	for i := range f.mats {
		f.mats[i].Close()
	}
	f.mats = f.mats[:0]
}

// WriteFile encodes frames into a video file at fps, creating the parent
// directories first. It does nothing for an empty buffer. The container
// carries no audio track.
//
// Arguments:
//   - path: The output file.
//   - frames: The frames to encode, all of the same size.
//   - fps: The output frame rate.
//   - codec: The fourcc; empty selects DefaultCodec.
//
// Returns:
//   - error: An error if the directory or the file cannot be written.
func WriteFile(path string, frames *Frames, fps float64, codec string) error {
	if frames == nil || frames.Len() == 0 {
		return nil
	}
	if fps <= 0 {
		return errors.Errorf("write video %s: invalid frame rate %v", path, fps)
	}
	if codec == "" {
		codec = DefaultCodec
	}

	size := frames.Size()
	for i, m := range frames.mats {
		if m.Cols() != size.X || m.Rows() != size.Y {
			return errors.Errorf("write video %s: frame %d is %dx%d, expected %dx%d",
				path, i, m.Cols(), m.Rows(), size.X, size.Y)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "write video %s", path)
	}

	writer, err := gocv.VideoWriterFile(path, codec, fps, size.X, size.Y, true)
	if err != nil {
		return errors.Wrapf(err, "write video %s", path)
	}
	if !writer.IsOpened() {
		writer.Close()
		return errors.Errorf("write video %s: codec %q unavailable", path, codec)
	}

	for i, m := range frames.mats {
		if err := writer.Write(m); err != nil {
			writer.Close()
			return errors.Wrapf(err, "write video %s: frame %d", path, i)
		}
	}
	return errors.Wrapf(writer.Close(), "close video %s", path)
}
