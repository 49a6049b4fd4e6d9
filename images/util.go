package images

import (
	"crypto/md5"
	"fmt"

	"gocv.io/x/gocv"
)

// ComputeMatChecksum generates a deterministic checksum of a frame's pixels.
//
// It is used to verify that rendering never mutates the decoded input frame.
//
// Arguments:
// - mat: The Mat to compute checksum for.
//
// Returns:
// - A hex-encoded MD5 checksum string, or "empty" for an empty Mat.
func ComputeMatChecksum(mat gocv.Mat) string {
	if mat.Empty() {
		return "empty"
	}

	hash := md5.New()
	hash.Write(mat.ToBytes())
	return fmt.Sprintf("%x", hash.Sum(nil))
}
