// Package images - Geometry and frame helpers shared by the detection and rendering stages.
package images

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
)

// Rect is a bounding box in pixel coordinates of the frame it was detected in.
//
// X2,Y2 are exclusive, like image.Rectangle.
type Rect struct {
	X1 float32 `json:"x1" yaml:"x1"`
	Y1 float32 `json:"y1" yaml:"y1"`
	X2 float32 `json:"x2" yaml:"x2"`
	Y2 float32 `json:"y2" yaml:"y2"`
}

// RectFromCenter builds a Rect from a center point and a size, the layout most
// YOLO style heads emit.
func RectFromCenter(cx, cy, w, h float32) Rect {
	return Rect{X1: cx - w/2, Y1: cy - h/2, X2: cx + w/2, Y2: cy + h/2}
}

// Width returns the horizontal extent of the box, or zero when inverted.
func (r Rect) Width() float32 {
	return math32.Max(0, r.X2-r.X1)
}

// Height returns the vertical extent of the box, or zero when inverted.
func (r Rect) Height() float32 {
	return math32.Max(0, r.Y2-r.Y1)
}

// Area returns the area of the box in square pixels.
func (r Rect) Area() float32 {
	return r.Width() * r.Height()
}

// Clamp restricts the box to the [0,width) x [0,height) frame.
func (r Rect) Clamp(width, height int) Rect {
	w := float32(width)
	h := float32(height)
	return Rect{
		X1: math32.Min(math32.Max(r.X1, 0), w),
		Y1: math32.Min(math32.Max(r.Y1, 0), h),
		X2: math32.Min(math32.Max(r.X2, 0), w),
		Y2: math32.Min(math32.Max(r.Y2, 0), h),
	}
}

// Unletterbox maps a box from network input space back into the source frame,
// undoing a resize by scale followed by padding of (padX, padY).
func (r Rect) Unletterbox(scaleX, scaleY, padX, padY float32) Rect {
	if scaleX == 0 || scaleY == 0 {
		return r
	}
	return Rect{
		X1: (r.X1 - padX) / scaleX,
		Y1: (r.Y1 - padY) / scaleY,
		X2: (r.X2 - padX) / scaleX,
		Y2: (r.Y2 - padY) / scaleY,
	}
}

// ToRectangle converts the box to an image.Rectangle for drawing.
//
// Fractional pixels at the edges are truncated.
func (r Rect) ToRectangle() image.Rectangle {
	return image.Rect(int(r.X1), int(r.Y1), int(r.X2), int(r.Y2)).Canon()
}

func (r Rect) String() string {
	return fmt.Sprintf("(%.1f, %.1f)-(%.1f, %.1f)", r.X1, r.Y1, r.X2, r.Y2)
}

// CalculateIoU returns the Intersection over Union of two boxes, a value
// between 0.0 (disjoint) and 1.0 (identical).
//
//	IoU = Area of Intersection / Area of Union
//
// The intersection corners are the max of the top-left corners and the min of
// the bottom-right corners. Union uses inclusion-exclusion:
// Area(A) + Area(B) - Area(A ∩ B).
//
// Example:
//
//	rect1 := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	rect2 := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//	iou := CalculateIoU(rect1, rect2) // 25 / 175 = 0.142857
func CalculateIoU(r, o Rect) float32 {
	ix1 := math32.Max(r.X1, o.X1)
	iy1 := math32.Max(r.Y1, o.Y1)
	ix2 := math32.Min(r.X2, o.X2)
	iy2 := math32.Min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}

	return interArea / unionArea
}
