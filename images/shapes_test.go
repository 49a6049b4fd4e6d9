package images

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIoU_Correctness validates the IoU implementation against known test cases
func TestIoU_Correctness(t *testing.T) {
	tests := []struct {
		name     string
		r1       Rect
		r2       Rect
		expected float32
	}{
		{
			name:     "Identical rectangles",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{0, 0, 100, 100},
			expected: 1.0,
		},
		{
			name:     "No overlap",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{200, 200, 300, 300},
			expected: 0.0,
		},
		{
			name:     "Touching edges",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{100, 0, 200, 100},
			expected: 0.0,
		},
		{
			name:     "Half overlap",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{50, 50, 150, 150},
			expected: 0.142857, // 2500 / 17500
		},
		{
			name:     "One inside other",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{25, 25, 75, 75},
			expected: 0.25,
		},
		{
			name:     "Fractional coordinates",
			r1:       Rect{0, 0, 10.5, 10},
			r2:       Rect{0, 0, 10.5, 5},
			expected: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateIoU(tt.r1, tt.r2)
			assert.InDelta(t, tt.expected, result, 0.001)

			// IoU(A, B) must equal IoU(B, A).
			assert.InDelta(t, result, CalculateIoU(tt.r2, tt.r1), 0.0001)
		})
	}
}

// TestIoU_EdgeCases tests degenerate boxes never produce values outside [0, 1].
func TestIoU_EdgeCases(t *testing.T) {
	tests := []struct {
		name string
		r1   Rect
		r2   Rect
	}{
		{"Zero area rectangle 1", Rect{0, 0, 0, 0}, Rect{0, 0, 100, 100}},
		{"Zero area rectangle 2", Rect{0, 0, 100, 100}, Rect{50, 50, 50, 50}},
		{"Both zero area", Rect{0, 0, 0, 0}, Rect{10, 10, 10, 10}},
		{"Inverted", Rect{100, 100, 0, 0}, Rect{0, 0, 100, 100}},
		{"Negative coordinates", Rect{-100, -100, 0, 0}, Rect{-50, -50, 50, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateIoU(tt.r1, tt.r2)
			assert.GreaterOrEqual(t, result, float32(0))
			assert.LessOrEqual(t, result, float32(1))
		})
	}
}

func TestRect_Unletterbox(t *testing.T) {
	// A 1280x720 frame letterboxed into 640x640: scale 0.5, 140px top padding.
	inNetwork := Rect{X1: 100, Y1: 190, X2: 200, Y2: 290}
	inFrame := inNetwork.Unletterbox(0.5, 0.5, 0, 140)

	assert.Equal(t, Rect{X1: 200, Y1: 100, X2: 400, Y2: 300}, inFrame)
}

func TestRect_ClampAndConvert(t *testing.T) {
	r := Rect{X1: -10, Y1: 5.7, X2: 700, Y2: 300.2}.Clamp(640, 480)

	assert.Equal(t, Rect{X1: 0, Y1: 5.7, X2: 640, Y2: 300.2}, r)
	assert.Equal(t, image.Rect(0, 5, 640, 300), r.ToRectangle())
	assert.Equal(t, RectFromCenter(320, 240, 100, 50), Rect{X1: 270, Y1: 215, X2: 370, Y2: 265})
}
