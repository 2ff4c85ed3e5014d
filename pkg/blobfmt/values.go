package blobfmt

import "math"

// RGB is an 8-bit colour. On disk each channel is a uint32 holding the value
// in its top byte.
type RGB struct {
	R, G, B uint8
}

// Point is a position in canvas units.
type Point struct {
	X, Y float64
}

// BBox is an integer bounding box.
type BBox struct {
	X1, Y1, X2, Y2 int32
}

// scaled converts a fixed-point value for storage. Rounding keeps values
// that came from the same encoding stable across decode and encode.
func scaled(v, factor float64) int32 {
	return int32(math.Round(v * factor))
}

func clamp[T int32 | float64](v, lo, hi T) T {
	return min(max(v, lo), hi)
}
