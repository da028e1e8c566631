// Package images - Geometry helpers shared by the detection pipeline.
package images

import "image"

// Rect is a lightweight bounding box.
type Rect struct {
	// X2,Y2 are exclusive (like image.Rectangle).
	X1, Y1, X2, Y2 int
}

// FromImageRect converts an image.Rectangle into a Rect.
func FromImageRect(r image.Rectangle) Rect {
	r = r.Canon()
	return Rect{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// CalculateIoU computes the Intersection over Union of two boxes.
//
// Returns 0.0 when the boxes do not overlap and 1.0 when they are identical.
// Used by Non-Maximum Suppression to estimate which detections describe the
// same object.
func CalculateIoU(r, o Rect) float32 {
	// The intersection starts at the latest of the two origins and ends at
	// the earliest of the two extents.
	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	// Union(A, B) = Area(A) + Area(B) - Intersection(A, B)
	areaR := (r.X2 - r.X1) * (r.Y2 - r.Y1)
	areaO := (o.X2 - o.X1) * (o.Y2 - o.Y1)
	unionArea := areaR + areaO - interArea

	return float32(interArea) / float32(unionArea)
}
