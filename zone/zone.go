// Package zone - Danger zone geometry and containment evaluation.
package zone

import (
	"image"

	"github.com/pkg/errors"
)

// marginRatio leaves 25% of each dimension on every side, so the default
// zone covers the centered middle 50% of the frame.
const marginRatio = 0.25

// DangerZone is a simple closed polygon within which a detection is treated
// as a threat. It is computed once from the first captured frame and is
// immutable afterwards.
type DangerZone struct {
	vertices []image.Point
}

// New builds a zone from an ordered vertex sequence. The polygon must have
// at least three vertices, nonzero area, and no self-intersections.
func New(vertices []image.Point) (*DangerZone, error) {
	if len(vertices) < 3 {
		return nil, errors.Errorf("polygon needs at least 3 vertices, got %d", len(vertices))
	}
	if twiceArea(vertices) == 0 {
		return nil, errors.New("polygon is degenerate (zero area)")
	}
	if selfIntersects(vertices) {
		return nil, errors.New("polygon must be simple (non-self-intersecting)")
	}
	vs := make([]image.Point, len(vertices))
	copy(vs, vertices)
	return &DangerZone{vertices: vs}, nil
}

// FromFrame builds the default centered rectangle for a frame of the given
// dimensions.
func FromFrame(width, height int) (*DangerZone, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid frame dimensions %dx%d", width, height)
	}
	mx := int(float64(width) * marginRatio)
	my := int(float64(height) * marginRatio)
	return New([]image.Point{
		{X: mx, Y: my},
		{X: width - mx, Y: my},
		{X: width - mx, Y: height - my},
		{X: mx, Y: height - my},
	})
}

// Vertices returns a copy of the polygon outline for annotation.
func (z *DangerZone) Vertices() []image.Point {
	if z == nil {
		return nil
	}
	vs := make([]image.Point, len(z.vertices))
	copy(vs, z.vertices)
	return vs
}

// Contains reports whether the point lies inside the zone. Points exactly on
// the boundary count as inside. A nil zone contains nothing: before the zone
// has been sized from a frame, every containment check is false.
func (z *DangerZone) Contains(p image.Point) bool {
	if z == nil || len(z.vertices) == 0 {
		return false
	}
	n := len(z.vertices)

	for i := 0; i < n; i++ {
		if onSegment(z.vertices[i], z.vertices[(i+1)%n], p) {
			return true
		}
	}

	// Ray casting: count edge crossings of a horizontal ray to the right.
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := z.vertices[i], z.vertices[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			crossX := float64(b.X-a.X)*float64(p.Y-a.Y)/float64(b.Y-a.Y) + float64(a.X)
			if float64(p.X) < crossX {
				inside = !inside
			}
		}
	}
	return inside
}

// twiceArea returns twice the signed shoelace area.
func twiceArea(vs []image.Point) int {
	sum := 0
	n := len(vs)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += vs[i].X*vs[j].Y - vs[j].X*vs[i].Y
	}
	return sum
}

// cross returns the z-component of (b-a) x (c-a).
func cross(a, b, c image.Point) int {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// onSegment reports whether p lies on the closed segment ab.
func onSegment(a, b, p image.Point) bool {
	if cross(a, b, p) != 0 {
		return false
	}
	return min(a.X, b.X) <= p.X && p.X <= max(a.X, b.X) &&
		min(a.Y, b.Y) <= p.Y && p.Y <= max(a.Y, b.Y)
}

// segmentsIntersect reports whether closed segments ab and cd intersect.
func segmentsIntersect(a, b, c, d image.Point) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(c, d, a)) ||
		(d2 == 0 && onSegment(c, d, b)) ||
		(d3 == 0 && onSegment(a, b, c)) ||
		(d4 == 0 && onSegment(a, b, d))
}

// selfIntersects checks every pair of non-adjacent edges for intersection.
func selfIntersects(vs []image.Point) bool {
	n := len(vs)
	for i := 0; i < n; i++ {
		a, b := vs[i], vs[(i+1)%n]
		for j := i + 1; j < n; j++ {
			// Skip edges sharing a vertex with edge i.
			if j == i || (j+1)%n == i || j == (i+1)%n {
				continue
			}
			c, d := vs[j], vs[(j+1)%n]
			if segmentsIntersect(a, b, c, d) {
				return true
			}
		}
	}
	return false
}
