// Package geom provides the 2D primitives shared by the detection and
// tracking layers: points, axis-aligned boxes, and intersection-over-union.
package geom

import "math"

// Point is a 2D position in the engine coordinate frame (y grows upward).
type Point struct {
	X float64
	Y float64
}

// Dist returns the Euclidean distance between two points.
func Dist(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Box is an axis-aligned bounding box. X and Y are the minimum corner in
// the engine coordinate frame; W and H are always non-negative.
type Box struct {
	X float64
	Y float64
	W float64
	H float64
}

// MaxX returns the maximum x coordinate of the box.
func (b Box) MaxX() float64 { return b.X + b.W }

// MaxY returns the maximum y coordinate of the box.
func (b Box) MaxY() float64 { return b.Y + b.H }

// Area returns the box area.
func (b Box) Area() float64 { return b.W * b.H }

// Center returns the box center point.
func (b Box) Center() Point {
	return Point{X: b.X + b.W/2, Y: b.Y + b.H/2}
}

// IoU returns the intersection-over-union of two boxes in [0, 1].
// Disjoint or degenerate (zero-area) boxes yield 0.
func IoU(a, b Box) float64 {
	ix := math.Min(a.MaxX(), b.MaxX()) - math.Max(a.X, b.X)
	if ix <= 0 {
		return 0
	}
	iy := math.Min(a.MaxY(), b.MaxY()) - math.Max(a.Y, b.Y)
	if iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
