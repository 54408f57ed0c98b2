// Package mathx holds the small amount of transform math the build pipeline relies on.
//
// Matrices follow the row-vector convention used by most DCC hosts: a point is
// transformed as p * M, translation lives in the last row and a child world matrix
// is local * parentWorld.
package mathx

import "math"

// Epsilon is the tolerance used by the approximate comparisons in this package.
const Epsilon = 1e-6

// Vector3 is a three component vector. It marshals to a JSON array.
type Vector3 [3]float64

var (
	XAxis = Vector3{1, 0, 0}
	YAxis = Vector3{0, 1, 0}
	ZAxis = Vector3{0, 0, 1}
	One   = Vector3{1, 1, 1}
)

// Vec3 builds a Vector3.
func Vec3(x, y, z float64) Vector3 {
	return Vector3{x, y, z}
}

// Vec3FromSlice converts a loosely typed slice (as decoded from JSON) to a Vector3.
// Missing components fall back to def.
func Vec3FromSlice(values []float64, def Vector3) Vector3 {
	if len(values) < 3 {
		return def
	}
	return Vector3{values[0], values[1], values[2]}
}

func (v Vector3) X() float64 { return v[0] }
func (v Vector3) Y() float64 { return v[1] }
func (v Vector3) Z() float64 { return v[2] }

// Slice returns the vector as a freshly allocated slice.
func (v Vector3) Slice() []float64 {
	return []float64{v[0], v[1], v[2]}
}

func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

func (v Vector3) Scale(s float64) Vector3 {
	return Vector3{v[0] * s, v[1] * s, v[2] * s}
}

func (v Vector3) Negate() Vector3 {
	return Vector3{-v[0], -v[1], -v[2]}
}

func (v Vector3) Dot(o Vector3) float64 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

func (v Vector3) Cross(o Vector3) Vector3 {
	return Vector3{
		v[1]*o[2] - v[2]*o[1],
		v[2]*o[0] - v[0]*o[2],
		v[0]*o[1] - v[1]*o[0],
	}
}

func (v Vector3) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalize returns the unit vector, or the zero vector when v has no length.
func (v Vector3) Normalize() Vector3 {
	l := v.Length()
	if l < Epsilon {
		return Vector3{}
	}
	return v.Scale(1 / l)
}

// IsZero reports whether every component is within Epsilon of zero.
func (v Vector3) IsZero() bool {
	return v.ApproxEqual(Vector3{}, Epsilon)
}

// ApproxEqual compares component-wise with the given tolerance.
func (v Vector3) ApproxEqual(o Vector3, tol float64) bool {
	for i := 0; i < 3; i++ {
		if math.Abs(v[i]-o[i]) > tol {
			return false
		}
	}
	return true
}

// MulPoint transforms v as a point (w=1).
func (v Vector3) MulPoint(m Matrix) Vector3 {
	return Vector3{
		v[0]*m[0] + v[1]*m[4] + v[2]*m[8] + m[12],
		v[0]*m[1] + v[1]*m[5] + v[2]*m[9] + m[13],
		v[0]*m[2] + v[1]*m[6] + v[2]*m[10] + m[14],
	}
}

// MulDirection transforms v as a direction (w=0).
func (v Vector3) MulDirection(m Matrix) Vector3 {
	return Vector3{
		v[0]*m[0] + v[1]*m[4] + v[2]*m[8],
		v[0]*m[1] + v[1]*m[5] + v[2]*m[9],
		v[0]*m[2] + v[1]*m[6] + v[2]*m[10],
	}
}

// Mirror reflects v across the plane whose normal is the given axis index (0=YZ plane).
func (v Vector3) Mirror(axis int) Vector3 {
	out := v
	out[axis] = -out[axis]
	return out
}

// Plane is an infinite plane through Point with unit Normal.
type Plane struct {
	Normal Vector3
	Point  Vector3
}

// PlaneFromPoints builds the plane through three points. ok is false for colinear input.
func PlaneFromPoints(a, b, c Vector3) (Plane, bool) {
	n := b.Sub(a).Cross(c.Sub(a)).Normalize()
	if n.IsZero() {
		return Plane{}, false
	}
	return Plane{Normal: n, Point: a}, true
}

// Project returns the closest point on the plane to p.
func (p Plane) Project(v Vector3) Vector3 {
	n := p.Normal.Normalize()
	d := v.Sub(p.Point).Dot(n)
	return v.Sub(n.Scale(d))
}

// Distance is the signed distance of v from the plane.
func (p Plane) Distance(v Vector3) float64 {
	return v.Sub(p.Point).Dot(p.Normal.Normalize())
}

func DegToRad(d float64) float64 { return d * math.Pi / 180 }
func RadToDeg(r float64) float64 { return r * 180 / math.Pi }
