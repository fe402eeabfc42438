// Package mathx holds the small numeric helpers shared by the collision and solver packages.
package mathx

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/exp/constraints"
)

// Clamp bounds v to [lo, hi]
func Clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ApproxEqual reports whether a and b differ by at most tolerance
func ApproxEqual[T constraints.Float](a, b, tolerance T) bool {
	return T(math.Abs(float64(a-b))) <= tolerance
}

// IsFinite reports whether every component of v is a finite number
func IsFinite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Vec12Dot is the dot product of two 12 dof vectors (linear A, angular A, linear B, angular B)
func Vec12Dot(a, b *[12]float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// VecApproxEqual reports whether every component of a and b differ by at most tolerance
func VecApproxEqual(a, b mgl64.Vec3, tolerance float64) bool {
	for i := range a {
		if !ApproxEqual(a[i], b[i], tolerance) {
			return false
		}
	}
	return true
}
