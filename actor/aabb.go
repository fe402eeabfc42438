package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AABB represents an axis-aligned bounding box
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// ContainsPoint checks if a point is inside the AABB
func (a AABB) ContainsPoint(point mgl64.Vec3) bool {
	return point.X() >= a.Min.X() && point.X() <= a.Max.X() &&
		point.Y() >= a.Min.Y() && point.Y() <= a.Max.Y() &&
		point.Z() >= a.Min.Z() && point.Z() <= a.Max.Z()
}

// Overlaps checks if two AABBs overlap. Touching boxes overlap.
func (a AABB) Overlaps(other AABB) bool {
	return a.Max.X() >= other.Min.X() && a.Min.X() <= other.Max.X() &&
		a.Max.Y() >= other.Min.Y() && a.Min.Y() <= other.Max.Y() &&
		a.Max.Z() >= other.Min.Z() && a.Min.Z() <= other.Max.Z()
}

// Union returns the smallest AABB containing both boxes
func (a AABB) Union(other AABB) AABB {
	return AABB{
		Min: mgl64.Vec3{math.Min(a.Min[0], other.Min[0]), math.Min(a.Min[1], other.Min[1]), math.Min(a.Min[2], other.Min[2])},
		Max: mgl64.Vec3{math.Max(a.Max[0], other.Max[0]), math.Max(a.Max[1], other.Max[1]), math.Max(a.Max[2], other.Max[2])},
	}
}

// Transformed returns the world AABB enclosing this local box under transform
func (a AABB) Transformed(transform Transform) AABB {
	center := a.Min.Add(a.Max).Mul(0.5)
	extents := a.Max.Sub(a.Min).Mul(0.5)

	rot := transform.Rotation.Mat4().Mat3()
	var worldExtents mgl64.Vec3
	for i := 0; i < 3; i++ {
		worldExtents[i] = math.Abs(rot.At(i, 0))*extents[0] +
			math.Abs(rot.At(i, 1))*extents[1] +
			math.Abs(rot.At(i, 2))*extents[2]
	}
	worldCenter := transform.ToWorld(center)

	return AABB{Min: worldCenter.Sub(worldExtents), Max: worldCenter.Add(worldExtents)}
}

// IntersectSegment performs a slab test of the segment start->end against the box.
// It returns the entry fraction along the segment and the face normal hit.
// A segment starting inside the box reports t = 0 and a zero normal.
func (a AABB) IntersectSegment(start, end mgl64.Vec3) (float64, mgl64.Vec3, bool) {
	dir := end.Sub(start)
	tMin, tMax := 0.0, 1.0
	var normal mgl64.Vec3

	for axis := 0; axis < 3; axis++ {
		if math.Abs(dir[axis]) < 1e-12 {
			if start[axis] < a.Min[axis] || start[axis] > a.Max[axis] {
				return 0, mgl64.Vec3{}, false
			}
			continue
		}

		inv := 1.0 / dir[axis]
		t1 := (a.Min[axis] - start[axis]) * inv
		t2 := (a.Max[axis] - start[axis]) * inv
		sign := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			sign = 1.0
		}

		if t1 > tMin {
			tMin = t1
			normal = mgl64.Vec3{}
			normal[axis] = sign
		}
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return 0, mgl64.Vec3{}, false
		}
	}

	return tMin, normal, true
}
