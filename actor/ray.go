package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// RayCast intersects a local segment with a shape. Shapes without an exact
// routine fall back to their local bounding box.
func RayCast(shape ShapeInterface, start, end mgl64.Vec3) (float64, mgl64.Vec3, bool) {
	if caster, ok := shape.(RayCaster); ok {
		return caster.RayCast(start, end)
	}
	return shape.LocalAABB().IntersectSegment(start, end)
}

// RayCast intersects each child in its own frame and keeps the nearest hit
func (c *Compound) RayCast(start, end mgl64.Vec3) (float64, mgl64.Vec3, bool) {
	best := math.Inf(1)
	var bestNormal mgl64.Vec3
	for _, child := range c.Children {
		t, normal, ok := RayCast(child.Shape, child.Offset.ToLocal(start), child.Offset.ToLocal(end))
		if ok && t < best {
			best = t
			bestNormal = child.Offset.Rotation.Rotate(normal)
		}
	}
	if math.IsInf(best, 1) {
		return 0, mgl64.Vec3{}, false
	}
	return best, bestNormal, true
}

// RayCast intersects a world segment with the body shape.
// The returned normal is in world space.
func (rb *RigidBody) RayCast(start, end mgl64.Vec3) (float64, mgl64.Vec3, bool) {
	t, normal, ok := RayCast(rb.Shape, rb.ToLocal(start), rb.ToLocal(end))
	if !ok {
		return 0, mgl64.Vec3{}, false
	}
	return t, rb.Transform.Rotation.Rotate(normal), true
}
