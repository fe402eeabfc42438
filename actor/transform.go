package actor

import "github.com/go-gl/mathgl/mgl64"

// Transform represents a position and orientation in 3D space
type Transform struct {
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	InverseRotation mgl64.Quat
}

// NewTransform creates an identity transform
func NewTransform() Transform {
	return Transform{
		Position:        mgl64.Vec3{0, 0, 0},
		Rotation:        mgl64.QuatIdent(),
		InverseRotation: mgl64.QuatIdent(),
	}
}

// NewTransformAt creates a transform at the given position and rotation
func NewTransformAt(position mgl64.Vec3, rotation mgl64.Quat) Transform {
	t := Transform{Position: position}
	t.SetRotation(rotation)
	return t
}

// SetRotation normalizes and stores the rotation along with its inverse.
// A zero quaternion is treated as identity.
func (t *Transform) SetRotation(rotation mgl64.Quat) {
	if rotation.W == 0 && rotation.V.LenSqr() == 0 {
		rotation = mgl64.QuatIdent()
	}
	t.Rotation = rotation.Normalize()
	t.InverseRotation = t.Rotation.Conjugate()
}

// ToWorld transforms a point from local space into world space
func (t Transform) ToWorld(local mgl64.Vec3) mgl64.Vec3 {
	return t.Position.Add(t.Rotation.Rotate(local))
}

// ToLocal transforms a world space point into local space
func (t Transform) ToLocal(world mgl64.Vec3) mgl64.Vec3 {
	return t.InverseRotation.Rotate(world.Sub(t.Position))
}

// Compose returns the world transform of a child expressed relative to t
func (t Transform) Compose(child Transform) Transform {
	return NewTransformAt(t.ToWorld(child.Position), t.Rotation.Mul(child.Rotation))
}
