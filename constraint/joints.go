package constraint

import (
	"math"

	"github.com/akmonengine/impulse/actor"
	"github.com/go-gl/mathgl/mgl64"
)

var axes = [3]mgl64.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// pointRows keeps the anchors of both bodies together, one row per world axis
func pointRows(c *Constraint, rows []*Row, localA, localB mgl64.Vec3, dt float64) {
	pA := toWorld(c.BodyA, localA)
	pB := toWorld(c.BodyB, localB)
	rA := pA.Sub(center(c.BodyA))
	rB := pB.Sub(center(c.BodyB))
	positionError := pA.Sub(pB)

	for i, axis := range axes {
		row := rows[i]
		row.SetJacobian(axis, rA.Cross(axis), axis.Mul(-1), rB.Cross(axis).Mul(-1))
		row.Bias = -c.ERP / dt * positionError[i]
		row.Lower = math.Inf(-1)
		row.Upper = math.Inf(1)
	}
}

// relativeRotation is the orientation of A seen from B
func relativeRotation(a, b *actor.RigidBody) mgl64.Quat {
	return rotation(b).Conjugate().Mul(rotation(a))
}

// angularRows keeps the relative orientation of the bodies at reference, one row per world axis
func angularRows(c *Constraint, rows []*Row, reference mgl64.Quat, dt float64) {
	// world rotation from the target orientation of A to its current one
	target := rotation(c.BodyB).Mul(reference)
	errorQuat := rotation(c.BodyA).Mul(target.Conjugate())
	if errorQuat.W < 0 {
		errorQuat = errorQuat.Scale(-1)
	}
	angleError := errorQuat.V.Mul(2)

	for i, axis := range axes {
		row := rows[i]
		row.SetJacobian(mgl64.Vec3{}, axis, mgl64.Vec3{}, axis.Mul(-1))
		row.Bias = -c.ERP / dt * angleError[i]
		row.Lower = math.Inf(-1)
		row.Upper = math.Inf(1)
	}
}

// alignRows keeps the axis of A parallel to the axis of B with two rows
func alignRows(c *Constraint, rows []*Row, localAxisA, localAxisB mgl64.Vec3, dt float64) {
	axisA := rotation(c.BodyA).Rotate(localAxisA)
	axisB := rotation(c.BodyB).Rotate(localAxisB)
	t1, t2 := actor.TangentBasis(axisB)

	for i, tangent := range [2]mgl64.Vec3{t1, t2} {
		row := rows[i]
		angular := axisA.Cross(tangent)
		row.SetJacobian(mgl64.Vec3{}, angular, mgl64.Vec3{}, angular.Mul(-1))
		row.Bias = -c.ERP / dt * axisA.Dot(tangent)
		row.Lower = math.Inf(-1)
		row.Upper = math.Inf(1)
	}
}

// PointConstraint is a ball socket: both bodies share one anchor point
type PointConstraint struct {
	Constraint
	LocalA mgl64.Vec3
	LocalB mgl64.Vec3
}

// NewPointConstraint joins a and b at a world anchor. b may be nil to pin a to the world.
func NewPointConstraint(a, b *actor.RigidBody, anchor mgl64.Vec3) *PointConstraint {
	c := &PointConstraint{LocalA: toLocal(a, anchor), LocalB: toLocal(b, anchor)}
	c.init(a, b, 3)
	return c
}

func (c *PointConstraint) Update(dt float64) {
	pointRows(&c.Constraint, c.Rows, c.LocalA, c.LocalB, dt)
}

// WeldConstraint locks the relative position and orientation of two bodies
type WeldConstraint struct {
	Constraint
	LocalA   mgl64.Vec3
	LocalB   mgl64.Vec3
	Relative mgl64.Quat
}

// NewWeldConstraint welds a and b at a world anchor, keeping their current relative orientation
func NewWeldConstraint(a, b *actor.RigidBody, anchor mgl64.Vec3) *WeldConstraint {
	c := &WeldConstraint{
		LocalA:   toLocal(a, anchor),
		LocalB:   toLocal(b, anchor),
		Relative: relativeRotation(a, b),
	}
	c.init(a, b, 6)
	return c
}

func (c *WeldConstraint) Update(dt float64) {
	pointRows(&c.Constraint, c.Rows[:3], c.LocalA, c.LocalB, dt)
	angularRows(&c.Constraint, c.Rows[3:], c.Relative, dt)
}

// RevoluteConstraint lets two bodies only rotate around a shared axis through the anchor
type RevoluteConstraint struct {
	Constraint
	LocalA     mgl64.Vec3
	LocalB     mgl64.Vec3
	LocalAxisA mgl64.Vec3
	LocalAxisB mgl64.Vec3
}

// NewRevoluteConstraint joins a and b at a world anchor around a world axis
func NewRevoluteConstraint(a, b *actor.RigidBody, anchor, axis mgl64.Vec3) *RevoluteConstraint {
	c := &RevoluteConstraint{}
	c.setup(a, b, anchor, axis, 5)
	return c
}

func (c *RevoluteConstraint) setup(a, b *actor.RigidBody, anchor, axis mgl64.Vec3, rows int) {
	axis = axis.Normalize()
	c.LocalA = toLocal(a, anchor)
	c.LocalB = toLocal(b, anchor)
	c.LocalAxisA = directionToLocal(a, axis)
	c.LocalAxisB = directionToLocal(b, axis)
	c.init(a, b, rows)
}

func (c *RevoluteConstraint) Update(dt float64) {
	pointRows(&c.Constraint, c.Rows[:3], c.LocalA, c.LocalB, dt)
	alignRows(&c.Constraint, c.Rows[3:5], c.LocalAxisA, c.LocalAxisB, dt)
}

// HingeConstraint is a revolute joint whose rotation angle stays within [Lower, Upper].
// The angle is 0 when the hinge is created.
type HingeConstraint struct {
	RevoluteConstraint
	Lower float64
	Upper float64

	referenceA mgl64.Vec3
	referenceB mgl64.Vec3
}

// NewHingeConstraint joins a and b around a world axis, limited to [lower, upper] radians
func NewHingeConstraint(a, b *actor.RigidBody, anchor, axis mgl64.Vec3, lower, upper float64) *HingeConstraint {
	c := &HingeConstraint{Lower: lower, Upper: upper}
	c.setup(a, b, anchor, axis, 6)

	reference, _ := actor.TangentBasis(axis.Normalize())
	c.referenceA = directionToLocal(a, reference)
	c.referenceB = directionToLocal(b, reference)
	return c
}

// Angle is the rotation of A relative to B around the hinge axis
func (c *HingeConstraint) Angle() float64 {
	axis := rotation(c.BodyA).Rotate(c.LocalAxisA)
	referenceA := rotation(c.BodyA).Rotate(c.referenceA)
	referenceB := rotation(c.BodyB).Rotate(c.referenceB)
	return math.Atan2(axis.Dot(referenceB.Cross(referenceA)), referenceB.Dot(referenceA))
}

func (c *HingeConstraint) Update(dt float64) {
	c.RevoluteConstraint.Update(dt)

	limit := c.Rows[5]
	angle := c.Angle()
	axis := rotation(c.BodyA).Rotate(c.LocalAxisA)

	switch {
	case angle < c.Lower:
		limit.SetJacobian(mgl64.Vec3{}, axis, mgl64.Vec3{}, axis.Mul(-1))
		limit.Bias = -c.ERP / dt * (angle - c.Lower)
	case angle > c.Upper:
		limit.SetJacobian(mgl64.Vec3{}, axis.Mul(-1), mgl64.Vec3{}, axis)
		limit.Bias = -c.ERP / dt * (c.Upper - angle)
	default:
		limit.clearJacobian()
		return
	}
	limit.Lower = 0
	limit.Upper = math.Inf(1)
}

// SliderConstraint lets two bodies only translate along an axis, without rotating
type SliderConstraint struct {
	Constraint
	LocalA     mgl64.Vec3
	LocalB     mgl64.Vec3
	LocalAxisB mgl64.Vec3
	Relative   mgl64.Quat
}

// NewSliderConstraint joins a and b along a world axis through the center of a
func NewSliderConstraint(a, b *actor.RigidBody, axis mgl64.Vec3) *SliderConstraint {
	anchor := center(a)
	c := &SliderConstraint{
		LocalA:     toLocal(a, anchor),
		LocalB:     toLocal(b, anchor),
		LocalAxisB: directionToLocal(b, axis.Normalize()),
		Relative:   relativeRotation(a, b),
	}
	c.init(a, b, 5)
	return c
}

// Translation is the signed offset of A from its starting point along the axis
func (c *SliderConstraint) Translation() float64 {
	axis := rotation(c.BodyB).Rotate(c.LocalAxisB)
	return axis.Dot(toWorld(c.BodyA, c.LocalA).Sub(toWorld(c.BodyB, c.LocalB)))
}

func (c *SliderConstraint) Update(dt float64) {
	angularRows(&c.Constraint, c.Rows[:3], c.Relative, dt)

	pA := toWorld(c.BodyA, c.LocalA)
	pB := toWorld(c.BodyB, c.LocalB)
	offset := pA.Sub(pB)
	rA := pA.Sub(center(c.BodyA))
	// the axis turns with B: the offset is measured from B's center
	rB := pA.Sub(center(c.BodyB))

	axis := rotation(c.BodyB).Rotate(c.LocalAxisB)
	t1, t2 := actor.TangentBasis(axis)
	for i, tangent := range [2]mgl64.Vec3{t1, t2} {
		row := c.Rows[3+i]
		row.SetJacobian(tangent, rA.Cross(tangent), tangent.Mul(-1), rB.Cross(tangent).Mul(-1))
		row.Bias = -c.ERP / dt * tangent.Dot(offset)
		row.Lower = math.Inf(-1)
		row.Upper = math.Inf(1)
	}
}
