// Package constraint builds the Jacobian rows solved by the sequential impulse solver.
//
// Contact and friction constraints are created by the solver from the contact
// manifolds and live as long as their contact point. Joint constraints (point,
// revolute, hinge, slider, weld) are created by the application and persist
// until they are removed or broken.
package constraint

import (
	"github.com/akmonengine/impulse/actor"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// DefaultERP - fraction of the position error corrected per step
	DefaultERP = 0.1
	// DefaultFactor scales every multiplier update of a constraint
	DefaultFactor = 1.0
)

// Constrainer is implemented by every constraint kind
type Constrainer interface {
	// Base returns the state shared by every constraint
	Base() *Constraint
	// Update recomputes the Jacobian, bias and limits of every row from the current transforms
	Update(dt float64)
}

// Constraint holds the rows of one constraint between BodyA and BodyB.
// A nil BodyB anchors the constraint to the world.
type Constraint struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
	Rows  []*Row

	Active bool
	Factor float64
	ERP    float64

	// BreakingThreshold, when > 0, is the impulse magnitude deactivating the constraint
	BreakingThreshold float64
	// LastImpulse is the linear impulse applied on BodyA during the last step
	LastImpulse mgl64.Vec3

	onDeactivate []func(*Constraint)
}

func (c *Constraint) init(a, b *actor.RigidBody, rows int) {
	c.BodyA = a
	c.BodyB = b
	c.Active = true
	c.Factor = DefaultFactor
	c.ERP = DefaultERP
	c.Rows = make([]*Row, rows)
	for i := range c.Rows {
		c.Rows[i] = RowPool.Acquire()
	}
}

func (c *Constraint) Base() *Constraint {
	return c
}

// Involves reports whether body is one of the constrained bodies
func (c *Constraint) Involves(body *actor.RigidBody) bool {
	return c.BodyA == body || (c.BodyB != nil && c.BodyB == body)
}

// IsStatic reports whether no constrained body can move
func (c *Constraint) IsStatic() bool {
	return (c.BodyA == nil || c.BodyA.IsStatic()) && (c.BodyB == nil || c.BodyB.IsStatic())
}

// OnDeactivate registers a callback run once when the constraint gets deactivated
func (c *Constraint) OnDeactivate(listener func(*Constraint)) {
	c.onDeactivate = append(c.onDeactivate, listener)
}

// Deactivate stops the constraint from being solved. It is idempotent.
func (c *Constraint) Deactivate() {
	if !c.Active {
		return
	}
	c.Active = false
	for _, listener := range c.onDeactivate {
		listener(c)
	}
}

// Release hands the rows back to their pool, the constraint can't be solved anymore
func (c *Constraint) Release() {
	c.Active = false
	for _, row := range c.Rows {
		RowPool.Release(row)
	}
	c.Rows = nil
}

// rotation returns the orientation of a body, identity for the world
func rotation(body *actor.RigidBody) mgl64.Quat {
	if body == nil {
		return mgl64.QuatIdent()
	}
	return body.Transform.Rotation
}

// center returns the position of a body, the origin for the world
func center(body *actor.RigidBody) mgl64.Vec3 {
	if body == nil {
		return mgl64.Vec3{}
	}
	return body.Transform.Position
}

// toWorld maps a body point to world space, world points are unchanged
func toWorld(body *actor.RigidBody, local mgl64.Vec3) mgl64.Vec3 {
	if body == nil {
		return local
	}
	return body.ToWorld(local)
}

// toLocal maps a world point to body space, unchanged for the world
func toLocal(body *actor.RigidBody, world mgl64.Vec3) mgl64.Vec3 {
	if body == nil {
		return world
	}
	return body.ToLocal(world)
}

// directionToLocal rotates a world direction into body space
func directionToLocal(body *actor.RigidBody, world mgl64.Vec3) mgl64.Vec3 {
	if body == nil {
		return world
	}
	return body.Transform.InverseRotation.Rotate(world)
}
