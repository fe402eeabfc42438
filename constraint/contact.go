package constraint

import (
	"math"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/contact"
	"github.com/go-gl/mathgl/mgl64"
)

// ContactConstraint keeps the bodies of a contact point from moving into each other.
// It lives as long as its contact point.
type ContactConstraint struct {
	Constraint
	Contact *contact.Details

	// Depth is the penetration resolved by the solver position pass
	Depth float64

	restitutionThreshold float64
}

// NewContactConstraint builds the non-penetration row of a contact point.
// Restitution is applied only for closing speeds above restitutionThreshold.
func NewContactConstraint(d *contact.Details, restitutionThreshold float64) *ContactConstraint {
	c := &ContactConstraint{Contact: d, restitutionThreshold: restitutionThreshold}
	c.init(d.BodyA, d.BodyB, 1)
	bindContact(&c.Constraint, d, func() { c.Contact = nil })
	return c
}

func (c *ContactConstraint) Update(dt float64) {
	d := c.Contact
	row := c.Rows[0]
	if d == nil {
		row.clearJacobian()
		return
	}

	normal := d.Normal
	rA := d.Point.Sub(c.BodyA.Transform.Position)
	rB := d.Point.Sub(c.BodyB.Transform.Position)
	row.SetJacobian(normal, rA.Cross(normal), normal.Mul(-1), rB.Cross(normal).Mul(-1))
	row.Lower = 0
	row.Upper = math.Inf(1)
	c.Depth = d.Depth

	// relative velocity along the normal, negative when closing
	normalVelocity := c.BodyA.VelocityAt(d.Point).Sub(c.BodyB.VelocityAt(d.Point)).Dot(normal)

	row.Bias = 0
	switch {
	case d.Depth < 0:
		// speculative: allowed to close the gap within the step, not more
		row.Bias = d.Depth / dt
	case -normalVelocity > c.restitutionThreshold:
		row.Bias = -normalVelocity * d.Restitution
	}
}

// FrictionConstraint opposes the tangential motion at a contact point.
// The bound of each row follows the normal force of the paired ContactConstraint.
type FrictionConstraint struct {
	Constraint
	Contact *contact.Details
	Normal  *ContactConstraint
}

// NewFrictionConstraint builds the two tangent rows of a contact point
func NewFrictionConstraint(d *contact.Details, normal *ContactConstraint) *FrictionConstraint {
	c := &FrictionConstraint{Contact: d, Normal: normal}
	c.init(d.BodyA, d.BodyB, 2)
	bindContact(&c.Constraint, d, func() { c.Contact = nil })
	return c
}

// Update must run after the paired contact constraint was prepared
func (c *FrictionConstraint) Update(dt float64) {
	d := c.Contact
	if d == nil {
		for _, row := range c.Rows {
			row.clearJacobian()
		}
		return
	}

	limit := d.Friction * c.normalForce()
	rA := d.Point.Sub(c.BodyA.Transform.Position)
	rB := d.Point.Sub(c.BodyB.Transform.Position)

	t1, t2 := actor.TangentBasis(d.Normal)
	for i, tangent := range [2]mgl64.Vec3{t1, t2} {
		row := c.Rows[i]
		row.SetJacobian(tangent, rA.Cross(tangent), tangent.Mul(-1), rB.Cross(tangent).Mul(-1))
		row.Bias = 0
		row.Lower = -limit
		row.Upper = limit
	}
}

// normalForce estimates the force pressing the bodies together:
// the force of the last step, or the one needed to stop the current closing motion
func (c *FrictionConstraint) normalForce() float64 {
	if c.Normal == nil || len(c.Normal.Rows) == 0 {
		return 0
	}
	row := c.Normal.Rows[0]
	estimate := math.Max(0, row.Eta/row.D)
	return math.Max(0, math.Max(row.MultiplierCached, estimate))
}

// bindContact ties the constraint lifetime to its contact point
func bindContact(c *Constraint, d *contact.Details, detach func()) {
	d.Constrained = true
	d.OnDestroy(func(*contact.Details) {
		detach()
		c.Deactivate()
	})
}
