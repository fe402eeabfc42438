// Package contact holds the contact points found by the narrowphase and
// the persistent manifolds that age them across steps.
package contact

import (
	"math"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/pool"
	"github.com/go-gl/mathgl/mgl64"
)

// Details is one contact point between two bodies.
// Normal points from BodyB to BodyA, Depth is positive when the bodies overlap.
type Details struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody

	// Point is the world contact point, midway between the two witnesses
	Point mgl64.Vec3
	// LocalA and LocalB are the witness points in each body frame
	LocalA mgl64.Vec3
	LocalB mgl64.Vec3

	Normal mgl64.Vec3
	Depth  float64

	Restitution float64
	Friction    float64

	// Constrained is set once the solver built the constraints of this contact
	Constrained bool

	onDestroy []func(*Details)
}

// DetailsPool recycles contact points, listeners storage is kept across uses
var DetailsPool = pool.New(func(d *Details) {
	clear(d.onDestroy)
	*d = Details{onDestroy: d.onDestroy[:0]}
})

// NewDetails takes a contact from the pool and fills the body related fields
func NewDetails(a, b *actor.RigidBody) *Details {
	d := DetailsPool.Acquire()
	d.BodyA = a
	d.BodyB = b
	d.Restitution = ComputeRestitution(a.Material, b.Material)
	d.Friction = ComputeFriction(a.Material, b.Material)
	return d
}

// SetWitnesses stores the world witness points on each body
// and places the contact point between them
func (d *Details) SetWitnesses(worldA, worldB mgl64.Vec3) {
	d.LocalA = d.BodyA.ToLocal(worldA)
	d.LocalB = d.BodyB.ToLocal(worldB)
	d.Point = worldA.Add(worldB).Mul(0.5)
}

// WorldA returns the witness on BodyA at its current transform
func (d *Details) WorldA() mgl64.Vec3 {
	return d.BodyA.ToWorld(d.LocalA)
}

// WorldB returns the witness on BodyB at its current transform
func (d *Details) WorldB() mgl64.Vec3 {
	return d.BodyB.ToWorld(d.LocalB)
}

// OnDestroy registers a callback run when the contact is destroyed
func (d *Details) OnDestroy(listener func(*Details)) {
	d.onDestroy = append(d.onDestroy, listener)
}

// Destroy notifies the listeners then returns the contact to the pool.
// The contact must not be used afterwards.
func (d *Details) Destroy() {
	for _, listener := range d.onDestroy {
		listener(d)
	}
	DetailsPool.Release(d)
}

// Swap exchanges the roles of the two bodies, flipping the normal
func (d *Details) Swap() {
	d.BodyA, d.BodyB = d.BodyB, d.BodyA
	d.LocalA, d.LocalB = d.LocalB, d.LocalA
	d.Normal = d.Normal.Mul(-1)
}

// ComputeRestitution - average of both bodies
func ComputeRestitution(matA, matB actor.Material) float64 {
	return (matA.Restitution + matB.Restitution) / 2.0
}

// ComputeFriction - geometric mean (standard in physics)
func ComputeFriction(matA, matB actor.Material) float64 {
	return math.Sqrt(matA.Friction * matB.Friction)
}
