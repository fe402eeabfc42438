package constraint

import (
	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/internal/mathx"
	"github.com/akmonengine/impulse/pool"
	"github.com/go-gl/mathgl/mgl64"
)

// Row is one scalar equation of a constraint.
//
// Jacobian and B are laid out as 12 dof vectors:
// linear A [0:3], angular A [3:6], linear B [6:9], angular B [9:12].
// Multipliers are forces: a row changes the velocities by B * Multiplier * dt.
type Row struct {
	Jacobian [12]float64
	// B is the Jacobian premultiplied by the inverse mass and inertia of each body
	B [12]float64
	// D = Jacobian . B, never 0
	D float64

	Bias  float64
	Lower float64
	Upper float64

	Multiplier       float64
	MultiplierCached float64
	Eta              float64
	PushMultiplier   float64
}

// RowPool - rows are acquired by the constraint constructors and released with the constraint
var RowPool = pool.New[Row](nil)

// SetJacobian writes the 4 blocks of the Jacobian
func (r *Row) SetJacobian(linearA, angularA, linearB, angularB mgl64.Vec3) {
	copy(r.Jacobian[0:3], linearA[:])
	copy(r.Jacobian[3:6], angularA[:])
	copy(r.Jacobian[6:9], linearB[:])
	copy(r.Jacobian[9:12], angularB[:])
}

// Block returns the i-th 3 component block of v
func Block(v *[12]float64, i int) mgl64.Vec3 {
	return mgl64.Vec3{v[3*i], v[3*i+1], v[3*i+2]}
}

// clearJacobian makes the row inert: it can only hold a zero multiplier
func (r *Row) clearJacobian() {
	r.Jacobian = [12]float64{}
	r.Lower, r.Upper = 0, 0
	r.Bias = 0
}

// Prepare computes B, D and Eta for the current state of the bodies.
// Eta is the multiplier scaled right hand side: bias/dt - J.(v/dt + M^-1.F)
func (r *Row) Prepare(a, b *actor.RigidBody, dt float64) {
	r.B = [12]float64{}
	velocityTerm := 0.0

	if a != nil {
		velocityTerm += r.prepareBody(a, 0, dt)
	}
	if b != nil {
		velocityTerm += r.prepareBody(b, 6, dt)
	}

	r.D = mathx.Vec12Dot(&r.Jacobian, &r.B)
	if r.D == 0 {
		r.D = 1
	}
	r.Eta = r.Bias/dt - velocityTerm
}

// prepareBody fills the B block of a body at offset and returns its J.(v/dt + M^-1.F) share
func (r *Row) prepareBody(body *actor.RigidBody, offset int, dt float64) float64 {
	linear := Block(&r.Jacobian, offset/3)
	angular := Block(&r.Jacobian, offset/3+1)

	term := linear.Dot(body.Velocity.Mul(1/dt)) + angular.Dot(body.AngularVelocity.Mul(1/dt))
	if body.IsStatic() {
		return term
	}

	invInertia := body.GetInverseInertiaWorld()
	bLinear := linear.Mul(body.InverseMass)
	bAngular := invInertia.Mul3x1(angular)
	copy(r.B[offset:offset+3], bLinear[:])
	copy(r.B[offset+3:offset+6], bAngular[:])

	term += linear.Dot(body.AccumulatedForce().Mul(body.InverseMass))
	term += angular.Dot(invInertia.Mul3x1(body.AccumulatedTorque()))
	return term
}

// JDot projects the solver impulses accumulated on both bodies through the Jacobian
func (r *Row) JDot(a, b *actor.RigidBody) float64 {
	var sum float64
	if a != nil {
		for i := 0; i < 6; i++ {
			sum += r.Jacobian[i] * a.SolverImpulse[i]
		}
	}
	if b != nil {
		for i := 0; i < 6; i++ {
			sum += r.Jacobian[6+i] * b.SolverImpulse[i]
		}
	}
	return sum
}

// AddImpulse accumulates B * delta on the solver impulses of both bodies
func (r *Row) AddImpulse(a, b *actor.RigidBody, delta float64) {
	if a != nil {
		for i := 0; i < 6; i++ {
			a.SolverImpulse[i] += r.B[i] * delta
		}
	}
	if b != nil {
		for i := 0; i < 6; i++ {
			b.SolverImpulse[i] += r.B[6+i] * delta
		}
	}
}

// JPush projects the push and turn velocities of both bodies through the Jacobian
func (r *Row) JPush(a, b *actor.RigidBody) float64 {
	var sum float64
	if a != nil {
		sum += Block(&r.Jacobian, 0).Dot(a.PushVelocity) + Block(&r.Jacobian, 1).Dot(a.TurnVelocity)
	}
	if b != nil {
		sum += Block(&r.Jacobian, 2).Dot(b.PushVelocity) + Block(&r.Jacobian, 3).Dot(b.TurnVelocity)
	}
	return sum
}

// AddPush accumulates B * delta on the push and turn velocities of both bodies
func (r *Row) AddPush(a, b *actor.RigidBody, delta float64) {
	if a != nil {
		a.PushVelocity = a.PushVelocity.Add(Block(&r.B, 0).Mul(delta))
		a.TurnVelocity = a.TurnVelocity.Add(Block(&r.B, 1).Mul(delta))
	}
	if b != nil {
		b.PushVelocity = b.PushVelocity.Add(Block(&r.B, 2).Mul(delta))
		b.TurnVelocity = b.TurnVelocity.Add(Block(&r.B, 3).Mul(delta))
	}
}

// Apply changes the body velocities by B * Multiplier * dt
func (r *Row) Apply(a, b *actor.RigidBody, dt float64) {
	scale := r.Multiplier * dt
	if a != nil && !a.IsStatic() {
		a.Velocity = a.Velocity.Add(Block(&r.B, 0).Mul(scale))
		a.AngularVelocity = a.AngularVelocity.Add(Block(&r.B, 1).Mul(scale))
	}
	if b != nil && !b.IsStatic() {
		b.Velocity = b.Velocity.Add(Block(&r.B, 2).Mul(scale))
		b.AngularVelocity = b.AngularVelocity.Add(Block(&r.B, 3).Mul(scale))
	}
}
