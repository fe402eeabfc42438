package actor

import (
	"math"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// BodyType represents the type of rigid body
type BodyType int

const (
	// BodyTypeDynamic bodies are affected by forces, gravity, and collisions
	// They have finite mass and can move freely
	BodyTypeDynamic BodyType = iota

	// BodyTypeStatic bodies are immovable and have infinite mass
	// They are not affected by forces or gravity (e.g., ground, walls)
	BodyTypeStatic
)

// CollisionAll is the default group and mask: collides with everything
const CollisionAll uint32 = 0xFFFFFFFF

var nextId atomic.Uint64

// DefaultFriction is the friction coefficient of a new body
const DefaultFriction = 0.5

type Material struct {
	Density     float64
	mass        float64
	Restitution float64 // 0= no rebound, 1= perfect restitution
	Friction    float64

	LinearDamping  float64 // 0.0 - 1.0, typically 0.01
	AngularDamping float64 // 0.0 - 1.0, typically 0.05
}

func (material Material) GetMass() float64 {
	return material.mass
}

// RigidBody represents a rigid body in the physics simulation
type RigidBody struct {
	// Id is unique per process and orders bodies inside pair keys
	Id   uint64
	Name string

	// Spatial properties
	Transform Transform

	Velocity        mgl64.Vec3 // Linear velocity (m/s)
	AngularVelocity mgl64.Vec3 // rad/s

	// InverseMass is 0 for static bodies
	InverseMass         float64
	InertiaLocal        mgl64.Mat3
	InverseInertiaLocal mgl64.Mat3

	accumulatedForce  mgl64.Vec3
	accumulatedTorque mgl64.Vec3

	// Physical properties
	Material Material
	BodyType BodyType // Dynamic or Static

	// Collision shape
	Shape ShapeInterface

	// A pair is tested only if each body's group matches the other's mask
	CollisionGroup uint32
	CollisionMask  uint32
	// Triggers report overlaps but never get a collision response
	IsTrigger bool

	// Solver scratch, only meaningful during a step
	PushVelocity  mgl64.Vec3
	TurnVelocity  mgl64.Vec3
	SolverImpulse [6]float64

	aabb AABB
}

// NewRigidBody creates a new rigid body with the given properties
// density is used to calculate mass for dynamic bodies (ignored for static)
func NewRigidBody(transform Transform, shape ShapeInterface, bodyType BodyType, density float64) *RigidBody {
	transform.SetRotation(transform.Rotation)

	rb := &RigidBody{
		Id:             nextId.Add(1),
		Name:           uuid.NewString(),
		Transform:      transform,
		Shape:          shape,
		BodyType:       bodyType,
		CollisionGroup: CollisionAll,
		CollisionMask:  CollisionAll,
	}

	mass := shape.ComputeMass(density)
	if bodyType == BodyTypeStatic || math.IsInf(mass, 0) || mass <= 0 {
		// Static bodies have infinite mass
		rb.BodyType = BodyTypeStatic
		rb.Material = Material{mass: math.Inf(1), Friction: DefaultFriction}
	} else {
		// Dynamic bodies compute mass from shape and density
		rb.Material = Material{
			Density:  density,
			mass:     mass,
			Friction: DefaultFriction,
		}
		rb.InverseMass = 1.0 / mass
		rb.InertiaLocal = shape.ComputeInertia(mass)
		rb.InverseInertiaLocal = rb.InertiaLocal.Inv()
	}

	rb.UpdateAABB()

	return rb
}

// IsStatic reports whether the body has infinite mass
func (rb *RigidBody) IsStatic() bool {
	return rb.BodyType == BodyTypeStatic || rb.InverseMass == 0
}

// AABB returns the world bounding box cached at the last UpdateAABB
func (rb *RigidBody) AABB() AABB {
	return rb.aabb
}

// UpdateAABB recomputes the world bounding box from the shape and transform
func (rb *RigidBody) UpdateAABB() {
	rb.aabb = rb.Shape.ComputeAABB(rb.Transform)
}

// SetPosition moves the body and refreshes its bounding box
func (rb *RigidBody) SetPosition(position mgl64.Vec3) {
	rb.Transform.Position = position
	rb.UpdateAABB()
}

// SetRotation orients the body and refreshes its bounding box
func (rb *RigidBody) SetRotation(rotation mgl64.Quat) {
	rb.Transform.SetRotation(rotation)
	rb.UpdateAABB()
}

// Integrate advances the body by dt with semi-implicit Euler.
// Accumulated forces are consumed and cleared.
func (rb *RigidBody) Integrate(dt float64) {
	if rb.IsStatic() {
		rb.ClearForces()
		return
	}

	rb.Velocity = rb.Velocity.Add(rb.accumulatedForce.Mul(rb.InverseMass * dt))
	rb.Velocity = rb.Velocity.Mul(math.Exp(-rb.Material.LinearDamping * dt))
	rb.Transform.Position = rb.Transform.Position.Add(rb.Velocity.Mul(dt))

	angularAccel := rb.GetInverseInertiaWorld().Mul3x1(rb.accumulatedTorque)
	rb.AngularVelocity = rb.AngularVelocity.Add(angularAccel.Mul(dt))
	rb.AngularVelocity = rb.AngularVelocity.Mul(math.Exp(-rb.Material.AngularDamping * dt))
	rb.Rotate(rb.AngularVelocity.Mul(dt))

	rb.UpdateAABB()
	rb.ClearForces()
}

// Rotate applies a small world space rotation vector to the orientation
func (rb *RigidBody) Rotate(rotation mgl64.Vec3) {
	if rotation.LenSqr() == 0 {
		return
	}
	omegaQuat := mgl64.Quat{V: rotation, W: 0}
	qDot := omegaQuat.Mul(rb.Transform.Rotation).Scale(0.5)
	rb.Transform.SetRotation(rb.Transform.Rotation.Add(qDot))
}

// AddForce in N (kg⋅m/s²), applied at the center of mass
func (rb *RigidBody) AddForce(force mgl64.Vec3) {
	if !rb.IsStatic() {
		rb.accumulatedForce = rb.accumulatedForce.Add(force)
	}
}

// AddTorque in N⋅m
func (rb *RigidBody) AddTorque(torque mgl64.Vec3) {
	if !rb.IsStatic() {
		rb.accumulatedTorque = rb.accumulatedTorque.Add(torque)
	}
}

// AddForceAtPoint applies a force at a world point, producing torque
func (rb *RigidBody) AddForceAtPoint(force, point mgl64.Vec3) {
	rb.AddForce(force)
	rb.AddTorque(point.Sub(rb.Transform.Position).Cross(force))
}

// AccumulatedForce returns the force gathered since the last integration
func (rb *RigidBody) AccumulatedForce() mgl64.Vec3 {
	return rb.accumulatedForce
}

func (rb *RigidBody) AccumulatedTorque() mgl64.Vec3 {
	return rb.accumulatedTorque
}

func (rb *RigidBody) ClearForces() {
	rb.accumulatedForce = mgl64.Vec3{0, 0, 0}
	rb.accumulatedTorque = mgl64.Vec3{0, 0, 0}
}

// ToWorld transforms a point from body local space to world space
func (rb *RigidBody) ToWorld(local mgl64.Vec3) mgl64.Vec3 {
	return rb.Transform.ToWorld(local)
}

// ToLocal transforms a world point into body local space
func (rb *RigidBody) ToLocal(world mgl64.Vec3) mgl64.Vec3 {
	return rb.Transform.ToLocal(world)
}

// SupportWorld returns the furthest world point of the shape along a world direction
func (rb *RigidBody) SupportWorld(direction mgl64.Vec3) mgl64.Vec3 {
	// 1. direction in local space
	localDirection := rb.Transform.InverseRotation.Rotate(direction)

	// 2. support in local space
	localSupport := rb.Shape.Support(localDirection)

	// 3. back to world space
	return rb.Transform.ToWorld(localSupport)
}

// GetInertiaWorld returns the inertia tensor in world space
func (rb *RigidBody) GetInertiaWorld() mgl64.Mat3 {
	// I_world = R * I_local * R^T
	R := rb.Transform.Rotation.Mat4().Mat3()
	return R.Mul3(rb.InertiaLocal).Mul3(R.Transpose())
}

// GetInverseInertiaWorld returns the inverse inertia tensor in world space, zero for static bodies
func (rb *RigidBody) GetInverseInertiaWorld() mgl64.Mat3 {
	if rb.IsStatic() {
		return mgl64.Mat3{}
	}

	// I_world^(-1) = R * I_local^(-1) * R^T
	R := rb.Transform.Rotation.Mat4().Mat3()
	return R.Mul3(rb.InverseInertiaLocal).Mul3(R.Transpose())
}

// VelocityAt returns the world velocity of a world point rigidly attached to the body
func (rb *RigidBody) VelocityAt(point mgl64.Vec3) mgl64.Vec3 {
	return rb.Velocity.Add(rb.AngularVelocity.Cross(point.Sub(rb.Transform.Position)))
}

// IsFinite reports whether every state component is a finite number
func (rb *RigidBody) IsFinite() bool {
	values := [...]float64{
		rb.Transform.Position[0], rb.Transform.Position[1], rb.Transform.Position[2],
		rb.Transform.Rotation.W, rb.Transform.Rotation.V[0], rb.Transform.Rotation.V[1], rb.Transform.Rotation.V[2],
		rb.Velocity[0], rb.Velocity[1], rb.Velocity[2],
		rb.AngularVelocity[0], rb.AngularVelocity[1], rb.AngularVelocity[2],
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ClearSolverState zeroes the per-step solver accumulators
func (rb *RigidBody) ClearSolverState() {
	rb.PushVelocity = mgl64.Vec3{}
	rb.TurnVelocity = mgl64.Vec3{}
	rb.SolverImpulse = [6]float64{}
}
