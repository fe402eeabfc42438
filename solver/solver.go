// Package solver resolves the constraint rows of a step with a sequential impulse
// (projected Gauss-Seidel) method.
//
// A step runs, in order:
//
//	ProcessContactManifolds  build contact and friction constraints for new contact points
//	PrepareConstraints       Jacobians, effective masses and right hand sides
//	ResolveContacts          push the bodies out of penetration
//	SolveConstraints         warm started velocity iterations
//	ApplyConstraints         commit the multipliers to the body velocities
package solver

import (
	"math"
	"slices"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/config"
	"github.com/akmonengine/impulse/constraint"
	"github.com/akmonengine/impulse/contact"
	"github.com/akmonengine/impulse/internal/mathx"
	"github.com/akmonengine/impulse/logging"
	"github.com/go-gl/mathgl/mgl64"
)

// BrokenListener is notified when a constraint exceeds its breaking threshold
type BrokenListener func(c constraint.Constrainer)

type SequentialImpulseSolver struct {
	cfg    config.SolverConfig
	logger logging.Logger

	// constraints in insertion order, the solver is order sensitive
	constraints []constraint.Constrainer

	// per step scratch
	active []constraint.Constrainer
	bodies []*actor.RigidBody
	seen   map[*actor.RigidBody]struct{}

	onBroken []BrokenListener
}

func New(cfg config.SolverConfig, logger logging.Logger) *SequentialImpulseSolver {
	return &SequentialImpulseSolver{
		cfg:    cfg,
		logger: logging.OrNop(logger),
		seen:   make(map[*actor.RigidBody]struct{}),
	}
}

// Constraints returns every constraint known to the solver, inactive ones included until the next purge
func (s *SequentialImpulseSolver) Constraints() []constraint.Constrainer {
	return s.constraints
}

// OnBroken registers a listener called when a constraint breaks
func (s *SequentialImpulseSolver) OnBroken(listener BrokenListener) {
	s.onBroken = append(s.onBroken, listener)
}

// AddConstraint registers a joint. The solver ERP is applied to it:
// set Constraint.ERP after adding it to tune a single joint.
func (s *SequentialImpulseSolver) AddConstraint(c constraint.Constrainer) {
	c.Base().ERP = s.cfg.ERP
	s.constraints = append(s.constraints, c)
}

// RemoveConstraint forgets a constraint and releases its rows, it must not be reused
func (s *SequentialImpulseSolver) RemoveConstraint(c constraint.Constrainer) {
	i := slices.Index(s.constraints, c)
	if i < 0 {
		return
	}
	s.constraints = slices.Delete(s.constraints, i, i+1)
	c.Base().Deactivate()
	c.Base().Release()
}

// RemoveBody drops every constraint involving body
func (s *SequentialImpulseSolver) RemoveBody(body *actor.RigidBody) {
	for _, c := range s.constraints {
		if c.Base().Involves(body) {
			c.Base().Deactivate()
		}
	}
	s.purge()
}

// purge releases the inactive constraints, keeping the order of the others
func (s *SequentialImpulseSolver) purge() {
	s.constraints = slices.DeleteFunc(s.constraints, func(c constraint.Constrainer) bool {
		if c.Base().Active {
			return false
		}
		c.Base().Release()
		return true
	})
}

// ProcessContactManifolds creates a contact and a friction constraint for every
// contact point that has none yet. Trigger and static-static manifolds are skipped.
func (s *SequentialImpulseSolver) ProcessContactManifolds(list *contact.ManifoldList) int {
	s.purge()

	created := 0
	for _, m := range list.Manifolds() {
		if m.BodyA.IsTrigger || m.BodyB.IsTrigger {
			continue
		}
		if m.BodyA.IsStatic() && m.BodyB.IsStatic() {
			continue
		}

		for _, d := range m.Contacts() {
			if d.Constrained {
				continue
			}
			normal := constraint.NewContactConstraint(d, s.cfg.RestitutionThreshold)
			friction := constraint.NewFrictionConstraint(d, normal)
			// friction reads the prepared normal row: it must follow it
			s.constraints = append(s.constraints, normal, friction)
			created++
		}
	}

	return created
}

// PrepareConstraints rebuilds the rows of every active constraint for this step
func (s *SequentialImpulseSolver) PrepareConstraints(dt float64) {
	s.active = s.active[:0]
	s.bodies = s.bodies[:0]
	clear(s.seen)

	for _, c := range s.constraints {
		base := c.Base()
		if !base.Active || base.IsStatic() {
			continue
		}

		s.active = append(s.active, c)
		s.track(base.BodyA)
		s.track(base.BodyB)
	}

	for _, body := range s.bodies {
		body.ClearSolverState()
	}

	for _, c := range s.active {
		base := c.Base()
		base.LastImpulse = mgl64.Vec3{}
		c.Update(dt)
		for _, row := range base.Rows {
			row.Prepare(base.BodyA, base.BodyB, dt)
			row.PushMultiplier = 0
		}
	}
}

func (s *SequentialImpulseSolver) track(body *actor.RigidBody) {
	if body == nil {
		return
	}
	if _, ok := s.seen[body]; ok {
		return
	}
	s.seen[body] = struct{}{}
	s.bodies = append(s.bodies, body)
}

// ResolveContacts moves the bodies out of penetration without touching their velocities.
// Push and turn velocities are accumulated on the contact rows, then a fraction
// (Relaxation) of the result is applied to the positions.
func (s *SequentialImpulseSolver) ResolveContacts() {
	for range s.cfg.PenetrationIterations {
		maxDelta := 0.0
		for _, c := range s.active {
			cc, ok := c.(*constraint.ContactConstraint)
			if !ok {
				continue
			}

			row := cc.Rows[0]
			delta := (cc.Depth - row.JPush(cc.BodyA, cc.BodyB)) / row.D
			previous := row.PushMultiplier
			row.PushMultiplier = math.Max(0, previous+delta)
			applied := row.PushMultiplier - previous
			if applied == 0 {
				continue
			}

			row.AddPush(cc.BodyA, cc.BodyB, applied)
			maxDelta = math.Max(maxDelta, math.Abs(applied)*inverseMassSum(&cc.Constraint))
		}

		if maxDelta <= s.cfg.Epsilon {
			break
		}
	}

	for _, body := range s.bodies {
		if body.IsStatic() {
			continue
		}
		body.Transform.Position = body.Transform.Position.Add(body.PushVelocity.Mul(s.cfg.Relaxation))
		body.Rotate(body.TurnVelocity.Mul(s.cfg.Relaxation))
		body.UpdateAABB()
		body.PushVelocity = mgl64.Vec3{}
		body.TurnVelocity = mgl64.Vec3{}
	}
}

// SolveConstraints runs the warm started SOR iterations over every active row
func (s *SequentialImpulseSolver) SolveConstraints() {
	for _, c := range s.active {
		base := c.Base()
		for _, row := range base.Rows {
			row.Multiplier = mathx.Clamp(row.MultiplierCached*s.cfg.WarmStartingFactor, row.Lower, row.Upper)
			if row.Multiplier != 0 {
				row.AddImpulse(base.BodyA, base.BodyB, row.Multiplier)
			}
		}
	}

	iterations := 0
	for range s.cfg.MaxIterations {
		iterations++
		maxDelta := 0.0
		for _, c := range s.active {
			base := c.Base()
			massSum := inverseMassSum(base)
			for _, row := range base.Rows {
				delta := (row.Eta - row.JDot(base.BodyA, base.BodyB)) / row.D * base.Factor
				previous := row.Multiplier
				row.Multiplier = mathx.Clamp(previous+s.cfg.SORWeight*delta, row.Lower, row.Upper)
				applied := row.Multiplier - previous
				if applied == 0 {
					continue
				}

				row.AddImpulse(base.BodyA, base.BodyB, applied)
				maxDelta = math.Max(maxDelta, math.Abs(applied)*massSum)
			}
		}

		if maxDelta <= s.cfg.Threshold {
			break
		}
	}

	if s.logger.DebugEnabled() {
		s.logger.Debugf("solver: %d constraints, %d iterations", len(s.active), iterations)
	}
}

// ApplyConstraints commits the multipliers to the body velocities, caches them
// for the next warm start, and breaks the constraints pushed beyond their threshold
func (s *SequentialImpulseSolver) ApplyConstraints(dt float64) {
	for _, c := range s.active {
		base := c.Base()
		for _, row := range base.Rows {
			row.Apply(base.BodyA, base.BodyB, dt)
			base.LastImpulse = base.LastImpulse.Add(constraint.Block(&row.Jacobian, 0).Mul(row.Multiplier * dt))
			row.MultiplierCached = row.Multiplier
		}

		threshold := base.BreakingThreshold
		if threshold > 0 && base.LastImpulse.LenSqr() > threshold*threshold {
			base.Deactivate()
			s.logger.Debugf("solver: constraint broken, impulse %.3f over %.3f", base.LastImpulse.Len(), threshold)
			for _, listener := range s.onBroken {
				listener(c)
			}
		}
	}
}

// inverseMassSum normalizes a multiplier delta into a velocity scale
func inverseMassSum(c *constraint.Constraint) float64 {
	sum := 0.0
	if c.BodyA != nil {
		sum += c.BodyA.InverseMass
	}
	if c.BodyB != nil {
		sum += c.BodyB.InverseMass
	}
	return sum
}
