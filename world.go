// Package impulse is a rigid body collision and constraint kernel.
//
// A World owns the bodies and runs, on every Step, a strict single threaded pipeline:
// gravity, broadphase, narrowphase, contact constraints, penetration
// resolution, velocity solving, integration, then event dispatch.
package impulse

import (
	"fmt"
	"slices"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/broadphase"
	"github.com/akmonengine/impulse/config"
	"github.com/akmonengine/impulse/constraint"
	"github.com/akmonengine/impulse/narrowphase"
	"github.com/akmonengine/impulse/solver"
	"github.com/go-gl/mathgl/mgl64"
)

const DEFAULT_SUBSTEPS = 1

type World struct {
	// List of all rigid bodies in the world
	Bodies []*actor.RigidBody
	// Gravity acceleration (m/s², or N/kg)
	Gravity  mgl64.Vec3
	Substeps int

	Events Events

	cfg         config.Config
	logger      Logger
	broadphase  broadphase.Broadphase
	narrowphase *narrowphase.NarrowPhase
	solver      *solver.SequentialImpulseSolver

	// last finite transform of each body, restored when a step produced NaN or Inf
	safe map[*actor.RigidBody]actor.Transform
}

type Option func(w *World)

// WithLogger replaces the default no-op logger
func WithLogger(logger Logger) Option {
	return func(w *World) {
		w.logger = logger
	}
}

// WithGravity sets the gravity acceleration, (0, -9.81, 0) by default
func WithGravity(gravity mgl64.Vec3) Option {
	return func(w *World) {
		w.Gravity = gravity
	}
}

// WithSubsteps splits every Step into n solver passes
func WithSubsteps(n int) Option {
	return func(w *World) {
		w.Substeps = n
	}
}

// WithBroadphase replaces the default sweep and prune
func WithBroadphase(bp broadphase.Broadphase) Option {
	return func(w *World) {
		w.broadphase = bp
	}
}

// NewWorld validates cfg and builds an empty world
func NewWorld(cfg config.Config, opts ...Option) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("impulse: %w", err)
	}

	w := &World{
		Gravity:  mgl64.Vec3{0, -9.81, 0},
		Substeps: DEFAULT_SUBSTEPS,
		Events:   NewEvents(),
		cfg:      cfg,
		safe:     make(map[*actor.RigidBody]actor.Transform),
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.logger == nil {
		w.logger = NewNopLogger()
	}
	if w.broadphase == nil {
		w.broadphase = broadphase.NewSweepAndPrune()
	}
	w.narrowphase = narrowphase.New(cfg.Geometry, w.logger)
	w.solver = solver.New(cfg.Solver, w.logger)

	w.Events.observe(w.narrowphase.Manifolds())
	w.solver.OnBroken(w.Events.emitBroken)

	return w, nil
}

// Config returns the tolerances the world was built with
func (w *World) Config() config.Config {
	return w.cfg
}

// AddBody adds a rigid body to the world
func (w *World) AddBody(body *actor.RigidBody) {
	if slices.Contains(w.Bodies, body) {
		return
	}
	w.Bodies = append(w.Bodies, body)
	w.broadphase.AddBody(body)
	w.safe[body] = body.Transform
}

// RemoveBody removes a rigid body, its contacts and its constraints from the world
func (w *World) RemoveBody(body *actor.RigidBody) {
	k := slices.Index(w.Bodies, body)
	if k == -1 {
		return
	}
	w.Bodies = slices.Delete(w.Bodies, k, k+1)

	w.broadphase.RemoveBody(body)
	w.narrowphase.Manifolds().RemoveBody(body)
	w.solver.RemoveBody(body)
	w.Events.forget(body)
	delete(w.safe, body)
}

// AddConstraint registers a joint. It is solved from the next Step until removed or broken.
func (w *World) AddConstraint(c constraint.Constrainer) {
	w.solver.AddConstraint(c)
}

// RemoveConstraint removes a joint and releases its rows
func (w *World) RemoveConstraint(c constraint.Constrainer) {
	w.solver.RemoveConstraint(c)
}

// Constraints returns the joints and contact constraints currently known to the solver
func (w *World) Constraints() []constraint.Constrainer {
	return w.solver.Constraints()
}

// ContactCount returns the number of live contact points
func (w *World) ContactCount() int {
	count := 0
	for _, m := range w.narrowphase.Manifolds().Manifolds() {
		count += m.Count
	}
	return count
}

// Step advances the world by dt seconds, split into Substeps runs of the pipeline
// (gravity, broadphase, narrowphase, constraints, integration), then sends the events.
// A dt <= 0 does nothing.
func (w *World) Step(dt float64) {
	if dt <= 0 {
		return
	}
	w.Substeps = max(DEFAULT_SUBSTEPS, w.Substeps)
	h := dt / float64(w.Substeps)

	for range w.Substeps {
		w.applyGravity()

		// Phase 1: candidate pairs
		w.broadphase.Update()

		// Phase 2: contact points, aged into the manifolds
		w.narrowphase.GenerateContacts(w.broadphase.CollisionPairs())

		// Phase 3: constraints
		w.solver.ProcessContactManifolds(w.narrowphase.Manifolds())
		w.solver.PrepareConstraints(h)
		w.solver.ResolveContacts()
		w.solver.SolveConstraints()
		w.solver.ApplyConstraints(h)

		// Phase 4: integration
		w.integrate(h)
	}

	w.Events.flush()
}

func (w *World) applyGravity() {
	for _, body := range w.Bodies {
		if body.IsStatic() {
			continue
		}
		body.AddForce(w.Gravity.Mul(body.Material.GetMass()))
	}
}

// integrate advances every body, restoring the last finite state of any body that diverged
func (w *World) integrate(h float64) {
	for _, body := range w.Bodies {
		body.Integrate(h)

		if body.IsFinite() {
			w.safe[body] = body.Transform
			continue
		}

		w.logger.Warnf("body %s diverged, restoring its last finite state", body.Name)
		body.Transform = w.safe[body]
		body.Velocity = mgl64.Vec3{}
		body.AngularVelocity = mgl64.Vec3{}
		body.ClearForces()
		body.ClearSolverState()
		body.UpdateAABB()
	}
}

// RayIntersect returns every body hit by the segment, nearest first.
// The result must be handed back with broadphase.ReleaseRayIntersections.
func (w *World) RayIntersect(start, end mgl64.Vec3) []*broadphase.RayIntersection {
	return w.broadphase.RayIntersect(start, end)
}

// RayCast returns the nearest hit of the segment
func (w *World) RayCast(start, end mgl64.Vec3) (broadphase.RayIntersection, bool) {
	hits := w.broadphase.RayIntersect(start, end)
	defer broadphase.ReleaseRayIntersections(hits)

	if len(hits) == 0 {
		return broadphase.RayIntersection{}, false
	}
	return *hits[0], true
}
