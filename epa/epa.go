// Package epa implements the Expanding Polytope Algorithm for computing penetration depth.
//
// EPA is run after GJK detects a collision to determine:
//   - Penetration depth (how far shapes overlap)
//   - Contact normal (direction to separate shapes)
//   - Contact points (where shapes touch)
//
// The algorithm expands a polytope (starting from GJK's final simplex) toward the origin
// in the Minkowski difference space, finding the closest face which gives us the
// Minimum Translation Vector (MTV) to separate the shapes.
//
// References:
//   - Van den Bergen: "Proximity Queries and Penetration Depth Computation on 3D Game Objects" (2001)
package epa

import (
	"errors"
	"fmt"
	"math"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/config"
	"github.com/akmonengine/impulse/contact"
	"github.com/akmonengine/impulse/gjk"
	"github.com/akmonengine/impulse/internal/mathx"
	"github.com/go-gl/mathgl/mgl64"
)

var (
	// ErrInvalidSimplex - EPA needs the tetrahedron of a colliding GJK run
	ErrInvalidSimplex = errors.New("epa: simplex is not a tetrahedron")
	// ErrDegenerate - the polytope collapsed, no contact can be derived
	ErrDegenerate = errors.New("epa: degenerate polytope")
)

// EPA computes penetration depth and contact information for overlapping convex shapes.
//
// Algorithm overview:
//  1. Start with simplex from GJK (tetrahedron containing origin)
//  2. Build initial polytope faces from simplex
//  3. Find face closest to origin
//  4. Get support point in face normal direction
//  5. If converged (new point improves the distance by less than cfg.EPACondition) → done
//  6. Otherwise, expand polytope by adding support point
//  7. Repeat from step 3, at most cfg.EPAMaxIterations times, then keep the best face
//
// EPA takes ownership of the simplex and releases it.
// The contact normal points from B toward A, the depth is positive.
func EPA(a, b *actor.RigidBody, simplex *gjk.Simplex, cfg config.GeometryConfig) (*contact.Details, error) {
	defer simplex.Release()

	if simplex.Count != 4 {
		return nil, fmt.Errorf("%w: %d points", ErrInvalidSimplex, simplex.Count)
	}

	polyhedron := PolyhedronPool.Acquire()
	defer PolyhedronPool.Release(polyhedron)

	// Step 1: Build initial polytope faces from the tetrahedron simplex
	if !polyhedron.init(simplex) {
		return nil, fmt.Errorf("%w: flat initial tetrahedron", ErrDegenerate)
	}

	closest := -1
	done := false
	for i := 0; i < cfg.EPAMaxIterations && !done; i++ {
		// Step 2: Find the face closest to the origin
		closest = polyhedron.closestFace()
		if closest < 0 {
			return nil, fmt.Errorf("%w: no active face", ErrDegenerate)
		}
		face := polyhedron.Faces[closest]

		// Step 3: support point along the face normal, through the closest point
		support := gjk.MinkowskiSupport(a, b, face.Normal)
		gap := support.Point.Dot(face.Normal) - face.Distance

		// Step 4: Check for convergence
		if gap < cfg.EPACondition {
			done = true
			break
		}

		// Step 5: Expand polytope by adding the new support point
		// A horizon that cannot be closed keeps the current best estimate
		done = !polyhedron.expand(closest, support)
	}

	// out of iterations: best face of the expanded polytope
	if !done {
		if fi := polyhedron.closestFace(); fi >= 0 {
			closest = fi
		}
	}

	return polyhedron.contact(a, b, closest, cfg)
}

// contact derives the contact of the closest face fi
func (p *Polyhedron) contact(a, b *actor.RigidBody, fi int, cfg config.GeometryConfig) (*contact.Details, error) {
	face := &p.Faces[fi]
	if math.IsInf(face.Distance, 0) {
		return nil, fmt.Errorf("%w: degenerate closest face", ErrDegenerate)
	}

	closestPoint := face.Normal.Mul(face.Distance)
	u, v, w := p.barycentric(fi, closestPoint)
	if math.IsNaN(u) || math.IsNaN(v) || math.IsNaN(w) || math.IsInf(u+v+w, 0) {
		return nil, fmt.Errorf("%w: barycentric coordinates", ErrDegenerate)
	}

	va := p.Vertices[face.Vertices[0]]
	vb := p.Vertices[face.Vertices[1]]
	vc := p.Vertices[face.Vertices[2]]
	witnessA := va.WitnessA.Mul(u).Add(vb.WitnessA.Mul(v)).Add(vc.WitnessA.Mul(w))
	witnessB := va.WitnessB.Mul(u).Add(vb.WitnessB.Mul(v)).Add(vc.WitnessB.Mul(w))

	// closestPoint = witnessA - witnessB goes from the origin to the surface:
	// A has to move by -closestPoint to separate
	var normal mgl64.Vec3
	if face.Distance > cfg.Epsilon {
		normal = closestPoint.Mul(-1 / face.Distance)
	} else {
		normal = a.Transform.Position.Sub(b.Transform.Position)
		if normal.LenSqr() < cfg.Epsilon*cfg.Epsilon {
			normal = face.Normal.Mul(-1)
		}
		normal = normal.Normalize()
	}
	if !mathx.IsFinite(normal) || !mathx.IsFinite(witnessA) || !mathx.IsFinite(witnessB) {
		return nil, fmt.Errorf("%w: non finite contact", ErrDegenerate)
	}

	d := contact.NewDetails(a, b)
	d.Normal = normal
	d.Depth = face.Distance + cfg.ContactMargin
	d.SetWitnesses(witnessA, witnessB)
	return d, nil
}
