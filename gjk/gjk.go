// Package gjk implements the Gilbert-Johnson-Keerthi (GJK) algorithm for collision detection.
//
// GJK detects whether two convex shapes overlap by testing if their Minkowski difference
// contains the origin. The algorithm builds a simplex incrementally, converging toward
// the origin in typically 3-6 iterations.
//
// When the shapes are separated by less than the collision margin, GJK reports the
// contact itself (shallow contact fast path) and EPA is not needed.
//
// References:
//   - Gilbert, Johnson, Keerthi: "A Fast Procedure for Computing the Distance Between
//     Complex Objects in Three-Dimensional Space" (1988)
//   - Van den Bergen: "Collision Detection in Interactive 3D Environments" (2003)
package gjk

import (
	"math"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/config"
	"github.com/akmonengine/impulse/contact"
	"github.com/akmonengine/impulse/pool"
	"github.com/go-gl/mathgl/mgl64"
)

// SupportPoint is a vertex of the Minkowski difference along with the
// two world points it comes from: Point = WitnessA - WitnessB
type SupportPoint struct {
	WitnessA mgl64.Vec3
	WitnessB mgl64.Vec3
	Point    mgl64.Vec3
}

// Simplex represents a set of 1-4 points in the Minkowski difference space.
// The most recent point is always the last one.
// Size progression: 1 point → 2 points (line) → 3 points (triangle) → 4 points (tetrahedron)
type Simplex struct {
	Points    [4]SupportPoint
	Count     int
	Direction mgl64.Vec3
}

// SimplexPool - every simplex taken by GJK is released by GJK itself, or by EPA
// when GJK hands it over
var SimplexPool = pool.New[Simplex](nil)

// Release hands the simplex back to its pool
func (s *Simplex) Release() {
	SimplexPool.Release(s)
}

func (s *Simplex) push(p SupportPoint) {
	s.Points[s.Count] = p
	s.Count++
}

func (s *Simplex) set(points ...SupportPoint) {
	s.Count = copy(s.Points[:], points)
}

// Result is the outcome of a colliding GJK run.
// Either Simplex holds a tetrahedron enclosing the origin, to be expanded by EPA,
// or Contact holds a shallow contact found directly.
type Result struct {
	Simplex *Simplex
	Contact *contact.Details
}

// MinkowskiSupport computes a support point in the Minkowski difference (A - B).
//
// Support point: furthestPoint(A, direction) - furthestPoint(B, -direction)
//
// This is the fundamental query that makes GJK work for any convex shape - shapes only
// need to implement a Support() function, not expose their full geometry.
func MinkowskiSupport(a, b *actor.RigidBody, direction mgl64.Vec3) SupportPoint {
	supportA := a.SupportWorld(direction)
	supportB := b.SupportWorld(direction.Mul(-1))
	return SupportPoint{WitnessA: supportA, WitnessB: supportB, Point: supportA.Sub(supportB)}
}

// GJK performs collision detection between two convex rigid bodies.
//
// Algorithm overview:
//  1. Start with initial search direction (toward B from A)
//  2. Get first support point in Minkowski difference
//  3. Iteratively refine simplex toward origin
//  4. If origin is contained → collision, the tetrahedron is returned for EPA
//  5. If the origin can't be reached → no collision, unless the simplex is
//     closer to the origin than cfg.Margins: the shallow contact is returned
//
// Reaching cfg.GJKMaxIterations reports no collision.
// The caller owns the returned simplex or contact.
func GJK(a, b *actor.RigidBody, cfg config.GeometryConfig) (Result, bool) {
	simplex := SimplexPool.Acquire()

	// Compute initial direction from A to B
	direction := b.Transform.Position.Sub(a.Transform.Position)
	if direction.LenSqr() < cfg.Epsilon*cfg.Epsilon {
		direction = mgl64.Vec3{1, 0, 0} // Fallback if positions are identical
	}

	// Get first point of the simplex in the Minkowski difference
	simplex.push(MinkowskiSupport(a, b, direction))

	// New direction towards the origin from this first point
	direction = simplex.Points[0].Point.Mul(-1)
	if direction.LenSqr() < cfg.Epsilon*cfg.Epsilon {
		// the first point sits on the origin: search along the center axis
		direction = a.Transform.Position.Sub(b.Transform.Position)
		if direction.LenSqr() < cfg.Epsilon*cfg.Epsilon {
			direction = mgl64.Vec3{0, 1, 0}
		}
	}

	for i := 0; i < cfg.GJKMaxIterations; i++ {
		// Find a new support point in the direction towards the origin
		newPoint := MinkowskiSupport(a, b, direction)

		// Early exit test: If the new point doesn't pass the origin in the search direction,
		// the origin cannot be reached, therefore no collision.
		if newPoint.Point.Dot(direction) <= 0 {
			if d := shallowContact(a, b, simplex, cfg); d != nil {
				simplex.Release()
				return Result{Contact: d}, true
			}
			simplex.Release()
			return Result{}, false
		}

		simplex.push(newPoint)

		// Check if the simplex contains the origin
		// This function also updates the simplex and direction for the next iteration
		// by reducing the simplex to its closest feature to the origin
		if containsOrigin(simplex, &direction, cfg.Epsilon) {
			simplex.Direction = direction
			return Result{Simplex: simplex}, true
		}
		simplex.Direction = direction
	}

	simplex.Release()
	return Result{}, false
}

// shallowContact builds the contact of two shapes separated by less than the margin.
// A tetrahedron never qualifies, it was already reduced to its closest face.
func shallowContact(a, b *actor.RigidBody, simplex *Simplex, cfg config.GeometryConfig) *contact.Details {
	if simplex.Count < 1 || simplex.Count > 3 {
		return nil
	}

	closest, weights := ClosestPoint(simplex)
	distance := closest.Len()
	if distance > cfg.Margins || distance < cfg.Epsilon {
		return nil
	}

	var witnessA, witnessB mgl64.Vec3
	for i := 0; i < simplex.Count; i++ {
		witnessA = witnessA.Add(simplex.Points[i].WitnessA.Mul(weights[i]))
		witnessB = witnessB.Add(simplex.Points[i].WitnessB.Mul(weights[i]))
	}

	d := contact.NewDetails(a, b)
	// closest = witnessA - witnessB points from B to A
	d.Normal = closest.Mul(1 / distance)
	d.Depth = cfg.ContactMargin - distance
	d.SetWitnesses(witnessA, witnessB)
	return d
}

// ClosestPoint returns the point of a simplex of at most 3 points closest to the
// origin, with the barycentric weight of each simplex point
func ClosestPoint(simplex *Simplex) (mgl64.Vec3, [4]float64) {
	var weights [4]float64
	switch simplex.Count {
	case 1:
		weights[0] = 1
		return simplex.Points[0].Point, weights
	case 2:
		t := closestOnSegment(simplex.Points[0].Point, simplex.Points[1].Point)
		weights[0], weights[1] = 1-t, t
	case 3:
		u, v, w := ClosestOnTriangle(mgl64.Vec3{}, simplex.Points[0].Point, simplex.Points[1].Point, simplex.Points[2].Point)
		weights[0], weights[1], weights[2] = u, v, w
	}

	var closest mgl64.Vec3
	for i := 0; i < simplex.Count; i++ {
		closest = closest.Add(simplex.Points[i].Point.Mul(weights[i]))
	}
	return closest, weights
}

// closestOnSegment returns the parameter t of the point a + t*(b-a) closest to the origin
func closestOnSegment(a, b mgl64.Vec3) float64 {
	ab := b.Sub(a)
	lenSqr := ab.LenSqr()
	if lenSqr == 0 {
		return 0
	}
	t := -a.Dot(ab) / lenSqr
	return math.Max(0, math.Min(1, t))
}

// ClosestOnTriangle returns the barycentric coordinates (u, v, w) of the point of
// triangle abc closest to p, so that closest = u*a + v*b + w*c.
// Real-Time Collision Detection, Ericson, 5.1.5.
func ClosestOnTriangle(p, a, b, c mgl64.Vec3) (float64, float64, float64) {
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)

	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return 1, 0, 0
	}

	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return 0, 1, 0
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return 1 - v, v, 0
	}

	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return 0, 0, 1
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return 1 - w, 0, w
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return 0, 1 - w, w
	}

	denom := 1 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	return 1 - v - w, v, w
}

// containsOrigin tests if the simplex contains the origin and refines the simplex.
//
// This is the heart of GJK - it determines which feature of the simplex (point, edge, face)
// is closest to the origin, keeps only the relevant points, and updates the search direction.
//
// Behavior by simplex dimension:
//   - 2 points (line): Test Voronoi regions, reduce to closest point or keep edge
//   - 3 points (triangle): Test Voronoi regions, reduce to closest edge or keep face
//   - 4 points (tetrahedron): Test if origin is inside; if not, reduce to closest face
//
// Returns true only for a tetrahedron enclosing the origin.
func containsOrigin(simplex *Simplex, direction *mgl64.Vec3, epsilon float64) bool {
	switch simplex.Count {
	case 2:
		line(simplex, direction, epsilon)
	case 3:
		triangle(simplex, direction, epsilon)
	case 4:
		return tetrahedron(simplex, direction, epsilon)
	}
	return false
}

// line handles the line simplex case (2 points: A and B).
// A is the most recent point.
func line(simplex *Simplex, direction *mgl64.Vec3, epsilon float64) {
	a := simplex.Points[1]
	b := simplex.Points[0]
	ab := b.Point.Sub(a.Point)
	ao := a.Point.Mul(-1)

	// Origin is behind A: B cannot help, retry from A alone
	if ab.Dot(ao) <= 0 {
		simplex.set(a)
		*direction = ao
		return
	}

	// Origin is in Voronoi region AB
	abPerp := ab.Cross(ao).Cross(ab)
	if abPerp.LenSqr() > epsilon*epsilon {
		*direction = abPerp
		return
	}

	// The origin lies on the segment line: any direction perpendicular to AB will do
	axis := ab.Normalize()
	fallback := mgl64.Vec3{1 - math.Abs(axis.X()), 1 - math.Abs(axis.Y()), 1 - math.Abs(axis.Z())}
	fallback = fallback.Sub(axis.Mul(fallback.Dot(axis)))
	if fallback.LenSqr() < epsilon*epsilon {
		fallback = axis.Cross(mgl64.Vec3{0, 0, 1})
	}
	*direction = fallback
}

// triangle handles the triangle simplex case (3 points: A, B, C).
//
// Tests which Voronoi region contains the origin:
//   - Region AB: Origin closest to edge AB
//   - Region AC: Origin closest to edge AC
//   - Region ABC (above): Origin above triangle plane
//   - Region ABC (below): Origin below triangle plane
//
// Degenerate case: If points are collinear (flat triangle), treats as line instead.
func triangle(simplex *Simplex, direction *mgl64.Vec3, epsilon float64) {
	a := simplex.Points[2] // Most recent point
	b := simplex.Points[1]
	c := simplex.Points[0]

	ab := b.Point.Sub(a.Point)
	ac := c.Point.Sub(a.Point)
	ao := a.Point.Mul(-1)

	abc := ab.Cross(ac) // Triangle normal

	// Colinear points, keep A and B
	if abc.LenSqr() < epsilon*epsilon {
		simplex.set(b, a)
		line(simplex, direction, epsilon)
		return
	}

	// Region AC (edge)
	if outside(abc.Cross(ac), ao, epsilon) {
		if ac.Dot(ao) > 0 {
			simplex.set(c, a)
			*direction = ac.Cross(ao).Cross(ac)
			return
		}
		simplex.set(b, a)
		line(simplex, direction, epsilon)
		return
	}

	// Region AB (edge)
	if outside(ab.Cross(abc), ao, epsilon) {
		simplex.set(b, a)
		line(simplex, direction, epsilon)
		return
	}

	// Origin is above or below the triangle
	if abc.Dot(ao) > 0 {
		*direction = abc
	} else {
		// Below, reverse order to maintain correct orientation
		simplex.set(b, c, a)
		*direction = abc.Mul(-1)
	}
}

// tetrahedron handles the tetrahedron simplex case (4 points: A, B, C, D).
//
// Tests if origin is inside the tetrahedron by checking which side of each face
// the origin lies on:
//   - If outside face ABC → reduce to triangle ABC
//   - If outside face ACD → reduce to triangle ACD
//   - If outside face ADB → reduce to triangle ADB
//   - If inside all faces → origin contained, collision!
//
// Face normals must point outward (away from the 4th vertex).
// An origin on a face or an edge, within epsilon, is inside.
func tetrahedron(simplex *Simplex, direction *mgl64.Vec3, epsilon float64) bool {
	a := simplex.Points[3] // Most recent point
	b := simplex.Points[2]
	c := simplex.Points[1]
	d := simplex.Points[0]

	ab := b.Point.Sub(a.Point)
	ac := c.Point.Sub(a.Point)
	ad := d.Point.Sub(a.Point)
	ao := a.Point.Mul(-1)

	// Face ABC (opposite to D)
	abc := ab.Cross(ac)
	if abc.Dot(ad) > 0 {
		abc = abc.Mul(-1)
	}

	// Face ACD (opposite to B)
	acd := ac.Cross(ad)
	if acd.Dot(ab) > 0 {
		acd = acd.Mul(-1)
	}

	// Face ADB (opposite to C)
	adb := ad.Cross(ab)
	if adb.Dot(ac) > 0 {
		adb = adb.Mul(-1)
	}

	// Flat tetrahedron, D brings nothing
	if math.Abs(abc.Dot(ad)) < epsilon*epsilon {
		simplex.set(c, b, a)
		triangle(simplex, direction, epsilon)
		return false
	}

	// Face ABC
	if outside(abc, ao, epsilon) {
		simplex.set(c, b, a)
		triangle(simplex, direction, epsilon)
		return false
	}

	// Face ACD
	if outside(acd, ao, epsilon) {
		simplex.set(d, c, a)
		triangle(simplex, direction, epsilon)
		return false
	}

	// Face ADB
	if outside(adb, ao, epsilon) {
		simplex.set(b, d, a)
		triangle(simplex, direction, epsilon)
		return false
	}

	// The origin is inside the tetrahedron
	return true
}

// outside reports whether the origin lies more than epsilon beyond the plane of
// normal, ao being the origin seen from a point of that plane.
// normal is not unit length.
func outside(normal, ao mgl64.Vec3, epsilon float64) bool {
	return normal.Dot(ao) > epsilon*normal.Len()
}
