// Package broadphase finds the body pairs whose bounding boxes overlap.
//
// Two implementations share the Broadphase interface: SweepAndPrune keeps sorted
// interval markers per axis and updates its pairs incrementally, Grid hashes
// bodies into a uniform grid and rebuilds its pairs on every update.
package broadphase

import (
	"slices"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/pool"
	"github.com/go-gl/mathgl/mgl64"
)

// Pair - two bodies whose AABBs overlap. BodyA has the lowest id.
type Pair struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func makePair(a, b *actor.RigidBody) Pair {
	if b.Id < a.Id {
		a, b = b, a
	}
	return Pair{BodyA: a, BodyB: b}
}

// RayIntersection is a hit of a segment against one body
type RayIntersection struct {
	Body   *actor.RigidBody
	Point  mgl64.Vec3
	Normal mgl64.Vec3
	// T is the fraction along the segment, in [0, 1]
	T float64
}

// RayIntersectionPool holds the results returned by RayIntersect
var RayIntersectionPool = pool.New[RayIntersection](nil)

// ReleaseRayIntersections hands a RayIntersect result back to the pool
func ReleaseRayIntersections(hits []*RayIntersection) {
	for _, hit := range hits {
		RayIntersectionPool.Release(hit)
	}
}

type Broadphase interface {
	// AddBody registers a body, it is taken into account at the next Update
	AddBody(body *actor.RigidBody)
	// RemoveBody forgets a body and every pair involving it immediately
	RemoveBody(body *actor.RigidBody)
	// Update refreshes the pairs from the current body AABBs
	Update()
	// CollisionPairs returns the overlapping pairs found by the last Update
	CollisionPairs() []Pair
	// RayIntersect returns every body hit by the segment, sorted by distance
	RayIntersect(start, end mgl64.Vec3) []*RayIntersection
}

// castRay runs the exact shape test of a candidate and appends the hit
func castRay(hits []*RayIntersection, body *actor.RigidBody, start, end mgl64.Vec3) []*RayIntersection {
	t, normal, ok := body.RayCast(start, end)
	if !ok {
		return hits
	}

	hit := RayIntersectionPool.Acquire()
	hit.Body = body
	hit.T = t
	hit.Normal = normal
	hit.Point = start.Add(end.Sub(start).Mul(t))

	return append(hits, hit)
}

func sortHits(hits []*RayIntersection) {
	slices.SortStableFunc(hits, func(a, b *RayIntersection) int {
		switch {
		case a.T < b.T:
			return -1
		case a.T > b.T:
			return 1
		}
		return 0
	})
}

func segmentAABB(start, end mgl64.Vec3) actor.AABB {
	return actor.AABB{Min: start, Max: start}.Union(actor.AABB{Min: end, Max: end})
}
