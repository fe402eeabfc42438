package contact

import (
	"fmt"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/config"
	"github.com/akmonengine/impulse/pool"
	"github.com/go-gl/mathgl/mgl64"
)

// MaxPoints is the capacity of a manifold
const MaxPoints = 4

// debugAsserts turns invariant violations into panics, tests enable it
var debugAsserts = false

// Manifold - persistent set of up to 4 contact points between two bodies
type Manifold struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody

	Points [MaxPoints]*Details
	Count  int

	cfg config.GeometryConfig
}

var manifoldPool = pool.New[Manifold](nil)

func newManifold(a, b *actor.RigidBody, cfg config.GeometryConfig) *Manifold {
	m := manifoldPool.Acquire()
	m.BodyA = a
	m.BodyB = b
	m.cfg = cfg
	return m
}

// Matches reports whether the manifold belongs to the unordered pair (a, b)
func (m *Manifold) Matches(a, b *actor.RigidBody) bool {
	return (m.BodyA == a && m.BodyB == b) || (m.BodyA == b && m.BodyB == a)
}

// Contacts returns the live points
func (m *Manifold) Contacts() []*Details {
	return m.Points[:m.Count]
}

// AddContact stores a contact and takes ownership of it.
// A contact within ContactDedupe of an existing point is destroyed and false is returned.
// When the manifold is full, one point is replaced: the deepest existing point
// is always kept, and the replacement keeping the largest contact area wins.
func (m *Manifold) AddContact(d *Details) bool {
	if d.BodyA != m.BodyA {
		d.Swap()
	}

	// 1. reject duplicates
	dedupeSqr := m.cfg.ContactDedupe * m.cfg.ContactDedupe
	for _, existing := range m.Contacts() {
		if existing.Point.Sub(d.Point).LenSqr() < dedupeSqr {
			d.Destroy()
			return false
		}
	}

	if debugAsserts && m.Count > MaxPoints {
		panic(fmt.Sprintf("contact: manifold holds %d points", m.Count))
	}

	// 2. room left
	if m.Count < MaxPoints {
		m.Points[m.Count] = d
		m.Count++
		return true
	}

	// 3. replace the weakest point
	i := m.replacementIndex(d)
	m.Points[i].Destroy()
	m.Points[i] = d
	return true
}

// replacementIndex picks the point whose replacement by d keeps the largest area
func (m *Manifold) replacementIndex(d *Details) int {
	deepest := -1
	maxDepth := d.Depth
	for i, p := range m.Points {
		if p.Depth > maxDepth {
			maxDepth = p.Depth
			deepest = i
		}
	}

	p0, p1, p2, p3 := m.Points[0].Point, m.Points[1].Point, m.Points[2].Point, m.Points[3].Point
	candidate := d.Point
	areas := [MaxPoints]float64{
		quadArea(candidate.Sub(p1), p3.Sub(p2)),
		quadArea(candidate.Sub(p0), p3.Sub(p2)),
		quadArea(candidate.Sub(p0), p3.Sub(p1)),
		quadArea(candidate.Sub(p0), p2.Sub(p1)),
	}

	best := -1
	for i, area := range areas {
		if i == deepest {
			continue
		}
		if best < 0 || area > areas[best] {
			best = i
		}
	}
	return best
}

// quadArea - squared cross product of the two diagonals of the quadrilateral
func quadArea(diagonal1, diagonal2 mgl64.Vec3) float64 {
	return diagonal1.Cross(diagonal2).LenSqr()
}

// Update recomputes every point from the current body transforms and drops
// the points separated beyond ContactBreakDepth or drifted beyond ContactDrift.
// It returns the number of points dropped.
func (m *Manifold) Update() int {
	driftSqr := m.cfg.ContactDrift * m.cfg.ContactDrift
	kept := 0
	for _, d := range m.Contacts() {
		worldA := d.WorldA()
		worldB := d.WorldB()
		d.Point = worldA.Add(worldB).Mul(0.5)

		separation := worldB.Sub(worldA)
		d.Depth = separation.Dot(d.Normal) + m.cfg.ContactMargin

		tangential := separation.Sub(d.Normal.Mul(separation.Dot(d.Normal)))
		if d.Depth < m.cfg.ContactBreakDepth || tangential.LenSqr() > driftSqr {
			d.Destroy()
			continue
		}

		m.Points[kept] = d
		kept++
	}

	dropped := m.Count - kept
	for i := kept; i < m.Count; i++ {
		m.Points[i] = nil
	}
	m.Count = kept

	return dropped
}

// clear destroys every point
func (m *Manifold) clear() {
	for i := 0; i < m.Count; i++ {
		m.Points[i].Destroy()
		m.Points[i] = nil
	}
	m.Count = 0
}

// DeepestContact returns the point with the largest depth, nil when empty
func (m *Manifold) DeepestContact() *Details {
	var deepest *Details
	for _, d := range m.Contacts() {
		if deepest == nil || d.Depth > deepest.Depth {
			deepest = d
		}
	}
	return deepest
}
