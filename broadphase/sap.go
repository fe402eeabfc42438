package broadphase

import (
	"github.com/akmonengine/impulse/actor"
	"github.com/go-gl/mathgl/mgl64"
)

type markerKind uint8

const (
	markerStart markerKind = iota
	markerEnd
)

// marker is one end of a body interval on one axis
type marker struct {
	kind     markerKind
	body     *actor.RigidBody
	position float64

	prev *marker
	next *marker
}

// axisList is a doubly linked list of markers sorted by position
type axisList struct {
	head *marker
	tail *marker
}

func (l *axisList) pushBack(m *marker) {
	m.prev = l.tail
	m.next = nil
	if l.tail != nil {
		l.tail.next = m
	} else {
		l.head = m
	}
	l.tail = m
}

func (l *axisList) unlink(m *marker) {
	if m.prev != nil {
		m.prev.next = m.next
	} else {
		l.head = m.next
	}
	if m.next != nil {
		m.next.prev = m.prev
	} else {
		l.tail = m.prev
	}
	m.prev = nil
	m.next = nil
}

// swapWithPrev moves m one slot to the left
func (l *axisList) swapWithPrev(m *marker) {
	p := m.prev
	before := p.prev
	after := m.next

	if before != nil {
		before.next = m
	} else {
		l.head = m
	}
	if after != nil {
		after.prev = p
	} else {
		l.tail = p
	}
	m.prev = before
	m.next = p
	p.prev = m
	p.next = after
}

// sortsBefore orders by position, a START comes before an END at equal position
func sortsBefore(a, b *marker) bool {
	if a.position != b.position {
		return a.position < b.position
	}
	return a.kind == markerStart && b.kind == markerEnd
}

// pairKey packs two body ids, lowest first
type pairKey struct {
	lo, hi uint64
}

func makePairKey(a, b *actor.RigidBody) pairKey {
	if b.Id < a.Id {
		return pairKey{lo: b.Id, hi: a.Id}
	}
	return pairKey{lo: a.Id, hi: b.Id}
}

type bodyMarkers [3][2]*marker

// SweepAndPrune - incremental sort and sweep broadphase.
// Each axis keeps the interval markers of every body sorted; while re-sorting,
// every START/END swap of two bodies toggles their overlap on that axis.
// A pair overlaps once it overlaps on all three axes.
type SweepAndPrune struct {
	axes    [3]axisList
	markers map[*actor.RigidBody]*bodyMarkers
	pending []*actor.RigidBody

	overlaps map[pairKey]int
	pairs    []Pair
	index    map[pairKey]int

	// RayIntersect scratch, kept across calls
	rayActive     map[*actor.RigidBody]bool
	raySeen       map[*actor.RigidBody]bool
	rayOpened     []*actor.RigidBody
	rayCandidates []*actor.RigidBody
}

func NewSweepAndPrune() *SweepAndPrune {
	return &SweepAndPrune{
		markers:  make(map[*actor.RigidBody]*bodyMarkers),
		overlaps:  make(map[pairKey]int),
		index:     make(map[pairKey]int),
		rayActive: make(map[*actor.RigidBody]bool),
		raySeen:   make(map[*actor.RigidBody]bool),
	}
}

// AddBody queues a body, its markers are inserted at the next Update
func (s *SweepAndPrune) AddBody(body *actor.RigidBody) {
	if _, ok := s.markers[body]; ok {
		return
	}
	for _, p := range s.pending {
		if p == body {
			return
		}
	}
	s.pending = append(s.pending, body)
}

// RemoveBody purges the markers, counters and pairs of a body.
// A body still waiting for insertion is simply dropped from the queue.
func (s *SweepAndPrune) RemoveBody(body *actor.RigidBody) {
	for i, p := range s.pending {
		if p == body {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}

	markers, ok := s.markers[body]
	if !ok {
		return
	}
	for axis := 0; axis < 3; axis++ {
		s.axes[axis].unlink(markers[axis][0])
		s.axes[axis].unlink(markers[axis][1])
	}
	delete(s.markers, body)

	for key := range s.overlaps {
		if key.lo == body.Id || key.hi == body.Id {
			delete(s.overlaps, key)
		}
	}
	for i := len(s.pairs) - 1; i >= 0; i-- {
		if s.pairs[i].BodyA == body || s.pairs[i].BodyB == body {
			s.removePairAt(i)
		}
	}
}

// Update inserts the pending bodies then re-sorts every axis from the current AABBs
func (s *SweepAndPrune) Update() {
	// 1. insertion of the new bodies
	for _, body := range s.pending {
		s.insert(body)
	}
	s.pending = s.pending[:0]

	// 2. refresh every marker position
	for body, markers := range s.markers {
		aabb := body.AABB()
		for axis := 0; axis < 3; axis++ {
			markers[axis][0].position = aabb.Min[axis]
			markers[axis][1].position = aabb.Max[axis]
		}
	}

	// 3. insertion sort, swaps update the counters
	for axis := 0; axis < 3; axis++ {
		for m := s.axes[axis].head; m != nil; {
			next := m.next
			s.sortBackward(axis, m)
			m = next
		}
	}
}

func (s *SweepAndPrune) CollisionPairs() []Pair {
	return s.pairs
}

// Len is the number of bodies tracked, pending ones included
func (s *SweepAndPrune) Len() int {
	return len(s.markers) + len(s.pending)
}

func (s *SweepAndPrune) insert(body *actor.RigidBody) {
	aabb := body.AABB()
	markers := &bodyMarkers{}
	s.markers[body] = markers

	for axis := 0; axis < 3; axis++ {
		start := &marker{kind: markerStart, body: body, position: aabb.Min[axis]}
		end := &marker{kind: markerEnd, body: body, position: aabb.Max[axis]}
		markers[axis] = [2]*marker{start, end}

		// appended at the tail: nothing overlaps yet, the sort adds what it passes
		s.axes[axis].pushBack(start)
		s.sortBackward(axis, start)
		s.axes[axis].pushBack(end)
		s.sortBackward(axis, end)
	}
}

// sortBackward bubbles m to the left until it is in order
func (s *SweepAndPrune) sortBackward(axis int, m *marker) {
	list := &s.axes[axis]
	for m.prev != nil && sortsBefore(m, m.prev) {
		p := m.prev
		if p.body != m.body {
			switch {
			case m.kind == markerStart && p.kind == markerEnd:
				s.increment(m.body, p.body)
			case m.kind == markerEnd && p.kind == markerStart:
				s.decrement(m.body, p.body)
			}
		}
		list.swapWithPrev(m)
	}
}

func (s *SweepAndPrune) increment(a, b *actor.RigidBody) {
	key := makePairKey(a, b)
	s.overlaps[key]++
	if s.overlaps[key] == 3 {
		s.index[key] = len(s.pairs)
		s.pairs = append(s.pairs, makePair(a, b))
	}
}

func (s *SweepAndPrune) decrement(a, b *actor.RigidBody) {
	key := makePairKey(a, b)
	count := s.overlaps[key]
	if count == 3 {
		if i, ok := s.index[key]; ok {
			s.removePairAt(i)
		}
	}
	if count <= 1 {
		delete(s.overlaps, key)
		return
	}
	s.overlaps[key] = count - 1
}

// removePairAt removes a pair keeping the insertion order of the others
func (s *SweepAndPrune) removePairAt(i int) {
	delete(s.index, makePairKey(s.pairs[i].BodyA, s.pairs[i].BodyB))
	copy(s.pairs[i:], s.pairs[i+1:])
	s.pairs[len(s.pairs)-1] = Pair{}
	s.pairs = s.pairs[:len(s.pairs)-1]
	for j := i; j < len(s.pairs); j++ {
		s.index[makePairKey(s.pairs[j].BodyA, s.pairs[j].BodyB)] = j
	}
}

// RayIntersect scans the X axis between the segment ends.
// Bodies active across the whole span are tested directly against their shape,
// bodies entering or leaving inside the span must first pass the AABB slab test.
func (s *SweepAndPrune) RayIntersect(start, end mgl64.Vec3) []*RayIntersection {
	minX, maxX := start.X(), end.X()
	if minX > maxX {
		minX, maxX = maxX, minX
	}

	active, seen := s.rayActive, s.raySeen
	opened, candidates := s.rayOpened[:0], s.rayCandidates[:0]
	defer func() {
		clear(active)
		clear(seen)
		clear(opened)
		clear(candidates)
		s.rayOpened, s.rayCandidates = opened[:0], candidates[:0]
	}()
	addCandidate := func(body *actor.RigidBody) {
		if !seen[body] {
			seen[body] = true
			candidates = append(candidates, body)
		}
	}

	m := s.axes[0].head
	// 1. bodies already open before the segment starts
	for ; m != nil && m.position < minX; m = m.next {
		if m.kind == markerStart {
			active[m.body] = true
			opened = append(opened, m.body)
		} else {
			delete(active, m.body)
		}
	}

	// 2. bodies entering or leaving inside the span
	for ; m != nil && m.position <= maxX; m = m.next {
		if m.kind == markerEnd {
			delete(active, m.body)
		}
		addCandidate(m.body)
	}

	var hits []*RayIntersection
	segment := segmentAABB(start, end)

	// invariant bodies span the whole x extent of the segment
	for _, body := range opened {
		if !active[body] || seen[body] {
			continue
		}
		if !body.AABB().Overlaps(segment) {
			continue
		}
		hits = castRay(hits, body, start, end)
	}

	for _, body := range candidates {
		if _, _, ok := body.AABB().IntersectSegment(start, end); !ok {
			continue
		}
		hits = castRay(hits, body, start, end)
	}

	sortHits(hits)
	return hits
}
