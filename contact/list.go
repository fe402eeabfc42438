package contact

import (
	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/config"
)

// ManifoldListener is notified when a manifold starts or ends
type ManifoldListener func(m *Manifold)

// ManifoldList - the live manifolds in creation order.
// Lookup is linear: manifolds are few compared to bodies.
type ManifoldList struct {
	manifolds []*Manifold
	cfg       config.GeometryConfig

	onBegin []ManifoldListener
	onEnd   []ManifoldListener
}

func NewManifoldList(cfg config.GeometryConfig) *ManifoldList {
	return &ManifoldList{cfg: cfg}
}

// OnBegin registers a listener called once a manifold is created
func (l *ManifoldList) OnBegin(listener ManifoldListener) {
	l.onBegin = append(l.onBegin, listener)
}

// OnEnd registers a listener called right before a manifold is destroyed
func (l *ManifoldList) OnEnd(listener ManifoldListener) {
	l.onEnd = append(l.onEnd, listener)
}

func (l *ManifoldList) Manifolds() []*Manifold {
	return l.manifolds
}

func (l *ManifoldList) Len() int {
	return len(l.manifolds)
}

// Find returns the manifold of the unordered pair, nil if none
func (l *ManifoldList) Find(a, b *actor.RigidBody) *Manifold {
	for _, m := range l.manifolds {
		if m.Matches(a, b) {
			return m
		}
	}
	return nil
}

// GetManifoldForObjects returns the manifold of the unordered pair, creating it if needed
func (l *ManifoldList) GetManifoldForObjects(a, b *actor.RigidBody) *Manifold {
	if m := l.Find(a, b); m != nil {
		return m
	}

	m := newManifold(a, b, l.cfg)
	l.manifolds = append(l.manifolds, m)
	for _, listener := range l.onBegin {
		listener(m)
	}
	return m
}

// AddContact routes a contact to the manifold of its bodies
func (l *ManifoldList) AddContact(d *Details) bool {
	return l.GetManifoldForObjects(d.BodyA, d.BodyB).AddContact(d)
}

// Update ages every manifold and drops the empty ones
func (l *ManifoldList) Update() {
	kept := 0
	for _, m := range l.manifolds {
		m.Update()
		if m.Count == 0 {
			l.destroy(m)
			continue
		}
		l.manifolds[kept] = m
		kept++
	}
	clear(l.manifolds[kept:])
	l.manifolds = l.manifolds[:kept]
}

// RemoveBody destroys every manifold involving the body
func (l *ManifoldList) RemoveBody(body *actor.RigidBody) {
	kept := 0
	for _, m := range l.manifolds {
		if m.BodyA == body || m.BodyB == body {
			m.clear()
			l.destroy(m)
			continue
		}
		l.manifolds[kept] = m
		kept++
	}
	clear(l.manifolds[kept:])
	l.manifolds = l.manifolds[:kept]
}

// Clear destroys every manifold
func (l *ManifoldList) Clear() {
	for _, m := range l.manifolds {
		m.clear()
		l.destroy(m)
	}
	clear(l.manifolds)
	l.manifolds = l.manifolds[:0]
}

func (l *ManifoldList) destroy(m *Manifold) {
	for _, listener := range l.onEnd {
		listener(m)
	}
	manifoldPool.Release(m)
}
