// Package narrowphase turns broadphase candidate pairs into contact points.
//
// Pairs are dispatched by shape type: compounds are split into their children,
// sphere and plane pairs use closed-form routines, and every other convex pair
// goes through GJK, then EPA when GJK found an overlap deeper than the margin.
// Contacts are stored in persistent manifolds that survive across steps.
package narrowphase

import (
	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/broadphase"
	"github.com/akmonengine/impulse/config"
	"github.com/akmonengine/impulse/contact"
	"github.com/akmonengine/impulse/epa"
	"github.com/akmonengine/impulse/gjk"
	"github.com/akmonengine/impulse/logging"
	"github.com/akmonengine/impulse/pool"
)

// proxyPool holds the temporary bodies standing for compound children
var proxyPool = pool.New[actor.RigidBody](nil)

type NarrowPhase struct {
	manifolds *contact.ManifoldList
	cfg       config.GeometryConfig
	logger    logging.Logger

	// scratch storage for the contacts of one pair
	contacts []*contact.Details
}

func New(cfg config.GeometryConfig, logger logging.Logger) *NarrowPhase {
	return &NarrowPhase{
		manifolds: contact.NewManifoldList(cfg),
		cfg:       cfg,
		logger:    logging.OrNop(logger),
	}
}

// Manifolds returns the persistent contact manifolds
func (n *NarrowPhase) Manifolds() *contact.ManifoldList {
	return n.manifolds
}

// CanCollide reports whether a pair needs a contact test at all:
// two static bodies never do, and each body group must be accepted by the other mask
func CanCollide(a, b *actor.RigidBody) bool {
	if a == b || (a.IsStatic() && b.IsStatic()) {
		return false
	}
	return a.CollisionGroup&b.CollisionMask != 0 && b.CollisionGroup&a.CollisionMask != 0
}

// GenerateContacts ages the existing manifolds, then adds the contacts of every pair.
// It returns the number of contact points stored.
func (n *NarrowPhase) GenerateContacts(pairs []broadphase.Pair) int {
	n.manifolds.Update()

	added := 0
	for _, pair := range pairs {
		if !CanCollide(pair.BodyA, pair.BodyB) {
			continue
		}

		n.contacts = n.getContact(pair.BodyA, pair.BodyB, n.contacts[:0])
		for _, d := range n.contacts {
			if d.Depth < n.cfg.ContactBreakDepth {
				// would be dropped by the next manifold update
				d.Destroy()
				continue
			}
			if n.manifolds.AddContact(d) {
				added++
			}
		}
		clear(n.contacts)
	}
	return added
}

// getContact appends the contacts between a and b. Every contact has BodyA == a.
func (n *NarrowPhase) getContact(a, b *actor.RigidBody, contacts []*contact.Details) []*contact.Details {
	if compound, ok := a.Shape.(*actor.Compound); ok {
		return n.compoundContact(a, compound, b, contacts, false)
	}
	if compound, ok := b.Shape.(*actor.Compound); ok {
		return n.compoundContact(b, compound, a, contacts, true)
	}

	switch sa := a.Shape.(type) {
	case *actor.Sphere:
		switch sb := b.Shape.(type) {
		case *actor.Sphere:
			return appendContact(contacts, sphereSphere(a, sa, b, sb, n.cfg))
		case *actor.Box:
			return appendContact(contacts, sphereBox(a, sa, b, sb, n.cfg))
		case *actor.Plane:
			return appendContact(contacts, spherePlane(a, sa, b, sb, n.cfg))
		}
	case *actor.Box:
		switch sb := b.Shape.(type) {
		case *actor.Sphere:
			return appendContact(contacts, swapped(sphereBox(b, sb, a, sa, n.cfg)))
		case *actor.Plane:
			return boxPlane(a, sa, b, sb, n.cfg, contacts)
		}
	case *actor.Plane:
		switch sb := b.Shape.(type) {
		case *actor.Sphere:
			return appendContact(contacts, swapped(spherePlane(b, sb, a, sa, n.cfg)))
		case *actor.Box:
			first := len(contacts)
			contacts = boxPlane(b, sb, a, sa, n.cfg, contacts)
			for _, d := range contacts[first:] {
				d.Swap()
			}
			return contacts
		case *actor.Plane:
			return contacts
		}
	}

	return appendContact(contacts, n.convexContact(a, b))
}

// convexContact runs GJK then EPA
func (n *NarrowPhase) convexContact(a, b *actor.RigidBody) *contact.Details {
	result, colliding := gjk.GJK(a, b, n.cfg)
	if !colliding {
		return nil
	}
	if result.Contact != nil {
		return result.Contact
	}

	d, err := epa.EPA(a, b, result.Simplex, n.cfg)
	if err != nil {
		n.logger.Debugf("narrowphase: no contact between %s and %s: %v", a.Name, b.Name, err)
		return nil
	}
	return d
}

// compoundContact collides every child of the compound body with other,
// through a proxy body placed at the child world transform.
// Each contact is moved back onto the compound body, on side B when reversed.
func (n *NarrowPhase) compoundContact(body *actor.RigidBody, compound *actor.Compound, other *actor.RigidBody, contacts []*contact.Details, reversed bool) []*contact.Details {
	otherAABB := other.AABB()
	for _, child := range compound.Children {
		proxy := newProxy(body, child)
		if !proxy.AABB().Overlaps(otherAABB) {
			proxyPool.Release(proxy)
			continue
		}

		first := len(contacts)
		if reversed {
			contacts = n.getContact(other, proxy, contacts)
		} else {
			contacts = n.getContact(proxy, other, contacts)
		}

		for _, d := range contacts[first:] {
			if reversed {
				world := d.WorldB()
				d.BodyB = body
				d.LocalB = body.ToLocal(world)
			} else {
				world := d.WorldA()
				d.BodyA = body
				d.LocalA = body.ToLocal(world)
			}
		}
		proxyPool.Release(proxy)
	}
	return contacts
}

// newProxy builds a body made of the child shape only, sharing the parent identity and material
func newProxy(parent *actor.RigidBody, child actor.CompoundChild) *actor.RigidBody {
	proxy := proxyPool.Acquire()
	proxy.Id = parent.Id
	proxy.Name = parent.Name
	proxy.Transform = parent.Transform.Compose(child.Offset)
	proxy.Shape = child.Shape
	proxy.Material = parent.Material
	proxy.BodyType = parent.BodyType
	proxy.InverseMass = parent.InverseMass
	proxy.CollisionGroup = parent.CollisionGroup
	proxy.CollisionMask = parent.CollisionMask
	proxy.IsTrigger = parent.IsTrigger
	proxy.UpdateAABB()
	return proxy
}

func appendContact(contacts []*contact.Details, d *contact.Details) []*contact.Details {
	if d == nil {
		return contacts
	}
	return append(contacts, d)
}

func swapped(d *contact.Details) *contact.Details {
	if d != nil {
		d.Swap()
	}
	return d
}
