package impulse

import (
	"slices"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/constraint"
	"github.com/akmonengine/impulse/contact"
)

const (
	TRIGGER_ENTER EventType = iota
	COLLISION_ENTER
	TRIGGER_STAY
	COLLISION_STAY
	TRIGGER_EXIT
	COLLISION_EXIT
	CONSTRAINT_BROKEN
)

type pairKey struct {
	bodyA *actor.RigidBody
	bodyB *actor.RigidBody
}

// makePairKey creates a normalized pair key, the lowest id first
func makePairKey(bodyA, bodyB *actor.RigidBody) pairKey {
	if bodyB.Id < bodyA.Id {
		bodyA, bodyB = bodyB, bodyA
	}

	return pairKey{bodyA: bodyA, bodyB: bodyB}
}

func (p pairKey) isTrigger() bool {
	return p.bodyA.IsTrigger || p.bodyB.IsTrigger
}

type EventType uint8

// Event interface - all events implement this
type Event interface {
	Type() EventType
}

// Trigger events
type TriggerEnterEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e TriggerEnterEvent) Type() EventType { return TRIGGER_ENTER }

type TriggerStayEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e TriggerStayEvent) Type() EventType { return TRIGGER_STAY }

type TriggerExitEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e TriggerExitEvent) Type() EventType { return TRIGGER_EXIT }

// Collision events
type CollisionEnterEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e CollisionEnterEvent) Type() EventType { return COLLISION_ENTER }

type CollisionStayEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e CollisionStayEvent) Type() EventType { return COLLISION_STAY }

type CollisionExitEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e CollisionExitEvent) Type() EventType { return COLLISION_EXIT }

// ConstraintBrokenEvent is sent once a joint exceeded its breaking threshold.
// The constraint is purged at the next step.
type ConstraintBrokenEvent struct {
	Constraint constraint.Constrainer
	// Impulse is the linear impulse applied on BodyA during the breaking step
	Impulse float64
}

func (e ConstraintBrokenEvent) Type() EventType { return CONSTRAINT_BROKEN }

// EventListener - callback for events
type EventListener func(event Event)

// Events manager.
// Pairs are tracked from the contact manifolds: a manifold begins with its first
// contact point and ends once its last point is dropped.
type Events struct {
	// Listeners by event type
	listeners map[EventType][]EventListener

	// Event buffer to send at flush
	buffer []Event

	// manifold begin and end since the last flush, in order
	changes []pairChange
	// live pairs, in manifold creation order
	active []pairKey
}

type pairChange struct {
	pair  pairKey
	alive bool
}

func NewEvents() Events {
	return Events{
		listeners: make(map[EventType][]EventListener),
		buffer:    make([]Event, 0, 256),
	}
}

// Subscribe adds a listener for an event type
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

// observe hooks the events to the begin and end of the manifolds
func (e *Events) observe(list *contact.ManifoldList) {
	list.OnBegin(func(m *contact.Manifold) {
		e.changes = append(e.changes, pairChange{pair: makePairKey(m.BodyA, m.BodyB), alive: true})
	})
	list.OnEnd(func(m *contact.Manifold) {
		e.changes = append(e.changes, pairChange{pair: makePairKey(m.BodyA, m.BodyB), alive: false})
	})
}

// emitBroken buffers a broken constraint, called from the solver listener
func (e *Events) emitBroken(c constraint.Constrainer) {
	e.buffer = append(e.buffer, ConstraintBrokenEvent{
		Constraint: c,
		Impulse:    c.Base().LastImpulse.Len(),
	})
}

// forget drops the pairs of a removed body without sending exit events
func (e *Events) forget(body *actor.RigidBody) {
	involves := func(pair pairKey) bool {
		return pair.bodyA == body || pair.bodyB == body
	}
	e.changes = slices.DeleteFunc(e.changes, func(c pairChange) bool { return involves(c.pair) })
	e.active = slices.DeleteFunc(e.active, involves)
}

// processCollisionEvents turns the manifold changes into Enter/Stay/Exit events.
// Should be called once per Step, after all substeps: a pair that ended and began
// again within the step only stays.
func (e *Events) processCollisionEvents() {
	final := make(map[pairKey]bool, len(e.changes))
	var changed []pairKey
	for _, c := range e.changes {
		if _, ok := final[c.pair]; !ok {
			changed = append(changed, c.pair)
		}
		final[c.pair] = c.alive
	}

	wasActive := make(map[pairKey]bool, len(e.active))
	for _, pair := range e.active {
		wasActive[pair] = true
	}

	kept := e.active[:0]
	for _, pair := range e.active {
		if alive, ok := final[pair]; ok && !alive {
			e.emitExit(pair)
			continue
		}
		if pair.isTrigger() {
			e.buffer = append(e.buffer, TriggerStayEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
		} else {
			e.buffer = append(e.buffer, CollisionStayEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
		}
		kept = append(kept, pair)
	}
	clear(e.active[len(kept):])
	e.active = kept

	for _, pair := range changed {
		if wasActive[pair] {
			continue
		}
		if pair.isTrigger() {
			e.buffer = append(e.buffer, TriggerEnterEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
		} else {
			e.buffer = append(e.buffer, CollisionEnterEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
		}

		if final[pair] {
			e.active = append(e.active, pair)
		} else {
			// began and ended within the step
			e.emitExit(pair)
		}
	}

	e.changes = e.changes[:0]
}

func (e *Events) emitExit(pair pairKey) {
	if pair.isTrigger() {
		e.buffer = append(e.buffer, TriggerExitEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
	} else {
		e.buffer = append(e.buffer, CollisionExitEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
	}
}

// flush sends all buffered events and clears the buffer
func (e *Events) flush() {
	e.processCollisionEvents()

	for _, event := range e.buffer {
		if listeners, ok := e.listeners[event.Type()]; ok {
			for _, listener := range listeners {
				listener(event)
			}
		}
	}
	clear(e.buffer)
	e.buffer = e.buffer[:0]
}
