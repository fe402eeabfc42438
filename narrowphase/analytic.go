package narrowphase

import (
	"math"
	"slices"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/config"
	"github.com/akmonengine/impulse/contact"
	"github.com/go-gl/mathgl/mgl64"
)

// Closed-form contacts. Like GJK, they report pairs separated by less than
// cfg.Margins with a negative depth, so resting contacts do not flicker.

// sphereSphere - normal along the center axis, witnesses on each surface
func sphereSphere(a *actor.RigidBody, sa *actor.Sphere, b *actor.RigidBody, sb *actor.Sphere, cfg config.GeometryConfig) *contact.Details {
	delta := a.Transform.Position.Sub(b.Transform.Position)
	distance := delta.Len()
	radii := sa.Radius + sb.Radius
	if distance > radii+cfg.Margins {
		return nil
	}

	normal := mgl64.Vec3{0, 1, 0}
	if distance > cfg.Epsilon {
		normal = delta.Mul(1 / distance)
	}

	d := contact.NewDetails(a, b)
	d.Normal = normal
	d.Depth = radii - distance + cfg.ContactMargin
	d.SetWitnesses(
		a.Transform.Position.Sub(normal.Mul(sa.Radius)),
		b.Transform.Position.Add(normal.Mul(sb.Radius)),
	)
	return d
}

// sphereBox clamps the sphere center into the box. A center inside the box
// is pushed out through the nearest face.
func sphereBox(a *actor.RigidBody, sa *actor.Sphere, b *actor.RigidBody, sb *actor.Box, cfg config.GeometryConfig) *contact.Details {
	center := b.ToLocal(a.Transform.Position)
	half := sb.HalfExtents

	closest := mgl64.Vec3{
		math.Max(-half.X(), math.Min(half.X(), center.X())),
		math.Max(-half.Y(), math.Min(half.Y(), center.Y())),
		math.Max(-half.Z(), math.Min(half.Z(), center.Z())),
	}

	var localNormal mgl64.Vec3
	var depth float64
	delta := center.Sub(closest)
	distance := delta.Len()

	if distance > cfg.Epsilon {
		if distance > sa.Radius+cfg.Margins {
			return nil
		}
		localNormal = delta.Mul(1 / distance)
		depth = sa.Radius - distance
	} else {
		// inside: nearest face
		axis := 0
		faceDistance := math.Inf(1)
		for i := 0; i < 3; i++ {
			if gap := half[i] - math.Abs(center[i]); gap < faceDistance {
				faceDistance = gap
				axis = i
			}
		}
		sign := 1.0
		if center[axis] < 0 {
			sign = -1
		}
		localNormal[axis] = sign
		closest = center
		closest[axis] = sign * half[axis]
		depth = sa.Radius + faceDistance
	}

	normal := b.Transform.Rotation.Rotate(localNormal)

	d := contact.NewDetails(a, b)
	d.Normal = normal
	d.Depth = depth + cfg.ContactMargin
	d.SetWitnesses(a.Transform.Position.Sub(normal.Mul(sa.Radius)), b.ToWorld(closest))
	return d
}

// spherePlane - planes are infinite, only the signed distance of the center matters
func spherePlane(a *actor.RigidBody, sa *actor.Sphere, b *actor.RigidBody, sb *actor.Plane, cfg config.GeometryConfig) *contact.Details {
	center := b.ToLocal(a.Transform.Position)
	distance := sb.SignedDistance(center)
	if distance > sa.Radius+cfg.Margins {
		return nil
	}

	normal := b.Transform.Rotation.Rotate(sb.Normal)
	onPlane := b.ToWorld(center.Sub(sb.Normal.Mul(distance)))

	d := contact.NewDetails(a, b)
	d.Normal = normal
	d.Depth = sa.Radius - distance + cfg.ContactMargin
	d.SetWitnesses(a.Transform.Position.Sub(normal.Mul(sa.Radius)), onPlane)
	return d
}

// boxPlane appends one contact per box corner below the margin, deepest first,
// at most contact.MaxPoints of them
func boxPlane(a *actor.RigidBody, sa *actor.Box, b *actor.RigidBody, sb *actor.Plane, cfg config.GeometryConfig, contacts []*contact.Details) []*contact.Details {
	type corner struct {
		world    mgl64.Vec3
		local    mgl64.Vec3 // in the plane frame
		distance float64
	}

	var candidates [8]corner
	count := 0
	for _, local := range sa.Corners() {
		world := a.ToWorld(local)
		inPlane := b.ToLocal(world)
		distance := sb.SignedDistance(inPlane)
		if distance > cfg.Margins {
			continue
		}
		candidates[count] = corner{world: world, local: inPlane, distance: distance}
		count++
	}

	found := candidates[:count]
	slices.SortStableFunc(found, func(x, y corner) int {
		switch {
		case x.distance < y.distance:
			return -1
		case x.distance > y.distance:
			return 1
		}
		return 0
	})
	if len(found) > contact.MaxPoints {
		found = found[:contact.MaxPoints]
	}

	normal := b.Transform.Rotation.Rotate(sb.Normal)
	for _, c := range found {
		d := contact.NewDetails(a, b)
		d.Normal = normal
		d.Depth = -c.distance + cfg.ContactMargin
		d.SetWitnesses(c.world, b.ToWorld(c.local.Sub(sb.Normal.Mul(c.distance))))
		contacts = append(contacts, d)
	}
	return contacts
}
