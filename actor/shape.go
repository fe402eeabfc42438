package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ShapeType represents the type of collision shape
type ShapeType int

const (
	ShapeTypeSphere ShapeType = iota
	ShapeTypeBox
	ShapeTypePlane
	ShapeTypeCompound
)

// ShapeInterface is the interface that all collision shapes must implement.
// Everything is expressed in the shape's local frame.
type ShapeInterface interface {
	Type() ShapeType
	// LocalAABB returns the bounding box of the shape in local space
	LocalAABB() AABB
	// ComputeAABB calculates the world axis-aligned bounding box at the given transform
	ComputeAABB(transform Transform) AABB
	// ComputeMass calculates mass data for the shape given a density
	ComputeMass(density float64) float64
	ComputeInertia(mass float64) mgl64.Mat3
	// Support returns the furthest local point along a local direction
	Support(direction mgl64.Vec3) mgl64.Vec3
}

// RayCaster is implemented by shapes that have an exact ray routine.
// start and end are in local space; t is the fraction along start->end.
type RayCaster interface {
	RayCast(start, end mgl64.Vec3) (t float64, normal mgl64.Vec3, ok bool)
}

// Box represents an oriented box collision shape
// The box is defined by its half-extents (half-width, half-height, half-depth)
type Box struct {
	HalfExtents mgl64.Vec3
}

func (b *Box) Type() ShapeType { return ShapeTypeBox }

func (b *Box) LocalAABB() AABB {
	return AABB{Min: b.HalfExtents.Mul(-1), Max: b.HalfExtents}
}

func (b *Box) ComputeAABB(transform Transform) AABB {
	return b.LocalAABB().Transformed(transform)
}

// ComputeMass calculates mass data for the box
func (b *Box) ComputeMass(density float64) float64 {
	// Volume = 8 * hx * hy * hz (full dimensions are 2*halfExtents)
	volume := 8.0 * b.HalfExtents.X() * b.HalfExtents.Y() * b.HalfExtents.Z()

	return density * volume
}

func (b *Box) ComputeInertia(mass float64) mgl64.Mat3 {
	x := b.HalfExtents.X() * 2
	y := b.HalfExtents.Y() * 2
	z := b.HalfExtents.Z() * 2

	// I = (m/12) * (d1² + d2²)
	factor := mass / 12.0
	return mgl64.Diag3(mgl64.Vec3{
		factor * (y*y + z*z),
		factor * (x*x + z*z),
		factor * (x*x + y*y),
	})
}

func (b *Box) Support(direction mgl64.Vec3) mgl64.Vec3 {
	hx, hy, hz := b.HalfExtents.X(), b.HalfExtents.Y(), b.HalfExtents.Z()

	if direction.X() < 0 {
		hx = -hx
	}
	if direction.Y() < 0 {
		hy = -hy
	}
	if direction.Z() < 0 {
		hz = -hz
	}

	return mgl64.Vec3{hx, hy, hz}
}

// Corners returns the 8 local vertices of the box
func (b *Box) Corners() [8]mgl64.Vec3 {
	h := b.HalfExtents
	return [8]mgl64.Vec3{
		{-h[0], -h[1], -h[2]},
		{+h[0], -h[1], -h[2]},
		{-h[0], +h[1], -h[2]},
		{+h[0], +h[1], -h[2]},
		{-h[0], -h[1], +h[2]},
		{+h[0], -h[1], +h[2]},
		{-h[0], +h[1], +h[2]},
		{+h[0], +h[1], +h[2]},
	}
}

func (b *Box) RayCast(start, end mgl64.Vec3) (float64, mgl64.Vec3, bool) {
	return b.LocalAABB().IntersectSegment(start, end)
}

// Sphere represents a spherical collision shape
type Sphere struct {
	Radius float64
}

func (s *Sphere) Type() ShapeType { return ShapeTypeSphere }

func (s *Sphere) LocalAABB() AABB {
	r := mgl64.Vec3{s.Radius, s.Radius, s.Radius}
	return AABB{Min: r.Mul(-1), Max: r}
}

// ComputeAABB calculates the axis-aligned bounding box for the sphere.
// Rotation does not affect it.
func (s *Sphere) ComputeAABB(transform Transform) AABB {
	r := mgl64.Vec3{s.Radius, s.Radius, s.Radius}
	return AABB{
		Min: transform.Position.Sub(r),
		Max: transform.Position.Add(r),
	}
}

// ComputeMass calculates mass data for the sphere
func (s *Sphere) ComputeMass(density float64) float64 {
	volume := (4.0 / 3.0) * math.Pi * math.Pow(s.Radius, 3)

	return density * volume
}

func (s *Sphere) ComputeInertia(mass float64) mgl64.Mat3 {
	// I = (2/5) * m * r²
	i := (2.0 / 5.0) * mass * s.Radius * s.Radius
	return mgl64.Diag3(mgl64.Vec3{i, i, i})
}

func (s *Sphere) Support(direction mgl64.Vec3) mgl64.Vec3 {
	length := direction.Len()
	if length < 1e-12 {
		return mgl64.Vec3{s.Radius, 0, 0}
	}
	return direction.Mul(s.Radius / length)
}

func (s *Sphere) RayCast(start, end mgl64.Vec3) (float64, mgl64.Vec3, bool) {
	dir := end.Sub(start)
	a := dir.Dot(dir)
	if a < 1e-12 {
		return 0, mgl64.Vec3{}, false
	}
	b := start.Dot(dir)
	c := start.Dot(start) - s.Radius*s.Radius
	if c <= 0 {
		// segment starts inside
		return 0, mgl64.Vec3{}, true
	}
	discriminant := b*b - a*c
	if discriminant < 0 {
		return 0, mgl64.Vec3{}, false
	}
	t := (-b - math.Sqrt(discriminant)) / a
	if t < 0 || t > 1 {
		return 0, mgl64.Vec3{}, false
	}
	return t, start.Add(dir.Mul(t)).Normalize(), true
}

// Plane represents an infinite plane collision shape
// The plane is defined by the equation: Normal · p + Distance = 0
// where Normal is the plane's normal vector (must be normalized)
// and Distance is the signed distance from the origin along the normal
type Plane struct {
	Normal   mgl64.Vec3 // Plane normal (must be normalized)
	Distance float64    // Plane constant (signed distance from origin)
}

const (
	planeHalfSize  = 1000.0 // tangential half size used by Support
	planeThickness = 1.0    // depth below the surface covered by the AABB and Support
	planeInfinity  = 1e10
)

func (p *Plane) Type() ShapeType { return ShapeTypePlane }

// Point returns the point of the plane closest to the local origin
func (p *Plane) Point() mgl64.Vec3 {
	return p.Normal.Mul(-p.Distance)
}

func (p *Plane) LocalAABB() AABB {
	return p.ComputeAABB(NewTransform())
}

func (p *Plane) ComputeAABB(transform Transform) AABB {
	normal := transform.Rotation.Rotate(p.Normal)
	planePoint := transform.ToWorld(p.Point())

	// Create base bounds with thickness along the normal
	min := planePoint.Sub(normal.Mul(planeThickness))
	max := planePoint
	for i := 0; i < 3; i++ {
		if min[i] > max[i] {
			min[i], max[i] = max[i], min[i]
		}
	}

	// Only an axis aligned with the normal keeps finite bounds
	for i := 0; i < 3; i++ {
		if math.Abs(normal[i]) < 1.0-1e-9 {
			min[i] = -planeInfinity
			max[i] = planeInfinity
		}
	}

	return AABB{Min: min, Max: max}
}

// ComputeMass returns infinite mass: planes are always static
func (p *Plane) ComputeMass(density float64) float64 {
	return math.Inf(1)
}

func (p *Plane) ComputeInertia(mass float64) mgl64.Mat3 {
	return mgl64.Mat3{}
}

// Support treats the plane as a large slab below its surface.
// Can obviously break for scenes bigger than planeHalfSize.
func (p *Plane) Support(direction mgl64.Vec3) mgl64.Vec3 {
	tangent1, tangent2 := TangentBasis(p.Normal)

	point := p.Point()
	point = point.Add(tangent1.Mul(math.Copysign(planeHalfSize, direction.Dot(tangent1))))
	point = point.Add(tangent2.Mul(math.Copysign(planeHalfSize, direction.Dot(tangent2))))
	if direction.Dot(p.Normal) <= 0 {
		point = point.Sub(p.Normal.Mul(planeThickness))
	}

	return point
}

// SignedDistance returns the distance of a local point above the plane surface
func (p *Plane) SignedDistance(point mgl64.Vec3) float64 {
	return p.Normal.Dot(point) + p.Distance
}

func (p *Plane) RayCast(start, end mgl64.Vec3) (float64, mgl64.Vec3, bool) {
	ds := p.SignedDistance(start)
	de := p.SignedDistance(end)
	if ds < 0 {
		return 0, mgl64.Vec3{}, true
	}
	if de > 0 || ds == de {
		return 0, mgl64.Vec3{}, false
	}
	return ds / (ds - de), p.Normal, true
}

// CompoundChild is a shape placed inside a compound at a local offset
type CompoundChild struct {
	Shape  ShapeInterface
	Offset Transform
}

// Compound groups several convex children under one body
type Compound struct {
	Children []CompoundChild
}

// AddChild appends a child shape at the given local offset
func (c *Compound) AddChild(shape ShapeInterface, position mgl64.Vec3, rotation mgl64.Quat) {
	c.Children = append(c.Children, CompoundChild{Shape: shape, Offset: NewTransformAt(position, rotation)})
}

func (c *Compound) Type() ShapeType { return ShapeTypeCompound }

func (c *Compound) LocalAABB() AABB {
	return c.ComputeAABB(NewTransform())
}

func (c *Compound) ComputeAABB(transform Transform) AABB {
	if len(c.Children) == 0 {
		return AABB{Min: transform.Position, Max: transform.Position}
	}
	aabb := c.Children[0].Shape.ComputeAABB(transform.Compose(c.Children[0].Offset))
	for _, child := range c.Children[1:] {
		aabb = aabb.Union(child.Shape.ComputeAABB(transform.Compose(child.Offset)))
	}
	return aabb
}

func (c *Compound) ComputeMass(density float64) float64 {
	var mass float64
	for _, child := range c.Children {
		mass += child.Shape.ComputeMass(density)
	}
	return mass
}

// ComputeInertia distributes the mass over the children by volume and sums
// their inertia about the compound origin (parallel axis theorem)
func (c *Compound) ComputeInertia(mass float64) mgl64.Mat3 {
	total := c.ComputeMass(1)
	var inertia mgl64.Mat3
	if total <= 0 || math.IsInf(total, 0) {
		return inertia
	}

	for _, child := range c.Children {
		childMass := mass * child.Shape.ComputeMass(1) / total
		R := child.Offset.Rotation.Mat4().Mat3()
		local := R.Mul3(child.Shape.ComputeInertia(childMass)).Mul3(R.Transpose())

		d := child.Offset.Position
		shift := mgl64.Ident3().Mul(d.Dot(d)).Sub(outer(d, d)).Mul(childMass)
		inertia = inertia.Add(local).Add(shift)
	}
	return inertia
}

func (c *Compound) Support(direction mgl64.Vec3) mgl64.Vec3 {
	best := mgl64.Vec3{}
	bestDot := math.Inf(-1)
	for _, child := range c.Children {
		localDir := child.Offset.InverseRotation.Rotate(direction)
		point := child.Offset.ToWorld(child.Shape.Support(localDir))
		if d := point.Dot(direction); d > bestDot {
			bestDot = d
			best = point
		}
	}
	return best
}

func outer(a, b mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Mat3{
		a[0] * b[0], a[1] * b[0], a[2] * b[0],
		a[0] * b[1], a[1] * b[1], a[2] * b[1],
		a[0] * b[2], a[1] * b[2], a[2] * b[2],
	}
}

// TangentBasis returns two unit vectors orthogonal to normal and to each other
func TangentBasis(normal mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	var tangent1 mgl64.Vec3
	if math.Abs(normal.X()) > 0.9 {
		tangent1 = mgl64.Vec3{0, 1, 0}
	} else {
		tangent1 = mgl64.Vec3{1, 0, 0}
	}

	tangent1 = tangent1.Sub(normal.Mul(tangent1.Dot(normal))).Normalize()
	tangent2 := normal.Cross(tangent1).Normalize()

	return tangent1, tangent2
}
