package narrowphase

import (
	"math"
	"math/rand"
	"testing"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/broadphase"
	"github.com/akmonengine/impulse/config"
	"github.com/akmonengine/impulse/contact"
	"github.com/akmonengine/impulse/internal/mathx"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createBody(position mgl64.Vec3, shape actor.ShapeInterface, bodyType actor.BodyType) *actor.RigidBody {
	return actor.NewRigidBody(actor.NewTransformAt(position, mgl64.QuatIdent()), shape, bodyType, 1.0)
}

func createGround() *actor.RigidBody {
	return createBody(mgl64.Vec3{}, &actor.Plane{Normal: mgl64.Vec3{0, 1, 0}}, actor.BodyTypeStatic)
}

func TestCanCollide(t *testing.T) {
	dynamic := createBody(mgl64.Vec3{}, &actor.Sphere{Radius: 1}, actor.BodyTypeDynamic)
	other := createBody(mgl64.Vec3{}, &actor.Sphere{Radius: 1}, actor.BodyTypeDynamic)
	static := createBody(mgl64.Vec3{}, &actor.Box{HalfExtents: mgl64.Vec3{1, 1, 1}}, actor.BodyTypeStatic)
	ground := createGround()

	masked := createBody(mgl64.Vec3{}, &actor.Sphere{Radius: 1}, actor.BodyTypeDynamic)
	masked.CollisionGroup = 0b10
	masked.CollisionMask = 0b10
	debris := createBody(mgl64.Vec3{}, &actor.Sphere{Radius: 1}, actor.BodyTypeDynamic)
	debris.CollisionGroup = 0b01

	tests := []struct {
		name     string
		a, b     *actor.RigidBody
		expected bool
	}{
		{"dynamic pair", dynamic, other, true},
		{"dynamic and static", dynamic, static, true},
		{"both static", static, ground, false},
		{"same body", dynamic, dynamic, false},
		{"group accepted", masked, dynamic, true},
		{"group rejected by the mask", masked, debris, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanCollide(tt.a, tt.b))
			assert.Equal(t, tt.expected, CanCollide(tt.b, tt.a))
		})
	}
}

func TestSphereSphere(t *testing.T) {
	cfg := config.DefaultGeometry()

	t.Run("overlapping", func(t *testing.T) {
		a := createBody(mgl64.Vec3{1.5, 0, 0}, &actor.Sphere{Radius: 1}, actor.BodyTypeDynamic)
		b := createBody(mgl64.Vec3{0, 0, 0}, &actor.Sphere{Radius: 1}, actor.BodyTypeDynamic)

		d := sphereSphere(a, a.Shape.(*actor.Sphere), b, b.Shape.(*actor.Sphere), cfg)
		require.NotNil(t, d)
		defer d.Destroy()

		assert.InDelta(t, 0.5, d.Depth, 1e-12)
		assert.True(t, mathx.VecApproxEqual(d.Normal, mgl64.Vec3{1, 0, 0}, 1e-9))
		assert.True(t, mathx.VecApproxEqual(d.Point, mgl64.Vec3{0.75, 0, 0}, 1e-9))
	})

	t.Run("within margin", func(t *testing.T) {
		a := createBody(mgl64.Vec3{0, 2.01, 0}, &actor.Sphere{Radius: 1}, actor.BodyTypeDynamic)
		b := createBody(mgl64.Vec3{0, 0, 0}, &actor.Sphere{Radius: 1}, actor.BodyTypeDynamic)

		d := sphereSphere(a, a.Shape.(*actor.Sphere), b, b.Shape.(*actor.Sphere), cfg)
		require.NotNil(t, d)
		defer d.Destroy()

		assert.InDelta(t, -0.01, d.Depth, 1e-12)
	})

	t.Run("apart", func(t *testing.T) {
		a := createBody(mgl64.Vec3{0, 3, 0}, &actor.Sphere{Radius: 1}, actor.BodyTypeDynamic)
		b := createBody(mgl64.Vec3{0, 0, 0}, &actor.Sphere{Radius: 1}, actor.BodyTypeDynamic)

		assert.Nil(t, sphereSphere(a, a.Shape.(*actor.Sphere), b, b.Shape.(*actor.Sphere), cfg))
	})

	t.Run("concentric", func(t *testing.T) {
		a := createBody(mgl64.Vec3{}, &actor.Sphere{Radius: 1}, actor.BodyTypeDynamic)
		b := createBody(mgl64.Vec3{}, &actor.Sphere{Radius: 0.5}, actor.BodyTypeDynamic)

		d := sphereSphere(a, a.Shape.(*actor.Sphere), b, b.Shape.(*actor.Sphere), cfg)
		require.NotNil(t, d)
		defer d.Destroy()

		assert.InDelta(t, 1.0, d.Normal.Len(), 1e-12)
		assert.InDelta(t, 1.5, d.Depth, 1e-12)
	})
}

// The closed form and GJK/EPA must describe the same contact.
// Within 1e-3 at a tight EPA tolerance, TestSphereSphere_MatchesGJKDefaults covers the defaults.
func TestSphereSphere_MatchesGJK(t *testing.T) {
	cfg := config.DefaultGeometry()
	cfg.EPACondition = 1e-7
	cfg.EPAMaxIterations = 128
	n := New(cfg, nil)

	offsets := []mgl64.Vec3{
		{1.5, 0, 0},
		{0, 1.7, 0.3},
		{-0.9, -0.6, 0.5},
	}

	for _, offset := range offsets {
		a := createBody(offset, &actor.Sphere{Radius: 1}, actor.BodyTypeDynamic)
		b := createBody(mgl64.Vec3{}, &actor.Sphere{Radius: 1}, actor.BodyTypeDynamic)

		analytic := sphereSphere(a, a.Shape.(*actor.Sphere), b, b.Shape.(*actor.Sphere), cfg)
		general := n.convexContact(a, b)
		require.NotNil(t, analytic)
		require.NotNil(t, general)

		assert.InDelta(t, analytic.Depth, general.Depth, 1e-3, "offset %v", offset)
		assert.True(t, mathx.VecApproxEqual(analytic.Normal, general.Normal, 1e-3), "offset %v: %v vs %v", offset, analytic.Normal, general.Normal)

		analytic.Destroy()
		general.Destroy()
	}
}

// At the default EPA tolerance a sphere is approximated by at most 24 vertices:
// the depth is a lower bound within 10% and the normal within 0.45 rad
func TestSphereSphere_MatchesGJKDefaults(t *testing.T) {
	cfg := config.DefaultGeometry()
	n := New(cfg, nil)
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 500; i++ {
		direction := mgl64.Vec3{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}.Normalize()
		offset := direction.Mul(0.5 + rng.Float64()*1.3)
		a := createBody(offset, &actor.Sphere{Radius: 1}, actor.BodyTypeDynamic)
		b := createBody(mgl64.Vec3{}, &actor.Sphere{Radius: 1}, actor.BodyTypeDynamic)

		analytic := sphereSphere(a, a.Shape.(*actor.Sphere), b, b.Shape.(*actor.Sphere), cfg)
		general := n.convexContact(a, b)
		require.NotNil(t, analytic)
		require.NotNil(t, general, "offset %v", offset)

		assert.LessOrEqual(t, general.Depth, analytic.Depth+1e-9, "offset %v: the polytope lies inside the sphere", offset)
		assert.InEpsilon(t, analytic.Depth, general.Depth, 0.1, "offset %v", offset)
		assert.Greater(t, general.Normal.Dot(analytic.Normal), 0.9, "offset %v", offset)

		analytic.Destroy()
		general.Destroy()
	}
}

func TestSphereBox(t *testing.T) {
	cfg := config.DefaultGeometry()
	box := &actor.Box{HalfExtents: mgl64.Vec3{2, 1, 2}}

	tests := []struct {
		name   string
		center mgl64.Vec3
		depth  float64
		normal mgl64.Vec3
		pointB mgl64.Vec3
	}{
		{"above the top face", mgl64.Vec3{0.5, 1.9, 0}, 0.1, mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0.5, 1, 0}},
		{"beside a face", mgl64.Vec3{-2.5, 0, 0}, 0.5, mgl64.Vec3{-1, 0, 0}, mgl64.Vec3{-2, 0, 0}},
		{"near an edge", mgl64.Vec3{2.6, 1.8, 0}, 0, mgl64.Vec3{0.6, 0.8, 0}, mgl64.Vec3{2, 1, 0}},
		{"center inside", mgl64.Vec3{0, 0.6, 0}, 1.4, mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, 1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := createBody(tt.center, &actor.Sphere{Radius: 1}, actor.BodyTypeDynamic)
			b := createBody(mgl64.Vec3{}, box, actor.BodyTypeStatic)

			d := sphereBox(a, a.Shape.(*actor.Sphere), b, box, cfg)
			require.NotNil(t, d)
			defer d.Destroy()

			assert.InDelta(t, tt.depth, d.Depth, 1e-9)
			assert.True(t, mathx.VecApproxEqual(d.Normal, tt.normal, 1e-9), "normal %v", d.Normal)
			assert.True(t, mathx.VecApproxEqual(d.WorldB(), tt.pointB, 1e-9), "witness %v", d.WorldB())
		})
	}

	t.Run("rotated box", func(t *testing.T) {
		b := actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{}, mgl64.QuatRotate(mgl64.DegToRad(90), mgl64.Vec3{0, 0, 1})), box, actor.BodyTypeStatic, 1)
		// rotated by 90° around z, the box is 2 wide along y
		a := createBody(mgl64.Vec3{0, 2.5, 0}, &actor.Sphere{Radius: 1}, actor.BodyTypeDynamic)

		d := sphereBox(a, a.Shape.(*actor.Sphere), b, box, cfg)
		require.NotNil(t, d)
		defer d.Destroy()

		assert.InDelta(t, 0.5, d.Depth, 1e-9)
		assert.True(t, mathx.VecApproxEqual(d.Normal, mgl64.Vec3{0, 1, 0}, 1e-9))
	})

	t.Run("apart", func(t *testing.T) {
		a := createBody(mgl64.Vec3{0, 3, 0}, &actor.Sphere{Radius: 1}, actor.BodyTypeDynamic)
		b := createBody(mgl64.Vec3{}, box, actor.BodyTypeStatic)

		assert.Nil(t, sphereBox(a, a.Shape.(*actor.Sphere), b, box, cfg))
	})
}

func TestSpherePlane(t *testing.T) {
	cfg := config.DefaultGeometry()
	ground := createGround()
	sphere := createBody(mgl64.Vec3{3, 0.8, -1}, &actor.Sphere{Radius: 1}, actor.BodyTypeDynamic)

	d := spherePlane(sphere, sphere.Shape.(*actor.Sphere), ground, ground.Shape.(*actor.Plane), cfg)
	require.NotNil(t, d)
	defer d.Destroy()

	assert.InDelta(t, 0.2, d.Depth, 1e-12)
	assert.True(t, mathx.VecApproxEqual(d.Normal, mgl64.Vec3{0, 1, 0}, 1e-9))
	assert.True(t, mathx.VecApproxEqual(d.WorldA(), mgl64.Vec3{3, -0.2, -1}, 1e-9))
	assert.True(t, mathx.VecApproxEqual(d.WorldB(), mgl64.Vec3{3, 0, -1}, 1e-9))

	high := createBody(mgl64.Vec3{0, 1.5, 0}, &actor.Sphere{Radius: 1}, actor.BodyTypeDynamic)
	assert.Nil(t, spherePlane(high, high.Shape.(*actor.Sphere), ground, ground.Shape.(*actor.Plane), cfg))
}

func TestBoxPlane(t *testing.T) {
	cfg := config.DefaultGeometry()
	ground := createGround()
	box := &actor.Box{HalfExtents: mgl64.Vec3{1, 0.5, 1}}

	t.Run("flat on the ground", func(t *testing.T) {
		a := createBody(mgl64.Vec3{0, 0.45, 0}, box, actor.BodyTypeDynamic)

		contacts := boxPlane(a, box, ground, ground.Shape.(*actor.Plane), cfg, nil)
		require.Len(t, contacts, 4)
		for _, d := range contacts {
			assert.InDelta(t, 0.05, d.Depth, 1e-12)
			assert.True(t, mathx.VecApproxEqual(d.Normal, mgl64.Vec3{0, 1, 0}, 1e-9))
			assert.InDelta(t, -0.05, d.WorldA().Y(), 1e-12)
			d.Destroy()
		}
	})

	t.Run("tilted on an edge", func(t *testing.T) {
		tilt := mgl64.QuatRotate(mgl64.DegToRad(30), mgl64.Vec3{0, 0, 1})
		a := actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{0, 0.9, 0}, tilt), box, actor.BodyTypeDynamic, 1)

		contacts := boxPlane(a, box, ground, ground.Shape.(*actor.Plane), cfg, nil)
		require.Len(t, contacts, 2)
		assert.InDelta(t, contacts[0].Depth, contacts[1].Depth, 1e-12)
		for _, d := range contacts {
			d.Destroy()
		}
	})

	t.Run("deepest corners first", func(t *testing.T) {
		tilt := mgl64.QuatRotate(mgl64.DegToRad(1), mgl64.Vec3{1, 0, 0})
		a := actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{0, 0.49, 0}, tilt), box, actor.BodyTypeDynamic, 1)

		contacts := boxPlane(a, box, ground, ground.Shape.(*actor.Plane), cfg, nil)
		require.Len(t, contacts, 4)
		for i := 1; i < len(contacts); i++ {
			assert.GreaterOrEqual(t, contacts[i-1].Depth, contacts[i].Depth)
		}
		for _, d := range contacts {
			d.Destroy()
		}
	})

	t.Run("above the margin", func(t *testing.T) {
		a := createBody(mgl64.Vec3{0, 1, 0}, box, actor.BodyTypeDynamic)
		assert.Empty(t, boxPlane(a, box, ground, ground.Shape.(*actor.Plane), cfg, nil))
	})
}

func TestGenerateContacts(t *testing.T) {
	cfg := config.DefaultGeometry()

	t.Run("orientation follows the pair", func(t *testing.T) {
		n := New(cfg, nil)
		ground := createGround()
		box := createBody(mgl64.Vec3{0, 0.45, 0}, &actor.Box{HalfExtents: mgl64.Vec3{1, 0.5, 1}}, actor.BodyTypeDynamic)

		added := n.GenerateContacts([]broadphase.Pair{{BodyA: ground, BodyB: box}})
		assert.Equal(t, 4, added)
		require.Equal(t, 1, n.Manifolds().Len())

		m := n.Manifolds().Manifolds()[0]
		assert.Same(t, ground, m.BodyA)
		for _, d := range m.Contacts() {
			assert.Same(t, ground, d.BodyA)
			// from the box to the ground
			assert.True(t, mathx.VecApproxEqual(d.Normal, mgl64.Vec3{0, -1, 0}, 1e-9))
			assert.InDelta(t, 0.05, d.Depth, 1e-12)
		}

		n.Manifolds().Clear()
	})

	t.Run("persisting points are deduplicated", func(t *testing.T) {
		n := New(cfg, nil)
		ground := createGround()
		sphere := createBody(mgl64.Vec3{0, 0.99, 0}, &actor.Sphere{Radius: 1}, actor.BodyTypeDynamic)
		pairs := []broadphase.Pair{{BodyA: ground, BodyB: sphere}}

		assert.Equal(t, 1, n.GenerateContacts(pairs))
		assert.Equal(t, 0, n.GenerateContacts(pairs))
		assert.Equal(t, 1, n.Manifolds().Manifolds()[0].Count)

		n.Manifolds().Clear()
	})

	t.Run("filtered pairs", func(t *testing.T) {
		n := New(cfg, nil)
		ground := createGround()
		wall := createBody(mgl64.Vec3{}, &actor.Box{HalfExtents: mgl64.Vec3{1, 1, 1}}, actor.BodyTypeStatic)

		assert.Equal(t, 0, n.GenerateContacts([]broadphase.Pair{{BodyA: ground, BodyB: wall}}))
		assert.Equal(t, 0, n.Manifolds().Len())
	})

	t.Run("separated bodies lose their manifold", func(t *testing.T) {
		n := New(cfg, nil)
		a := createBody(mgl64.Vec3{1.9, 0, 0}, &actor.Sphere{Radius: 1}, actor.BodyTypeDynamic)
		b := createBody(mgl64.Vec3{}, &actor.Sphere{Radius: 1}, actor.BodyTypeDynamic)

		ended := 0
		n.Manifolds().OnEnd(func(m *contact.Manifold) { ended++ })

		n.GenerateContacts([]broadphase.Pair{{BodyA: a, BodyB: b}})
		require.Equal(t, 1, n.Manifolds().Len())

		a.SetPosition(mgl64.Vec3{3, 0, 0})
		n.GenerateContacts(nil)
		assert.Equal(t, 0, n.Manifolds().Len())
		assert.Equal(t, 1, ended)
	})

	t.Run("box pair through GJK and EPA", func(t *testing.T) {
		n := New(cfg, nil)
		a := createBody(mgl64.Vec3{0, 1.8, 0}, &actor.Box{HalfExtents: mgl64.Vec3{1, 1, 1}}, actor.BodyTypeDynamic)
		b := createBody(mgl64.Vec3{}, &actor.Box{HalfExtents: mgl64.Vec3{2, 1, 2}}, actor.BodyTypeStatic)

		assert.Equal(t, 1, n.GenerateContacts([]broadphase.Pair{{BodyA: a, BodyB: b}}))
		d := n.Manifolds().Manifolds()[0].Points[0]
		assert.InDelta(t, 0.2, d.Depth, 1e-3)
		assert.InDelta(t, 1.0, d.Normal.Y(), 1e-3)

		n.Manifolds().Clear()
	})
}

func TestCompoundContact(t *testing.T) {
	cfg := config.DefaultGeometry()

	// dumbbell lying along x, its two spheres touching the ground
	compound := &actor.Compound{}
	compound.AddChild(&actor.Sphere{Radius: 0.5}, mgl64.Vec3{-1, 0, 0}, mgl64.QuatIdent())
	compound.AddChild(&actor.Sphere{Radius: 0.5}, mgl64.Vec3{1, 0, 0}, mgl64.QuatIdent())

	tests := []struct {
		name     string
		reversed bool
	}{
		{"compound first", false},
		{"compound second", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detailsLive := contact.DetailsPool.Live()
			proxiesLive := proxyPool.Live()

			n := New(cfg, nil)
			ground := createGround()
			dumbbell := createBody(mgl64.Vec3{0, 0.45, 0}, compound, actor.BodyTypeDynamic)

			pair := broadphase.Pair{BodyA: dumbbell, BodyB: ground}
			if tt.reversed {
				pair = broadphase.Pair{BodyA: ground, BodyB: dumbbell}
			}

			assert.Equal(t, 2, n.GenerateContacts([]broadphase.Pair{pair}))
			require.Equal(t, 1, n.Manifolds().Len())

			for _, d := range n.Manifolds().Manifolds()[0].Contacts() {
				assert.InDelta(t, 0.05, d.Depth, 1e-12)

				onDumbbell := d.WorldA()
				if tt.reversed {
					onDumbbell = d.WorldB()
				}
				assert.InDelta(t, -0.05, onDumbbell.Y(), 1e-12)
				assert.InDelta(t, 1.0, math.Abs(onDumbbell.X()), 1e-12)
			}

			assert.Equal(t, proxiesLive, proxyPool.Live())
			n.Manifolds().Clear()
			assert.Equal(t, detailsLive, contact.DetailsPool.Live())
		})
	}
}
