package gjk

import (
	"math"
	"math/rand"
	"testing"

	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/config"
	"github.com/akmonengine/impulse/contact"
	"github.com/akmonengine/impulse/internal/mathx"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createBoxBody(position mgl64.Vec3, halfExtents mgl64.Vec3) *actor.RigidBody {
	return actor.NewRigidBody(
		actor.NewTransformAt(position, mgl64.QuatIdent()),
		&actor.Box{HalfExtents: halfExtents},
		actor.BodyTypeDynamic,
		1.0,
	)
}

func createSphereBody(position mgl64.Vec3, radius float64) *actor.RigidBody {
	return actor.NewRigidBody(
		actor.NewTransformAt(position, mgl64.QuatIdent()),
		&actor.Sphere{Radius: radius},
		actor.BodyTypeDynamic,
		1.0,
	)
}

// release hands the result of a colliding run back to the pools
func release(result Result) {
	if result.Simplex != nil {
		result.Simplex.Release()
	}
	if result.Contact != nil {
		result.Contact.Destroy()
	}
}

func TestMinkowskiSupport(t *testing.T) {
	t.Run("two separated spheres along x-axis", func(t *testing.T) {
		a := createSphereBody(mgl64.Vec3{0, 0, 0}, 1.0)
		b := createSphereBody(mgl64.Vec3{3, 0, 0}, 1.0)

		support := MinkowskiSupport(a, b, mgl64.Vec3{1, 0, 0})

		// max(A.x) - min(B.x) = 1 - 2
		assert.InDelta(t, -1.0, support.Point.X(), 1e-12)
		assert.InDelta(t, 1.0, support.WitnessA.X(), 1e-12)
		assert.InDelta(t, 2.0, support.WitnessB.X(), 1e-12)
	})

	t.Run("point is the difference of the witnesses", func(t *testing.T) {
		a := createBoxBody(mgl64.Vec3{0.3, -1, 2}, mgl64.Vec3{1, 2, 3})
		b := createSphereBody(mgl64.Vec3{1, 1, 1}, 0.5)

		support := MinkowskiSupport(a, b, mgl64.Vec3{-1, 2, 0.5})

		assert.True(t, mathx.VecApproxEqual(support.Point, support.WitnessA.Sub(support.WitnessB), 1e-9))
	})
}

func TestGJK(t *testing.T) {
	cfg := config.DefaultGeometry()

	tests := []struct {
		name      string
		a, b      *actor.RigidBody
		colliding bool
	}{
		{"spheres overlapping", createSphereBody(mgl64.Vec3{0, 0, 0}, 1), createSphereBody(mgl64.Vec3{1.5, 0, 0}, 1), true},
		{"spheres concentric", createSphereBody(mgl64.Vec3{0, 0, 0}, 1), createSphereBody(mgl64.Vec3{0, 0, 0}, 0.5), true},
		{"spheres separated", createSphereBody(mgl64.Vec3{0, 0, 0}, 1), createSphereBody(mgl64.Vec3{3, 0, 0}, 1), false},
		{"spheres separated diagonally", createSphereBody(mgl64.Vec3{0, 0, 0}, 1), createSphereBody(mgl64.Vec3{2, 2, 2}, 1), false},
		{"boxes overlapping", createBoxBody(mgl64.Vec3{1.5, 0, 0}, mgl64.Vec3{1, 1, 1}), createBoxBody(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}), true},
		{"boxes offset on two axes", createBoxBody(mgl64.Vec3{1.2, 0.7, 0}, mgl64.Vec3{1, 1, 1}), createBoxBody(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}), true},
		{"boxes separated", createBoxBody(mgl64.Vec3{5, 0, 0}, mgl64.Vec3{1, 1, 1}), createBoxBody(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}), false},
		{"sphere inside box", createSphereBody(mgl64.Vec3{0.5, 0.5, 0}, 0.5), createBoxBody(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{2, 2, 2}), true},
		{"sphere beside box", createSphereBody(mgl64.Vec3{0, 4, 0}, 1), createBoxBody(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			simplexLive := SimplexPool.Live()
			detailsLive := contact.DetailsPool.Live()

			result, colliding := GJK(tt.a, tt.b, cfg)
			assert.Equal(t, tt.colliding, colliding)

			if colliding {
				require.True(t, result.Simplex != nil || result.Contact != nil)
				if result.Simplex != nil {
					assert.Equal(t, 4, result.Simplex.Count)
				}
			} else {
				assert.Nil(t, result.Simplex)
				assert.Nil(t, result.Contact)
			}

			release(result)
			assert.Equal(t, simplexLive, SimplexPool.Live(), "simplex leaked")
			assert.Equal(t, detailsLive, contact.DetailsPool.Live(), "contact leaked")
		})
	}
}

func TestGJK_EnclosingTetrahedron(t *testing.T) {
	a := createBoxBody(mgl64.Vec3{1.5, 0, 0}, mgl64.Vec3{1, 1, 1})
	b := createBoxBody(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1})

	cfg := config.DefaultGeometry()
	result, colliding := GJK(a, b, cfg)
	require.True(t, colliding)
	require.NotNil(t, result.Simplex)
	defer result.Simplex.Release()

	// the origin lies on the inner side of every face, up to epsilon
	points := result.Simplex.Points
	faces := [4][4]int{{0, 1, 2, 3}, {0, 1, 3, 2}, {0, 2, 3, 1}, {1, 2, 3, 0}}
	for _, f := range faces {
		p0, p1, p2, opposite := points[f[0]].Point, points[f[1]].Point, points[f[2]].Point, points[f[3]].Point
		normal := p1.Sub(p0).Cross(p2.Sub(p0))
		if normal.Dot(opposite.Sub(p0)) > 0 {
			normal = normal.Mul(-1)
		}
		assert.LessOrEqual(t, normal.Dot(p0.Mul(-1)), cfg.Epsilon*normal.Len())
	}
}

func TestGJK_ShallowContact(t *testing.T) {
	cfg := config.DefaultGeometry()

	t.Run("boxes within the margin", func(t *testing.T) {
		a := createBoxBody(mgl64.Vec3{2.01, 0, 0}, mgl64.Vec3{1, 1, 1})
		b := createBoxBody(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1})

		result, colliding := GJK(a, b, cfg)
		require.True(t, colliding)
		require.Nil(t, result.Simplex)
		require.NotNil(t, result.Contact)
		defer result.Contact.Destroy()

		d := result.Contact
		assert.Same(t, a, d.BodyA)
		assert.Same(t, b, d.BodyB)
		assert.InDelta(t, 1.0, d.Normal.X(), 1e-9)
		assert.InDelta(t, -0.01, d.Depth, 1e-9)
		assert.InDelta(t, 1.005, d.Point.X(), 1e-9)
	})

	t.Run("spheres within the margin", func(t *testing.T) {
		a := createSphereBody(mgl64.Vec3{0, 0, 0}, 1)
		b := createSphereBody(mgl64.Vec3{0, 2.02, 0}, 1)

		result, colliding := GJK(a, b, cfg)
		require.True(t, colliding)
		require.NotNil(t, result.Contact)
		defer result.Contact.Destroy()

		// B is above A: the normal from B to A points down
		assert.InDelta(t, -1.0, result.Contact.Normal.Y(), 1e-9)
		assert.InDelta(t, -0.02, result.Contact.Depth, 1e-9)
	})

	t.Run("beyond the margin", func(t *testing.T) {
		a := createBoxBody(mgl64.Vec3{2.1, 0, 0}, mgl64.Vec3{1, 1, 1})
		b := createBoxBody(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1})

		result, colliding := GJK(a, b, cfg)
		assert.False(t, colliding)
		assert.Nil(t, result.Contact)
	})
}

// Bodies whose bounding spheres are apart can never collide
func TestGJK_NoFalsePositive(t *testing.T) {
	cfg := config.DefaultGeometry()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		halfA := mgl64.Vec3{0.2 + rng.Float64(), 0.2 + rng.Float64(), 0.2 + rng.Float64()}
		a := createBoxBody(mgl64.Vec3{}, halfA)
		a.SetRotation(mgl64.AnglesToQuat(rng.Float64()*math.Pi, rng.Float64()*math.Pi, rng.Float64()*math.Pi, mgl64.XYZ))

		radius := 0.2 + rng.Float64()
		direction := mgl64.Vec3{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}.Normalize()
		distance := halfA.Len() + radius + cfg.Margins + 0.01 + rng.Float64()
		b := createSphereBody(direction.Mul(distance), radius)

		result, colliding := GJK(a, b, cfg)
		require.False(t, colliding, "iteration %d", i)
		release(result)
	}
}

// Bodies whose inscribed spheres overlap always collide
func TestGJK_NoFalseNegative(t *testing.T) {
	cfg := config.DefaultGeometry()
	rng := rand.New(rand.NewSource(11))
	live := SimplexPool.Live()

	randomRotation := func() mgl64.Quat {
		return mgl64.AnglesToQuat(rng.Float64()*2*math.Pi, rng.Float64()*2*math.Pi, rng.Float64()*2*math.Pi, mgl64.XYZ)
	}
	randomOffset := func(maxDistance float64) mgl64.Vec3 {
		direction := mgl64.Vec3{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}.Normalize()
		return direction.Mul(rng.Float64() * maxDistance)
	}

	t.Run("spheres", func(t *testing.T) {
		for i := 0; i < 5000; i++ {
			radiusA, radiusB := 0.2+rng.Float64(), 0.2+rng.Float64()
			b := createSphereBody(randomOffset(5), radiusB)
			a := createSphereBody(b.Transform.Position.Add(randomOffset(radiusA+radiusB-1e-3)), radiusA)

			result, colliding := GJK(a, b, cfg)
			require.True(t, colliding, "iteration %d: A at %v, B at %v", i, a.Transform.Position, b.Transform.Position)
			release(result)
		}
	})

	t.Run("unit spheres on the center line", func(t *testing.T) {
		// the first support points sit at both ends of the center line,
		// the origin lands on an edge of the tetrahedron
		positions := []mgl64.Vec3{
			{-0.0482, -0.2084, 1.4098},
			{0, 0, 1.5},
			{1, 1, 0},
			{0.3, -0.3, 0.3},
		}
		for _, position := range positions {
			a := createSphereBody(position, 1)
			b := createSphereBody(mgl64.Vec3{}, 1)

			result, colliding := GJK(a, b, cfg)
			require.True(t, colliding, "A at %v", position)
			release(result)
		}
	})

	t.Run("rotated boxes", func(t *testing.T) {
		for i := 0; i < 2000; i++ {
			halfA := mgl64.Vec3{0.2 + rng.Float64(), 0.2 + rng.Float64(), 0.2 + rng.Float64()}
			halfB := mgl64.Vec3{0.2 + rng.Float64(), 0.2 + rng.Float64(), 0.2 + rng.Float64()}
			inscribed := min(halfA.X(), halfA.Y(), halfA.Z()) + min(halfB.X(), halfB.Y(), halfB.Z())

			b := createBoxBody(randomOffset(5), halfB)
			b.SetRotation(randomRotation())
			a := createBoxBody(b.Transform.Position.Add(randomOffset(inscribed-1e-3)), halfA)
			a.SetRotation(randomRotation())

			result, colliding := GJK(a, b, cfg)
			require.True(t, colliding, "iteration %d", i)
			release(result)
		}
	})

	t.Run("box and sphere", func(t *testing.T) {
		for i := 0; i < 2000; i++ {
			half := mgl64.Vec3{0.2 + rng.Float64(), 0.2 + rng.Float64(), 0.2 + rng.Float64()}
			radius := 0.2 + rng.Float64()
			inscribed := min(half.X(), half.Y(), half.Z()) + radius

			box := createBoxBody(randomOffset(5), half)
			box.SetRotation(randomRotation())
			sphere := createSphereBody(box.Transform.Position.Add(randomOffset(inscribed-1e-3)), radius)

			result, colliding := GJK(box, sphere, cfg)
			require.True(t, colliding, "iteration %d", i)
			release(result)
		}
	})

	assert.Equal(t, live, SimplexPool.Live(), "simplex leaked")
}

func TestClosestOnTriangle(t *testing.T) {
	a, b, c := mgl64.Vec3{0, 0, 0}, mgl64.Vec3{2, 0, 0}, mgl64.Vec3{0, 2, 0}

	tests := []struct {
		name     string
		p        mgl64.Vec3
		expected mgl64.Vec3
	}{
		{"vertex region a", mgl64.Vec3{-1, -1, 0}, a},
		{"vertex region b", mgl64.Vec3{3, -1, 0}, b},
		{"vertex region c", mgl64.Vec3{-1, 3, 0}, c},
		{"edge ab", mgl64.Vec3{1, -1, 0}, mgl64.Vec3{1, 0, 0}},
		{"edge bc", mgl64.Vec3{2, 2, 0}, mgl64.Vec3{1, 1, 0}},
		{"face interior", mgl64.Vec3{0.5, 0.5, 3}, mgl64.Vec3{0.5, 0.5, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, v, w := ClosestOnTriangle(tt.p, a, b, c)
			assert.InDelta(t, 1.0, u+v+w, 1e-12)

			closest := a.Mul(u).Add(b.Mul(v)).Add(c.Mul(w))
			assert.True(t, mathx.VecApproxEqual(closest, tt.expected, 1e-12), "got %v", closest)
		})
	}
}

func TestClosestPoint(t *testing.T) {
	simplex := &Simplex{}
	simplex.set(
		SupportPoint{Point: mgl64.Vec3{1, -1, 0}},
		SupportPoint{Point: mgl64.Vec3{1, 1, 0}},
	)

	closest, weights := ClosestPoint(simplex)
	assert.True(t, mathx.VecApproxEqual(closest, mgl64.Vec3{1, 0, 0}, 1e-9))
	assert.InDelta(t, 0.5, weights[0], 1e-12)
	assert.InDelta(t, 0.5, weights[1], 1e-12)
}

func TestLine(t *testing.T) {
	const epsilon = 1e-6

	t.Run("origin behind the newest point", func(t *testing.T) {
		simplex := &Simplex{}
		simplex.set(SupportPoint{Point: mgl64.Vec3{3, 0, 0}}, SupportPoint{Point: mgl64.Vec3{1, 0, 0}})

		var direction mgl64.Vec3
		line(simplex, &direction, epsilon)

		assert.Equal(t, 1, simplex.Count)
		assert.Equal(t, mgl64.Vec3{1, 0, 0}, simplex.Points[0].Point)
		assert.True(t, mathx.VecApproxEqual(direction, mgl64.Vec3{-1, 0, 0}, 1e-9))
	})

	t.Run("origin beside the segment", func(t *testing.T) {
		simplex := &Simplex{}
		simplex.set(SupportPoint{Point: mgl64.Vec3{-1, 1, 0}}, SupportPoint{Point: mgl64.Vec3{1, 1, 0}})

		var direction mgl64.Vec3
		line(simplex, &direction, epsilon)

		assert.Equal(t, 2, simplex.Count)
		assert.InDelta(t, 0, direction.X(), 1e-12)
		assert.Less(t, direction.Y(), 0.0)
	})

	t.Run("origin on the segment", func(t *testing.T) {
		simplex := &Simplex{}
		simplex.set(SupportPoint{Point: mgl64.Vec3{-1, 0, 0}}, SupportPoint{Point: mgl64.Vec3{1, 0, 0}})

		var direction mgl64.Vec3
		line(simplex, &direction, epsilon)

		assert.Equal(t, 2, simplex.Count)
		assert.Greater(t, direction.LenSqr(), 0.0)
		assert.InDelta(t, 0, direction.X(), 1e-12)
	})
}

func TestTetrahedron(t *testing.T) {
	const epsilon = 1e-6

	t.Run("origin enclosed", func(t *testing.T) {
		simplex := &Simplex{}
		simplex.set(
			SupportPoint{Point: mgl64.Vec3{1, -1, -1}},
			SupportPoint{Point: mgl64.Vec3{-1, -1, -1}},
			SupportPoint{Point: mgl64.Vec3{0, -1, 1}},
			SupportPoint{Point: mgl64.Vec3{0, 1, 0}},
		)

		var direction mgl64.Vec3
		assert.True(t, tetrahedron(simplex, &direction, epsilon))
		assert.Equal(t, 4, simplex.Count)
	})

	t.Run("origin outside reduces to a face", func(t *testing.T) {
		simplex := &Simplex{}
		simplex.set(
			SupportPoint{Point: mgl64.Vec3{1, -1, -1}},
			SupportPoint{Point: mgl64.Vec3{-1, -1, -1}},
			SupportPoint{Point: mgl64.Vec3{0, -1, 1}},
			SupportPoint{Point: mgl64.Vec3{5, 1, 0}},
		)
		newest := simplex.Points[3].Point

		var direction mgl64.Vec3
		assert.False(t, tetrahedron(simplex, &direction, epsilon))
		assert.Less(t, simplex.Count, 4)
		assert.Greater(t, direction.Dot(newest.Mul(-1)), 0.0)
	})
}

func BenchmarkGJK_Spheres_Intersecting(b *testing.B) {
	cfg := config.DefaultGeometry()
	sphereA := createSphereBody(mgl64.Vec3{0, 0, 0}, 1.0)
	sphereB := createSphereBody(mgl64.Vec3{1.5, 0, 0}, 1.0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		result, _ := GJK(sphereA, sphereB, cfg)
		release(result)
	}
}

func BenchmarkGJK_Boxes_Intersecting(b *testing.B) {
	cfg := config.DefaultGeometry()
	boxA := createBoxBody(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1})
	boxB := createBoxBody(mgl64.Vec3{1.5, 0.5, 0}, mgl64.Vec3{1, 1, 1})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		result, _ := GJK(boxA, boxB, cfg)
		release(result)
	}
}
