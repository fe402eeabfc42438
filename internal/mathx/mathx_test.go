package mathx

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-1.0, 0, math.Inf(1)))
	assert.Equal(t, 2.5, Clamp(2.5, 0, math.Inf(1)))
	assert.Equal(t, 3, Clamp(10, -3, 3))
}

func TestApproxEqual(t *testing.T) {
	assert.True(t, ApproxEqual(1.0, 1.0005, 1e-3))
	assert.False(t, ApproxEqual(1.0, 1.01, 1e-3))
}

func TestIsFinite(t *testing.T) {
	assert.True(t, IsFinite(mgl64.Vec3{1, 2, 3}))
	assert.False(t, IsFinite(mgl64.Vec3{1, math.NaN(), 3}))
	assert.False(t, IsFinite(mgl64.Vec3{math.Inf(-1), 0, 0}))
}

func TestVec12Dot(t *testing.T) {
	a := [12]float64{1, 0, 0, 0, 0, 0, -1, 0, 0, 0, 0, 0}
	b := [12]float64{2, 5, 5, 5, 5, 5, 3, 5, 5, 5, 5, 5}
	assert.Equal(t, -1.0, Vec12Dot(&a, &b))
}

func TestVecApproxEqual(t *testing.T) {
	assert.True(t, VecApproxEqual(mgl64.Vec3{0, 1, 2}, mgl64.Vec3{1e-12, 1, 2 - 1e-12}, 1e-9))
	assert.False(t, VecApproxEqual(mgl64.Vec3{0, 1, 2}, mgl64.Vec3{0, 1.1, 2}, 1e-3))
}
