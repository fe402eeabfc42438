package contact

import (
	"testing"

	"github.com/akmonengine/impulse/actor"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetailsDestroy(t *testing.T) {
	a := createBoxBody(mgl64.Vec3{0, 1, 0}, actor.BodyTypeDynamic)
	b := createBoxBody(mgl64.Vec3{0, -1, 0}, actor.BodyTypeStatic)

	d := NewDetails(a, b)
	var notified []*Details
	d.OnDestroy(func(d *Details) { notified = append(notified, d) })
	d.OnDestroy(func(d *Details) { notified = append(notified, d) })
	listeners := d.onDestroy[:2]

	d.Destroy()
	require.Len(t, notified, 2)
	assert.Same(t, d, notified[0])

	t.Run("the pool drops the listeners", func(t *testing.T) {
		assert.Empty(t, d.onDestroy)
		assert.Nil(t, listeners[0], "released contacts keep no closure alive")
		assert.Nil(t, listeners[1])
		assert.Nil(t, d.BodyA)
	})
}
