package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type item struct {
	Value int
	Tags  []string
}

func TestPoolRecycles(t *testing.T) {
	p := New[item](nil)

	a := p.Acquire()
	a.Value = 42
	assert.Equal(t, 1, p.Live())

	p.Release(a)
	assert.Equal(t, 0, p.Live())
	assert.Equal(t, 1, p.Free())

	b := p.Acquire()
	assert.Same(t, a, b, "released values are reused")
	assert.Equal(t, 0, b.Value, "released values are zeroed")
}

func TestPoolGrowsOnDemand(t *testing.T) {
	p := New[item](nil)

	items := make([]*item, 0, 100)
	for range 100 {
		items = append(items, p.Acquire())
	}
	assert.Equal(t, 100, p.Live())

	for _, it := range items {
		p.Release(it)
	}
	assert.Equal(t, 0, p.Live())
	assert.Equal(t, 100, p.Free())
}

func TestPoolCustomReset(t *testing.T) {
	p := New(func(it *item) {
		it.Value = -1
		it.Tags = it.Tags[:0]
	})

	a := p.Acquire()
	a.Tags = append(a.Tags, "x", "y")
	p.Release(a)

	b := p.Acquire()
	assert.Equal(t, -1, b.Value)
	assert.Empty(t, b.Tags)
	assert.Equal(t, 2, cap(b.Tags), "custom reset may keep backing storage")
}

func TestPoolReleaseNil(t *testing.T) {
	p := New[item](nil)
	p.Release(nil)
	assert.Equal(t, 0, p.Live())
	assert.Equal(t, 0, p.Free())
}
