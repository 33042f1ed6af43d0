package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingAdvanceWraps(t *testing.T) {
	r := NewRing("a", "b", "c")
	assert.Equal(t, "a", r.Current())
	assert.Equal(t, "b", r.Advance())
	assert.Equal(t, "c", r.Advance())
	assert.Equal(t, "a", r.Advance())
	assert.Equal(t, 0, r.Cursor())
	assert.Equal(t, 3, r.Len())
}

func TestRingPanicsWhenEmpty(t *testing.T) {
	assert.Panics(t, func() { NewRing[int]() })
}

func TestStackLIFO(t *testing.T) {
	var s Stack[int]
	assert.True(t, s.Empty())
	s.Push(1)
	s.Push(2)
	s.Push(3)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 3, s.Pop())
	assert.Equal(t, []int{1, 2}, s.Data())
}
