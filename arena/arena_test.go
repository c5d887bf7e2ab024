package arena_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dnsresolver/rescache/arena"
)

func TestAllocZeroed(t *testing.T) {
	a := arena.New(16)
	b := a.Alloc(4)
	assert.Len(t, b, 4)
	assert.Equal(t, []byte{0, 0, 0, 0}, b)
}

func TestAllocInitCopies(t *testing.T) {
	a := arena.New(16)
	src := []byte("abcd")
	b := a.AllocInit(src)
	assert.Equal(t, src, b)

	src[0] = 'z'
	assert.Equal(t, byte('a'), b[0], "arena copy must not alias caller's slice")
}

func TestAllocFailsGracefullyOnExhaustion(t *testing.T) {
	a := arena.New(4)
	ok := a.Alloc(4)
	assert.NotNil(t, ok)

	exhausted := a.Alloc(1)
	assert.Nil(t, exhausted, "over-budget alloc must return nil, never panic")
}

func TestResetReclaimsBudget(t *testing.T) {
	a := arena.New(4)
	a.Alloc(4)
	assert.Equal(t, 0, a.Remaining())

	a.Reset()
	assert.Equal(t, 4, a.Remaining())
}

func TestNilArenaIsSafe(t *testing.T) {
	var a *arena.Arena
	assert.Nil(t, a.Alloc(4))
	assert.Equal(t, 0, a.Used())
	assert.Equal(t, 0, a.Remaining())
	a.Reset() // must not panic
}
