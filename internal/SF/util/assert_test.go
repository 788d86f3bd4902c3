package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssert_Pass(t *testing.T) {
	assert.NotPanics(t, func() {
		Assert(true, "this should pass")
		Assert(len("test") == 4, "string length is %d", 4)
	})
}

func TestAssert_Fail(t *testing.T) {
	assert.Panics(t, func() { Assert(false, "this should fail") })
}

func TestAssertf_Message(t *testing.T) {
	assert.PanicsWithValue(t, "Assertion failed: value 5 is not equal to 10", func() {
		Assertf(5 == 10, "value %d is not equal to %d", 5, 10)
	})
}

func TestAssertNotNil(t *testing.T) {
	s := "test"
	assert.NotPanics(t, func() {
		AssertNotNil(s, "string")
		AssertNotNil(&s, "pointer")
		AssertNotNil(func() {}, "func")
	})

	var ptr *string
	assert.Panics(t, func() { AssertNotNil(ptr, "pointer") })

	var fn func()
	assert.PanicsWithValue(t, "Assertion failed: fn must not be nil", func() { AssertNotNil(fn, "fn") })
	assert.Panics(t, func() { AssertNotNil(nil, "nil") })
}
