package util

import (
	"fmt"
	"reflect"
)

// Assert panics with a formatted message if the condition is false.
// This is used to catch programming errors, never malformed input.
// Usage: util.Assert(i < n, "index %d out of range", i)
func Assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("Assertion failed: "+format, args...))
	}
}

// Assertf is an alias for Assert for convenience
func Assertf(condition bool, format string, args ...interface{}) {
	Assert(condition, format, args...)
}

// AssertNotNil panics if the value is nil (including typed nils like (*int)(nil))
func AssertNotNil(value interface{}, name string) {
	if value == nil {
		panic(fmt.Sprintf("Assertion failed: %s must not be nil", name))
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Map, reflect.Interface:
		if v.IsNil() {
			panic(fmt.Sprintf("Assertion failed: %s must not be nil", name))
		}
	}
}
