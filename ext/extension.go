package ext

import "github.com/sqlvibe/fnvm/internal/VM"

// Extension is a named set of functions that can be installed into a
// function registry while it is still being built.
type Extension interface {
	// Name returns the unique extension identifier (e.g., "json", "math").
	Name() string
	// Description returns a human-readable description of the extension.
	Description() string
	// Functions returns the names of the functions Install registers.
	Functions() []string
	// Install registers the extension's functions into b.
	Install(b *VM.Builder) error
}
