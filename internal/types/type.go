// Package types models the types and members referenced by IL method bodies:
// primitive kinds, named classes and value types, arrays, pointers, by-refs,
// fields, methods and parameters.
//
// Types are interned per module. Two references to the same named type share
// one *Named, so identity comparison is sufficient for named types.
package types

// Type is the interface implemented by all types.
type Type interface {
	// Underlying returns the underlying type.
	// For enums, returns the integral type the enum is stored as.
	// For all other types, returns the receiver.
	Underlying() Type

	// String returns the C#-like spelling of the type.
	String() string

	// aType is a marker method to restrict implementations to this package.
	aType()
}

// typ is a base struct for all type implementations.
type typ struct{}

func (typ) aType() {}
