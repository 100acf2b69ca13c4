// Package id defines the 128-bit opaque identifiers used to name every
// registered entity (mesh, material, texture, light) in the pipeline.
package id

import "github.com/google/uuid"

// ID is a 128-bit opaque identifier. The zero value is Nil and never
// issued by New.
type ID uuid.UUID

// Nil is the zero ID, used as a sentinel for "no id" (e.g. no LUT binding).
var Nil ID

// New returns a fresh random ID.
func New() ID {
	return ID(uuid.New())
}

// IsNil reports whether id is the zero value.
func (i ID) IsNil() bool {
	return i == Nil
}

func (i ID) String() string {
	return uuid.UUID(i).String()
}
