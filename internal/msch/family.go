package msch

import "fmt"

// Family is the inferred generation of the software that wrote a schematic.
type Family int

const (
	// FamilyUnknown is returned alongside every classification error.
	FamilyUnknown Family = iota

	// FamilyV5 containers carry a zero version byte and no compressed header.
	FamilyV5

	// FamilyV6 containers have a compressed header without a "labels" tag.
	FamilyV6

	// FamilyV7 containers have a compressed header with a "labels" tag.
	FamilyV7
)

// Families lists every valid family in declaration order.
var Families = []Family{FamilyV5, FamilyV6, FamilyV7}

// String returns the family name, which is also its directory name.
func (f Family) String() string {
	switch f {
	case FamilyV5:
		return "V5"
	case FamilyV6:
		return "V6"
	case FamilyV7:
		return "V7"
	default:
		return "Unknown"
	}
}

// Valid reports whether f is one of V5, V6 or V7.
func (f Family) Valid() bool {
	return f >= FamilyV5 && f <= FamilyV7
}

// ParseFamily converts a directory name back into a Family.
func ParseFamily(name string) (Family, error) {
	for _, f := range Families {
		if f.String() == name {
			return f, nil
		}
	}
	return FamilyUnknown, fmt.Errorf("unknown version family %q", name)
}
