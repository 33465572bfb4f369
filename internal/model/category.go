package model

import (
	"encoding/json"
	"fmt"
)

// Category partitions schematics into independent namespaces.
//
// The category only selects the top-level directory an artifact is stored
// under; it carries no other semantics. The set of categories is closed:
// every switch over Category must handle each constant below.
type Category int

const (
	// CategoryUnknown is the zero value and never appears in a valid dump.
	CategoryUnknown Category = iota

	// CategoryOfficialDiscord holds schematics posted in the community channel.
	CategoryOfficialDiscord

	// CategoryOfficialDiscordCurated holds schematics from the curated channel.
	CategoryOfficialDiscordCurated
)

// Categories lists every valid category in declaration order.
var Categories = []Category{
	CategoryOfficialDiscord,
	CategoryOfficialDiscordCurated,
}

// String returns the wire name of the category, which is also its directory name.
func (c Category) String() string {
	switch c {
	case CategoryOfficialDiscord:
		return "OfficialDiscordSchematic"
	case CategoryOfficialDiscordCurated:
		return "OfficialDiscordCuratedSchematic"
	default:
		return "Unknown"
	}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryOfficialDiscord, CategoryOfficialDiscordCurated:
		return true
	default:
		return false
	}
}

// ParseCategory converts a wire or directory name into a Category.
func ParseCategory(name string) (Category, error) {
	for _, c := range Categories {
		if c.String() == name {
			return c, nil
		}
	}
	return CategoryUnknown, fmt.Errorf("unknown schematic category %q", name)
}

// MarshalJSON encodes the category by name.
func (c Category) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid category %d", int(c))
	}
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a category name, rejecting unknown values.
func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}

	*c = parsed
	return nil
}
