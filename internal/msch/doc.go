// Package msch classifies schematic containers by the generation of the
// software that produced them.
//
// # Container Layout
//
//	0..3  "msch"
//	4     container version (uint8)
//	5..   zlib stream, present when the version is not 0
//
// The inflated header starts with width and height (uint16 each, big
// endian), a uint8 tag count, then that many key/value pairs. Each string is
// prefixed with its uint16 big-endian byte length.
//
// # Families
//
//   - V5: version byte is 0
//   - V6: compressed header without a "labels" tag
//   - V7: compressed header with a "labels" tag
//
// # Basic Usage
//
//	family, err := msch.Classify(data)
//	switch {
//	case errors.Is(err, msch.ErrFormat):
//	    // not a schematic
//	case err != nil:
//	    // corrupt or truncated
//	}
//
// Classification is read-only. ClassifyAt reports the position right after
// the version byte so callers can continue from there.
package msch
