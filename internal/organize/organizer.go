package organize

import (
	"fmt"
	"path/filepath"

	ioutils "github.com/handiism/msch-harvester/internal/io"
	"github.com/handiism/msch-harvester/internal/msch"
)

// Organizer moves classified artifacts into version directories.
//
// An artifact at <dir>/<name> classified as family F ends up at
// <dir>/<F>/<name>. The move is a rename, so the file is visible at exactly
// one of the two paths at any time. A file already at the destination is
// replaced: the last move wins.
type Organizer struct {
	store *ioutils.Store
}

// NewOrganizer creates an Organizer.
func NewOrganizer(store *ioutils.Store) *Organizer {
	return &Organizer{store: store}
}

// Destination returns where Move will put the artifact at path.
func Destination(path string, family msch.Family) string {
	return filepath.Join(filepath.Dir(path), family.String(), filepath.Base(path))
}

// Move relocates the artifact at path and returns its new path.
//
// The version directory is created if needed. Filesystem errors wrap
// ioutils.ErrFilesystem.
func (o *Organizer) Move(path string, family msch.Family) (string, error) {
	if !family.Valid() {
		return "", fmt.Errorf("organize: cannot move %s to family %v", path, family)
	}
	dest := Destination(path, family)

	if err := o.store.EnsureDir(filepath.Dir(dest)); err != nil {
		return "", err
	}
	if err := o.store.Move(path, dest); err != nil {
		return "", err
	}

	return dest, nil
}
