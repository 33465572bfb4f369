package model

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Schematic is one downloadable schematic reference taken from a dump.
//
// Records are immutable once read. The ID is the host-assigned identifier of
// the message the schematic was attached to, which makes it unique within a
// category.
//
// Example:
//
//	rec := Schematic{ID: "1234", FileName: "drill.msch", URL: attachmentURL}
//	rec.ArtifactName() // "1234-drill.msch"
type Schematic struct {
	// ID is the host-assigned identifier of the posting.
	ID string

	// FileName is the attachment file name as uploaded.
	FileName string

	// URL is where the attachment can be downloaded from.
	URL string

	// Size is the attachment size in bytes as reported by the host.
	Size int64

	// Date is the posting time in epoch milliseconds.
	Date int64
}

// PostedAt converts Date to a time.Time.
func (s Schematic) PostedAt() time.Time {
	return time.UnixMilli(s.Date)
}

// ArtifactName returns the on-disk file name for this schematic.
//
// The name is "<id>-<fileName>" with characters that are invalid in file
// names replaced, so the result never contains a path separator.
func (s Schematic) ArtifactName() string {
	return sanitizeFileName(s.ID + "-" + s.FileName)
}

// Task is a unit of work for the download scheduler.
//
// A task is a plain value. The scheduler re-queues the same value with
// Attempts incremented after each failed transfer.
type Task struct {
	Category  Category
	Schematic Schematic

	// Attempts counts transfers already made for this task.
	Attempts int
}

// NewTask creates a task for a record of the given category.
func NewTask(category Category, schematic Schematic) Task {
	return Task{Category: category, Schematic: schematic}
}

// Key identifies the destination of the task. No two in-flight tasks may
// share a key.
func (t Task) Key() string {
	return filepath.Join(t.Category.String(), t.Schematic.ArtifactName())
}

// Destination returns the pre-classification artifact path under root.
func (t Task) Destination(root string) string {
	return filepath.Join(root, t.Key())
}

// CategoryDir returns the directory holding unsorted artifacts of a category.
func CategoryDir(root string, category Category) string {
	return filepath.Join(root, category.String())
}

var (
	invalidFileNameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDots         = regexp.MustCompile(`\.+$`)
	repeatedWhitespace   = regexp.MustCompile(`\s+`)
)

// sanitizeFileName removes or replaces characters that are invalid in file names.
//
// The following transformations are applied:
//   - Invalid characters (<>:"/\|?* and control chars) are replaced with underscore
//   - Trailing dots are removed (Windows limitation)
//   - Multiple whitespace is collapsed to single space
//   - Trailing whitespace is removed
//   - A name made only of dots becomes an underscore
func sanitizeFileName(name string) string {
	name = invalidFileNameChars.ReplaceAllString(name, "_")
	name = trailingDots.ReplaceAllString(name, "")
	name = repeatedWhitespace.ReplaceAllString(name, " ")
	name = strings.TrimRight(name, " ")

	if name == "" {
		return "_"
	}

	return name
}
