// Package organize moves downloaded schematics into per-version
// directories.
//
// Before sorting, an artifact lives at <root>/<category>/<name>. After
// sorting it lives at <root>/<category>/<V5|V6|V7>/<name>.
//
// # Organizer
//
// Organizer.Move performs one relocation with a rename. If the destination
// already exists it is overwritten.
//
// # Sorter
//
// Sorter walks the category directories, classifies every unsorted file
// with msch.Classify and moves it with the Organizer:
//
//	sorter := organize.NewSorter(store, organize.Options{Root: "schematics"}, onProgress, logger)
//	report, err := sorter.Run(ctx)
//
// Files that fail classification are reported in Report.Rejected and left
// where they are. Filesystem errors end the run.
package organize
