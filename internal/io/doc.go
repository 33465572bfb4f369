// Package ioutils provides the filesystem primitives used by the downloader
// and the organizer.
//
// Every operation goes through an afero.Fs, so tests run against an
// in-memory filesystem:
//
//	store := ioutils.NewStore(afero.NewMemMapFs())
//
// # Atomic writes
//
// WriteFileAtomic writes to a temporary file in the destination directory and
// renames it into place, so a reader never observes a partially written
// artifact:
//
//	err := store.WriteFileAtomic("/schematics/Curated/1-drill.msch", body)
//
// # Moves
//
// Move renames a file, replacing any existing destination. On a single
// filesystem the rename is atomic: the file is visible at exactly one of the
// two paths at any instant.
//
// Every failure is wrapped with ErrFilesystem.
package ioutils
