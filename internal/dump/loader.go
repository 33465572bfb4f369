package dump

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/handiism/msch-harvester/internal/download"
	"github.com/handiism/msch-harvester/internal/dump/dto"
	ioutils "github.com/handiism/msch-harvester/internal/io"
	"github.com/handiism/msch-harvester/internal/model"
	"github.com/handiism/msch-harvester/internal/progress"
)

// Dump is one parsed dump file.
type Dump struct {
	// File is the path the dump was read from.
	File string

	Category               model.Category
	LastProcessedMessageID string
	Schematics             []model.Schematic
}

// ParseError reports a dump file that could not be read or parsed.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("dump %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Loader reads dump files from a directory.
//
// Example usage:
//
//	loader := dump.NewLoader(store, printer.Func(), logger)
//	dumps, errs := loader.Load("dumps")
//	for _, err := range errs {
//	    fmt.Println(err) // the other files were still loaded
//	}
type Loader struct {
	store      *ioutils.Store
	onProgress progress.Func
	log        *slog.Logger
}

// NewLoader creates a Loader. onProgress and log may be nil.
func NewLoader(store *ioutils.Store, onProgress progress.Func, log *slog.Logger) *Loader {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Loader{
		store:      store,
		onProgress: onProgress,
		log:        log.With(slog.String("component", "dump")),
	}
}

// Load parses every regular file in dir, in name order.
//
// A file that fails to parse is reported as a *ParseError and does not stop
// the others. If dir itself cannot be listed the only error returned wraps
// ioutils.ErrFilesystem.
func (l *Loader) Load(dir string) ([]Dump, []error) {
	entries, err := l.store.ReadDir(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("%w: list dumps in %s: %v", ioutils.ErrFilesystem, dir, err)}
	}

	var dumps []Dump
	var errs []error
	for _, entry := range entries {
		if !entry.Mode().IsRegular() {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		d, err := l.LoadFile(path)
		if err != nil {
			errs = append(errs, err)
			l.onProgress.Emit(progress.LevelError, "Skipping dump %s: %v", entry.Name(), err)
			l.log.Warn("dump rejected", slog.String("file", path), slog.Any("error", err))
			continue
		}

		dumps = append(dumps, d)
		l.onProgress.Emit(progress.LevelVerbose, "Loaded dump %s: %d %s records", entry.Name(), len(d.Schematics), d.Category)
	}

	return dumps, errs
}

// LoadFile parses a single dump file.
func (l *Loader) LoadFile(path string) (Dump, error) {
	data, err := l.store.ReadFile(path)
	if err != nil {
		return Dump{}, &ParseError{File: path, Err: err}
	}

	var jd dto.JSONDump
	if err := json.Unmarshal(data, &jd); err != nil {
		return Dump{}, &ParseError{File: path, Err: err}
	}

	category, err := jd.Category()
	if err != nil {
		return Dump{}, &ParseError{File: path, Err: err}
	}

	records, err := jd.Records()
	if err != nil {
		return Dump{}, &ParseError{File: path, Err: err}
	}

	return Dump{
		File:                   path,
		Category:               category,
		LastProcessedMessageID: jd.LastProcessedMessageID,
		Schematics:             records,
	}, nil
}

// Enqueuer accepts download tasks. *download.Scheduler implements it.
type Enqueuer interface {
	Enqueue(task model.Task) error
}

// Ingested summarizes one Enqueue call.
type Ingested struct {
	Dumps        int // dumps whose records were queued
	SkippedDumps int // dumps whose category is in the skip list
	Records      int // tasks handed to the scheduler
	Duplicates   int
	Categories   []model.Category
}

// Enqueue creates the category directory of every dump under root and
// hands its records to s as tasks, in dump order then record order.
//
// Dumps whose category is in skip are ignored. A duplicate record is counted
// and skipped. Any other error, including a failure to create a directory,
// stops ingestion.
func Enqueue(store *ioutils.Store, root string, dumps []Dump, skip map[model.Category]bool, s Enqueuer, onProgress progress.Func) (Ingested, error) {
	var ing Ingested
	seen := make(map[model.Category]bool)

	for _, d := range dumps {
		if skip[d.Category] {
			ing.SkippedDumps++
			onProgress.Emit(progress.LevelInfo, "Skipping dump %s: category %s is skipped", filepath.Base(d.File), d.Category)
			continue
		}

		if err := store.EnsureDir(model.CategoryDir(root, d.Category)); err != nil {
			return ing, err
		}
		if !seen[d.Category] {
			seen[d.Category] = true
			ing.Categories = append(ing.Categories, d.Category)
		}

		ing.Dumps++
		for _, rec := range d.Schematics {
			err := s.Enqueue(model.NewTask(d.Category, rec))
			switch {
			case err == nil:
				ing.Records++
			case errors.Is(err, download.ErrDuplicate):
				ing.Duplicates++
				onProgress.Emit(progress.LevelWarning, "Duplicate record %s in %s", rec.ArtifactName(), filepath.Base(d.File))
			default:
				return ing, err
			}
		}
	}

	return ing, nil
}
