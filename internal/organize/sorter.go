package organize

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	ioutils "github.com/handiism/msch-harvester/internal/io"
	"github.com/handiism/msch-harvester/internal/model"
	"github.com/handiism/msch-harvester/internal/msch"
	"github.com/handiism/msch-harvester/internal/progress"
)

// Options configures a Sorter.
type Options struct {
	// Root is the schematics directory holding one directory per category.
	Root string

	// Workers bounds how many artifacts are classified at once.
	// Default: 4
	Workers int
}

// Rejection is an artifact left in place because it could not be classified.
type Rejection struct {
	Path string
	Err  error
}

// Report summarizes a Sorter run.
type Report struct {
	Categories []model.Category
	Moved      int
	Families   map[msch.Family]int
	Rejected   []Rejection

	// Summed time spent per step, across workers.
	Reading     time.Duration
	Classifying time.Duration
	Moving      time.Duration

	Elapsed time.Duration
}

// Sorter classifies every unsorted artifact under Root and moves it into
// its version directory.
//
// Only regular files directly inside a known category directory are
// considered. Version directories from earlier runs, hidden files and
// directories that are not a category are left alone.
type Sorter struct {
	store      *ioutils.Store
	organizer  *Organizer
	opts       Options
	onProgress progress.Func
	log        *slog.Logger

	mu     sync.Mutex
	report Report
}

// NewSorter creates a Sorter. onProgress and log may be nil.
func NewSorter(store *ioutils.Store, opts Options, onProgress progress.Func, log *slog.Logger) *Sorter {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Sorter{
		store:      store,
		organizer:  NewOrganizer(store),
		opts:       opts,
		onProgress: onProgress,
		log:        log.With(slog.String("component", "organize")),
	}
}

// Run sorts every category directory under Root.
//
// A classification failure rejects that artifact only. A filesystem error
// stops the run and is returned together with the partial report.
func (s *Sorter) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	s.mu.Lock()
	s.report = Report{Families: make(map[msch.Family]int)}
	s.mu.Unlock()

	entries, err := s.store.ReadDir(s.opts.Root)
	if err != nil {
		return s.finish(start), fmt.Errorf("%w: list %s: %v", ioutils.ErrFilesystem, s.opts.Root, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		category, err := model.ParseCategory(entry.Name())
		if err != nil {
			s.onProgress.Emit(progress.LevelInfo, "%s is not a valid schematic category. Skipping...", entry.Name())
			continue
		}

		if err := s.sortCategory(gctx, g, category); err != nil {
			g.Wait()
			return s.finish(start), err
		}
	}

	if err := g.Wait(); err != nil {
		return s.finish(start), err
	}
	return s.finish(start), ctx.Err()
}

func (s *Sorter) sortCategory(ctx context.Context, g *errgroup.Group, category model.Category) error {
	dir := model.CategoryDir(s.opts.Root, category)
	s.log.Debug("sorting category", slog.String("category", category.String()))

	s.mu.Lock()
	s.report.Categories = append(s.report.Categories, category)
	s.mu.Unlock()

	files, err := s.store.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("%w: list %s: %v", ioutils.ErrFilesystem, dir, err)
	}

	for _, f := range files {
		if !f.Mode().IsRegular() || strings.HasPrefix(f.Name(), ".") {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}

		path := filepath.Join(dir, f.Name())
		g.Go(func() error {
			return s.sortFile(path)
		})
	}
	return nil
}

func (s *Sorter) sortFile(path string) error {
	start := time.Now()
	data, err := s.store.ReadFile(path)
	read := time.Since(start)
	if err != nil {
		s.onProgress.Emit(progress.LevelError, "Error reading %s: %v", path, err)
		return fmt.Errorf("%w: read %s: %v", ioutils.ErrFilesystem, path, err)
	}

	start = time.Now()
	family, err := msch.Classify(data)
	classify := time.Since(start)
	if err != nil {
		s.mu.Lock()
		s.report.Reading += read
		s.report.Classifying += classify
		s.report.Rejected = append(s.report.Rejected, Rejection{Path: path, Err: err})
		s.mu.Unlock()

		s.onProgress.Emit(progress.LevelWarning, "Rejected %s: %v", path, err)
		s.log.Warn("classification failed", slog.String("path", path), slog.Any("error", err))
		return nil
	}

	start = time.Now()
	dest, err := s.organizer.Move(path, family)
	move := time.Since(start)

	s.mu.Lock()
	s.report.Reading += read
	s.report.Classifying += classify
	s.report.Moving += move
	if err == nil {
		s.report.Moved++
		s.report.Families[family]++
	}
	s.mu.Unlock()

	if err != nil {
		s.onProgress.Emit(progress.LevelError, "Error moving %s: %v", path, err)
		return err
	}

	s.onProgress.Emit(progress.LevelVerbose, "%s -> %s", path, dest)
	return nil
}

func (s *Sorter) finish(start time.Time) Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := s.report
	report.Elapsed = time.Since(start)
	report.Rejected = append([]Rejection(nil), s.report.Rejected...)
	return report
}
