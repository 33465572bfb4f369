package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/handiism/msch-harvester/internal/http"
	ioutils "github.com/handiism/msch-harvester/internal/io"
	"github.com/handiism/msch-harvester/internal/model"
	"github.com/handiism/msch-harvester/internal/msch"
	"github.com/handiism/msch-harvester/internal/progress"
)

var (
	// ErrClosed is returned by Enqueue after Close.
	ErrClosed = errors.New("download: scheduler closed")

	// ErrDuplicate is returned by Enqueue for a task whose destination is
	// already queued, in flight or waiting for a retry.
	ErrDuplicate = errors.New("download: duplicate destination")

	// ErrRunning is returned by a second concurrent call to Run.
	ErrRunning = errors.New("download: scheduler already running")
)

// Fetcher performs a single transfer. *http.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Options configures a Scheduler.
type Options struct {
	// Root is the schematics directory artifacts are written under.
	Root string

	// MaxConcurrent is K, the number of transfers allowed in flight.
	// Default: 10
	MaxConcurrent int

	// RateLimitCooldown is how long a task that got HTTP 429 keeps its slot
	// before re-entering the queue.
	// Default: 10s
	RateLimitCooldown time.Duration

	Retry RetryPolicy

	// SkipExisting skips tasks whose artifact is already on disk, sorted
	// or not.
	SkipExisting bool
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Root:              "schematics",
		MaxConcurrent:     10,
		RateLimitCooldown: 10 * time.Second,
		Retry:             DefaultRetryPolicy(),
		SkipExisting:      true,
	}
}

// Scheduler downloads tasks from a FIFO queue with at most K transfers in
// flight.
//
// Tasks are added with Enqueue, which may be called before or during Run.
// Run returns once Close has been called, the queue is empty, and no task is
// in flight or waiting for a retry.
//
// Failure handling:
//   - HTTP 429: the task keeps its slot for RateLimitCooldown, then goes to
//     the tail of the queue
//   - any other failure: the slot is released at once and the task goes to
//     the tail after the retry policy's delay
//   - a filesystem error while saving stops the run
type Scheduler struct {
	fetcher    Fetcher
	store      *ioutils.Store
	opts       Options
	onProgress progress.Func
	log        *slog.Logger

	slots *semaphore.Weighted
	wake  chan struct{}

	mu       sync.Mutex
	queue    []model.Task
	known    map[string]struct{}
	closed   bool
	running  bool
	started  time.Time
	stats    Stats
	failures []Failure
	fatal    error
}

// New creates a Scheduler. onProgress and log may be nil.
func New(fetcher Fetcher, store *ioutils.Store, opts Options, onProgress progress.Func, log *slog.Logger) *Scheduler {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultOptions().MaxConcurrent
	}
	if opts.RateLimitCooldown < 0 {
		opts.RateLimitCooldown = 0
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Scheduler{
		fetcher:    fetcher,
		store:      store,
		opts:       opts,
		onProgress: onProgress,
		log:        log.With(slog.String("component", "download")),
		slots:      semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		wake:       make(chan struct{}, 1),
		known:      make(map[string]struct{}),
	}
}

// Enqueue appends a task to the tail of the queue.
//
// Returns ErrClosed after Close, and ErrDuplicate if a task with the same
// destination is already known to the scheduler. A task skipped because its
// artifact exists is not an error.
func (s *Scheduler) Enqueue(task model.Task) error {
	key := task.Key()

	var existing string
	if s.opts.SkipExisting {
		existing = s.existingArtifact(task)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, ok := s.known[key]; ok {
		s.stats.Duplicates++
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicate, key)
	}
	if existing != "" {
		s.stats.Skipped++
		s.mu.Unlock()
		s.onProgress.Emit(progress.LevelVerbose, "Skipping existing: %s", existing)
		return nil
	}

	s.known[key] = struct{}{}
	s.queue = append(s.queue, task)
	s.stats.Enqueued++
	s.mu.Unlock()

	s.signal()
	return nil
}

// Close seals the queue. Run drains what is left and returns.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.signal()
}

// Run admits queued tasks until the scheduler is closed and drained.
//
// The returned report is valid even when an error is returned. The error is
// the context's error if ctx ended first, or the filesystem error that
// stopped the run.
func (s *Scheduler) Run(ctx context.Context) (Report, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return Report{}, ErrRunning
	}
	s.running = true
	s.started = time.Now()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var wg sync.WaitGroup
	runErr := s.admit(ctx, cancel, &wg)
	wg.Wait()

	s.mu.Lock()
	if s.fatal != nil {
		runErr = s.fatal
	}
	s.mu.Unlock()

	report := s.report()
	s.log.Info("download run finished",
		slog.Int("requests", report.TotalRequests),
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed),
		slog.Int("rate_limited", report.RateLimited),
		slog.Int("abandoned", report.Abandoned),
		slog.Duration("elapsed", report.Elapsed),
	)

	return report, runErr
}

// admit is the admission loop. Each iteration takes a slot, then a task;
// the slot passes to the transfer goroutine.
func (s *Scheduler) admit(ctx context.Context, cancel context.CancelCauseFunc, wg *sync.WaitGroup) error {
	for {
		if err := s.slots.Acquire(ctx, 1); err != nil {
			return context.Cause(ctx)
		}

		task, ok, done := s.next()
		if done {
			s.slots.Release(1)
			return nil
		}
		if !ok {
			s.slots.Release(1)
			select {
			case <-s.wake:
				continue
			case <-ctx.Done():
				return context.Cause(ctx)
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.transfer(ctx, wg, task); err != nil {
				s.mu.Lock()
				if s.fatal == nil {
					s.fatal = err
				}
				s.mu.Unlock()
				cancel(err)
			}
		}()
	}
}

// next dequeues the head of the queue. done is true once the scheduler is
// closed and nothing is queued, in flight or waiting.
func (s *Scheduler) next() (task model.Task, ok, done bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) > 0 {
		task = s.queue[0]
		s.queue[0] = model.Task{}
		s.queue = s.queue[1:]
		s.stats.InFlight++
		return task, true, false
	}

	done = s.closed && s.stats.InFlight == 0 && s.stats.Waiting == 0
	return model.Task{}, false, done
}

// transfer runs one attempt of task while holding a slot. The slot is
// released on every path.
func (s *Scheduler) transfer(ctx context.Context, wg *sync.WaitGroup, task model.Task) error {
	key := task.Key()
	task.Attempts++

	s.mu.Lock()
	s.stats.TotalRequests++
	s.mu.Unlock()

	s.onProgress.Emit(progress.LevelVerbose, "Downloading %s (attempt %d)", key, task.Attempts)

	start := time.Now()
	body, err := s.fetcher.Fetch(ctx, task.Schematic.URL)
	s.addDuration(&s.stats.Downloading, time.Since(start))

	if ctx.Err() != nil {
		s.requeue(task, false)
		s.slots.Release(1)
		return nil
	}

	switch {
	case err == nil:
		defer s.slots.Release(1)
		return s.save(task, body)

	case errors.Is(err, http.ErrRateLimited):
		s.mu.Lock()
		s.stats.RateLimited++
		s.stats.Failed++
		s.mu.Unlock()

		if s.opts.Retry.Exhausted(task.Attempts) {
			s.abandon(task, err)
			s.slots.Release(1)
			return nil
		}

		s.onProgress.Emit(progress.LevelWarning, "Rate limited on %s, cooling down for %s", key, s.opts.RateLimitCooldown)
		s.log.Debug("rate limited", slog.String("task", key), slog.Duration("cooldown", s.opts.RateLimitCooldown))

		sleep(ctx, s.opts.RateLimitCooldown)
		s.requeue(task, false)
		s.slots.Release(1)
		return nil

	default:
		s.mu.Lock()
		s.stats.Failed++
		s.mu.Unlock()

		if s.opts.Retry.Exhausted(task.Attempts) {
			s.abandon(task, err)
			s.slots.Release(1)
			return nil
		}

		delay := s.opts.Retry.Delay(task.Attempts)
		s.onProgress.Emit(progress.LevelWarning, "Retry %d for %s in %s: %v", task.Attempts, key, delay, err)
		s.log.Debug("transfer failed", slog.String("task", key), slog.Int("attempt", task.Attempts), slog.Any("error", err))

		if delay <= 0 {
			s.requeue(task, false)
			s.slots.Release(1)
			return nil
		}

		s.mu.Lock()
		s.stats.InFlight--
		s.stats.Waiting++
		s.mu.Unlock()
		s.slots.Release(1)

		wg.Add(1)
		go func() {
			defer wg.Done()
			sleep(ctx, delay)
			s.requeue(task, true)
		}()
		return nil
	}
}

func (s *Scheduler) save(task model.Task, body []byte) error {
	key := task.Key()
	dest := task.Destination(s.opts.Root)

	start := time.Now()
	err := s.store.EnsureDir(filepath.Dir(dest))
	if err == nil {
		err = s.store.WriteFileAtomic(dest, body)
	}
	s.addDuration(&s.stats.Saving, time.Since(start))

	s.mu.Lock()
	s.stats.InFlight--
	delete(s.known, key)
	if err == nil {
		s.stats.Succeeded++
		s.stats.BytesSaved += int64(len(body))
	}
	s.mu.Unlock()
	s.signal()

	if err != nil {
		s.onProgress.Emit(progress.LevelError, "Error saving %s: %v", key, err)
		s.log.Error("save failed", slog.String("task", key), slog.Any("error", err))
		return err
	}

	s.onProgress.Emit(progress.LevelSuccess, "Downloaded %s (%s)", key, progress.FormatBytes(int64(len(body))))
	return nil
}

// requeue puts task at the tail. waiting tells whether the task was counted
// as waiting rather than in flight.
func (s *Scheduler) requeue(task model.Task, waiting bool) {
	s.mu.Lock()
	if waiting {
		s.stats.Waiting--
	} else {
		s.stats.InFlight--
	}
	s.queue = append(s.queue, task)
	s.mu.Unlock()

	s.signal()
}

func (s *Scheduler) abandon(task model.Task, err error) {
	s.mu.Lock()
	s.stats.InFlight--
	s.stats.Abandoned++
	delete(s.known, task.Key())
	s.failures = append(s.failures, Failure{Task: task, Err: err})
	s.mu.Unlock()
	s.signal()

	s.onProgress.Emit(progress.LevelError, "Giving up on %s after %d attempts: %v", task.Key(), task.Attempts, err)
	s.log.Warn("task abandoned", slog.String("task", task.Key()), slog.Int("attempts", task.Attempts), slog.Any("error", err))
}

// Snapshot returns the current counters.
func (s *Scheduler) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	stats.Queued = len(s.queue)
	if !s.started.IsZero() {
		stats.Elapsed = time.Since(s.started)
	}
	return stats
}

func (s *Scheduler) report() Report {
	stats := s.Snapshot()

	s.mu.Lock()
	failures := append([]Failure(nil), s.failures...)
	s.mu.Unlock()

	return Report{Stats: stats, Failures: failures}
}

// existingArtifact returns the path of an artifact already on disk for
// task, or "" if there is none.
func (s *Scheduler) existingArtifact(task model.Task) string {
	dest := task.Destination(s.opts.Root)
	if s.store.Exists(dest) {
		return dest
	}

	dir := model.CategoryDir(s.opts.Root, task.Category)
	name := task.Schematic.ArtifactName()
	for _, f := range msch.Families {
		p := filepath.Join(dir, f.String(), name)
		if s.store.Exists(p) {
			return p
		}
	}
	return ""
}

func (s *Scheduler) addDuration(dst *time.Duration, d time.Duration) {
	s.mu.Lock()
	*dst += d
	s.mu.Unlock()
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
