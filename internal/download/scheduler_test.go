package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	client "github.com/handiism/msch-harvester/internal/http"
	ioutils "github.com/handiism/msch-harvester/internal/io"
	"github.com/handiism/msch-harvester/internal/model"
	"github.com/handiism/msch-harvester/internal/progress"
)

const root = "/schematics"

type fetchFunc func(ctx context.Context, url string) ([]byte, error)

func (f fetchFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

func testOptions(k int) Options {
	return Options{
		Root:              root,
		MaxConcurrent:     k,
		RateLimitCooldown: 50 * time.Millisecond,
		Retry:             RetryPolicy{MaxAttempts: 5, Cooldown: time.Millisecond, Exponent: 2},
	}
}

func task(baseURL, id string) model.Task {
	return model.NewTask(model.CategoryOfficialDiscord, model.Schematic{
		ID:       id,
		FileName: "s.msch",
		URL:      baseURL + "/" + id,
	})
}

func runAll(t *testing.T, s *Scheduler, tasks ...model.Task) Report {
	t.Helper()
	for _, tk := range tasks {
		require.NoError(t, s.Enqueue(tk))
	}
	s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	report, err := s.Run(ctx)
	require.NoError(t, err)
	return report
}

func readArtifact(t *testing.T, store *ioutils.Store, tk model.Task) string {
	t.Helper()
	data, err := store.ReadFile(tk.Destination(root))
	require.NoError(t, err)
	return string(data)
}

func TestSchedulerDownloadsAll(t *testing.T) {
	var current, peak atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := current.Add(1)
		defer current.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		fmt.Fprintf(w, "body%s", r.URL.Path)
	}))
	defer server.Close()

	store := ioutils.NewStore(afero.NewMemMapFs())
	s := New(client.NewClient(client.DefaultOptions()), store, testOptions(3), nil, nil)

	var tasks []model.Task
	for i := 0; i < 12; i++ {
		tasks = append(tasks, task(server.URL, fmt.Sprint(i)))
	}
	report := runAll(t, s, tasks...)

	assert.Equal(t, 12, report.TotalRequests)
	assert.Equal(t, 12, report.Succeeded)
	assert.Zero(t, report.Failed)
	assert.Zero(t, report.InFlight)
	assert.Zero(t, report.Queued)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Greater(t, peak.Load(), int32(1))

	for i, tk := range tasks {
		assert.Equal(t, fmt.Sprintf("body/%d", i), readArtifact(t, store, tk))
	}
}

func TestSchedulerAdmitsInFIFOOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	fetch := fetchFunc(func(ctx context.Context, url string) ([]byte, error) {
		mu.Lock()
		order = append(order, url)
		mu.Unlock()
		return []byte("x"), nil
	})

	s := New(fetch, ioutils.NewStore(afero.NewMemMapFs()), testOptions(1), nil, nil)
	runAll(t, s, task("u", "a"), task("u", "b"), task("u", "c"), task("u", "d"))

	assert.Equal(t, []string{"u/a", "u/b", "u/c", "u/d"}, order)
}

func TestSchedulerRateLimitedThenSucceeds(t *testing.T) {
	var mu sync.Mutex
	var times []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		n := len(times)
		mu.Unlock()

		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("first"))
			return
		}
		w.Write([]byte("second"))
	}))
	defer server.Close()

	store := ioutils.NewStore(afero.NewMemMapFs())
	opts := testOptions(2)
	s := New(client.NewClient(client.DefaultOptions()), store, opts, nil, nil)

	tk := task(server.URL, "1")
	report := runAll(t, s, tk)

	assert.Equal(t, 1, report.RateLimited)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.TotalRequests)
	assert.Equal(t, "second", readArtifact(t, store, tk))

	require.Len(t, times, 2)
	assert.GreaterOrEqual(t, times[1].Sub(times[0]), opts.RateLimitCooldown)
}

func TestSchedulerRateLimitHoldsSlot(t *testing.T) {
	var mu sync.Mutex
	var order []string
	var times []time.Time
	limited := false
	fetch := fetchFunc(func(ctx context.Context, url string) ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, url)
		times = append(times, time.Now())
		if url == "u/a" && !limited {
			limited = true
			return nil, &client.StatusError{URL: url, StatusCode: http.StatusTooManyRequests}
		}
		return []byte(url), nil
	})

	opts := testOptions(1)
	s := New(fetch, ioutils.NewStore(afero.NewMemMapFs()), opts, nil, nil)
	report := runAll(t, s, task("u", "a"), task("u", "b"))

	assert.Equal(t, []string{"u/a", "u/b", "u/a"}, order)
	assert.GreaterOrEqual(t, times[1].Sub(times[0]), opts.RateLimitCooldown,
		"the second task must wait while the first one cools down in the only slot")
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.RateLimited)
}

func TestSchedulerRetriesFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"transport error", &client.TransportError{URL: "u/1", Err: errors.New("connection reset")}},
		{"server error", &client.StatusError{URL: "u/1", StatusCode: http.StatusBadGateway}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			fetch := fetchFunc(func(ctx context.Context, url string) ([]byte, error) {
				if calls.Add(1) <= 2 {
					return nil, tt.err
				}
				return []byte("ok"), nil
			})

			store := ioutils.NewStore(afero.NewMemMapFs())
			s := New(fetch, store, testOptions(4), nil, nil)
			tk := task("u", "1")
			report := runAll(t, s, tk)

			assert.Equal(t, 3, report.TotalRequests)
			assert.Equal(t, 2, report.Failed)
			assert.Equal(t, 1, report.Succeeded)
			assert.Zero(t, report.RateLimited)
			assert.Zero(t, report.Waiting)
			assert.Equal(t, "ok", readArtifact(t, store, tk))
		})
	}
}

func TestSchedulerAbandonsAfterMaxAttempts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	store := ioutils.NewStore(afero.NewMemMapFs())
	opts := testOptions(2)
	opts.Retry.MaxAttempts = 3

	var events []string
	var mu sync.Mutex
	onProgress := func(e progress.Event) {
		mu.Lock()
		events = append(events, e.Message)
		mu.Unlock()
	}

	s := New(client.NewClient(client.DefaultOptions()), store, opts, onProgress, nil)
	tk := task(server.URL, "gone")
	report := runAll(t, s, tk)

	assert.Equal(t, 3, report.TotalRequests)
	assert.Equal(t, 3, report.Failed)
	assert.Equal(t, 1, report.Abandoned)
	assert.Zero(t, report.Succeeded)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 3, report.Failures[0].Task.Attempts)

	var serr *client.StatusError
	require.ErrorAs(t, report.Failures[0].Err, &serr)
	assert.Equal(t, http.StatusNotFound, serr.StatusCode)

	assert.False(t, store.Exists(tk.Destination(root)))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, events)
	assert.True(t, strings.HasPrefix(events[len(events)-1], "Giving up on"))
}

func TestSchedulerEnqueue(t *testing.T) {
	fetch := fetchFunc(func(ctx context.Context, url string) ([]byte, error) {
		return []byte("x"), nil
	})
	s := New(fetch, ioutils.NewStore(afero.NewMemMapFs()), testOptions(1), nil, nil)

	require.NoError(t, s.Enqueue(task("u", "1")))
	err := s.Enqueue(task("other-url", "1"))
	require.ErrorIs(t, err, ErrDuplicate)

	s.Close()
	require.ErrorIs(t, s.Enqueue(task("u", "2")), ErrClosed)

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Enqueued)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 1, report.Succeeded)
}

func TestSchedulerSameFileNameInDifferentCategories(t *testing.T) {
	fetch := fetchFunc(func(ctx context.Context, url string) ([]byte, error) {
		return []byte(url), nil
	})
	store := ioutils.NewStore(afero.NewMemMapFs())
	s := New(fetch, store, testOptions(2), nil, nil)

	a := task("u", "1")
	b := task("v", "1")
	b.Category = model.CategoryOfficialDiscordCurated

	report := runAll(t, s, a, b)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, "u/1", readArtifact(t, store, a))
	assert.Equal(t, "v/1", readArtifact(t, store, b))
}

func TestSchedulerSkipsExisting(t *testing.T) {
	var calls atomic.Int32
	fetch := fetchFunc(func(ctx context.Context, url string) ([]byte, error) {
		calls.Add(1)
		return []byte("new"), nil
	})

	fs := afero.NewMemMapFs()
	store := ioutils.NewStore(fs)
	unsorted := task("u", "1")
	sorted := task("u", "2")
	fresh := task("u", "3")

	require.NoError(t, afero.WriteFile(fs, unsorted.Destination(root), []byte("old"), 0644))
	sortedPath := filepath.Join(model.CategoryDir(root, sorted.Category), "V6", sorted.Schematic.ArtifactName())
	require.NoError(t, afero.WriteFile(fs, sortedPath, []byte("old"), 0644))

	opts := testOptions(2)
	opts.SkipExisting = true
	s := New(fetch, store, opts, nil, nil)
	report := runAll(t, s, unsorted, sorted, fresh)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, "old", readArtifact(t, store, unsorted))
	assert.False(t, store.Exists(sorted.Destination(root)))
}

func TestSchedulerStopsOnFilesystemError(t *testing.T) {
	fetch := fetchFunc(func(ctx context.Context, url string) ([]byte, error) {
		return []byte("x"), nil
	})
	store := ioutils.NewStore(afero.NewReadOnlyFs(afero.NewMemMapFs()))
	s := New(fetch, store, testOptions(1), nil, nil)

	require.NoError(t, s.Enqueue(task("u", "1")))
	require.NoError(t, s.Enqueue(task("u", "2")))
	s.Close()

	report, err := s.Run(context.Background())
	require.ErrorIs(t, err, ioutils.ErrFilesystem)
	assert.Zero(t, report.Succeeded)
}

func TestSchedulerRunCancelled(t *testing.T) {
	fetch := fetchFunc(func(ctx context.Context, url string) ([]byte, error) {
		return []byte("x"), nil
	})
	s := New(fetch, ioutils.NewStore(afero.NewMemMapFs()), testOptions(1), nil, nil)
	require.NoError(t, s.Enqueue(task("u", "1")))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for s.Snapshot().Succeeded == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	// Not closed, so only the context can end the run.
	report, err := s.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, report.Succeeded)
}

func TestSchedulerEnqueueWhileRunning(t *testing.T) {
	fetch := fetchFunc(func(ctx context.Context, url string) ([]byte, error) {
		time.Sleep(time.Millisecond)
		return []byte(url), nil
	})
	store := ioutils.NewStore(afero.NewMemMapFs())
	s := New(fetch, store, testOptions(3), nil, nil)

	go func() {
		for i := 0; i < 20; i++ {
			s.Enqueue(task("u", fmt.Sprint(i)))
			time.Sleep(time.Millisecond)
		}
		s.Close()
	}()

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, report.Succeeded)
	assert.Equal(t, 20, report.Enqueued)
}
