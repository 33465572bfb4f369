package download

import (
	"time"

	"github.com/handiism/msch-harvester/internal/model"
)

// Stats is a point-in-time view of a scheduler's counters.
type Stats struct {
	// Counters
	TotalRequests int // transfers started
	Succeeded     int
	Failed        int // failed transfers, rate-limited ones included
	RateLimited   int
	Abandoned     int // tasks given up after the retry policy was exhausted
	Skipped       int // tasks whose artifact already existed
	Duplicates    int // tasks rejected because their destination was already known
	Enqueued      int // tasks accepted by Enqueue

	// Gauges
	Queued   int
	InFlight int
	Waiting  int // failed tasks sleeping before they re-enter the queue

	// Durations
	Elapsed     time.Duration
	Downloading time.Duration // summed time spent in transfers
	Saving      time.Duration // summed time spent writing artifacts
	BytesSaved  int64
}

// Failure records a task that was abandoned and the last error it saw.
type Failure struct {
	Task model.Task
	Err  error
}

// Report is produced by Run once the scheduler has drained.
type Report struct {
	Stats
	Failures []Failure
}
