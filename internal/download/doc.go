// Package download provides the scheduler that fetches schematic
// attachments listed in dumps and writes them to disk.
//
// # Scheduler
//
// The Scheduler pulls tasks from a FIFO queue and keeps at most K transfers
// in flight, gated by a weighted semaphore of size K:
//
//  1. Take a slot, then dequeue the head of the queue
//  2. GET the task's URL
//  3. On success, write the body atomically to <root>/<category>/<id>-<fileName>
//  4. On failure, put the task back at the tail of the queue
//
// # Basic Usage
//
//	s := download.New(client, store, opts, printer.Func(), logger)
//	go func() {
//	    for _, task := range tasks {
//	        s.Enqueue(task)
//	    }
//	    s.Close()
//	}()
//
//	report, err := s.Run(ctx)
//
// # Rate Limiting
//
// A task answered with HTTP 429 keeps its slot while it cools down, so the
// effective concurrency drops by one for every task currently cooling down.
// Other tasks are not paused.
//
// # Retry Logic
//
// Other failures release the slot at once and re-enter the queue after an
// exponential cooldown. A task is abandoned, and listed in the report, once
// RetryPolicy.MaxAttempts transfers have failed. MaxAttempts 0 retries
// forever.
package download
