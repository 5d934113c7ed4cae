package command

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrQueueFull is returned by Enqueue when the mailbox is at capacity.
// Producers surface it to their caller; the controller never sees it.
var ErrQueueFull = errors.New("command queue full")

// DefaultQueueSize bounds the mailbox when no capacity is configured.
const DefaultQueueSize = 512

// QueueStats is a point-in-time view of mailbox activity. Processed and
// Errors are advanced by the controller via MarkProcessed/MarkError.
type QueueStats struct {
	Enqueued  uint64 `json:"enqueued"`
	Rejected  uint64 `json:"rejected"`
	Pending   int    `json:"pending"`
	Processed uint64 `json:"processed"`
	Errors    uint64 `json:"errors"`
}

// Queue is the controller's mailbox: FIFO per producer, bounded, safe for
// any number of concurrent producers and the single consumer.
type Queue struct {
	ch chan Command

	mu        sync.Mutex
	enqueued  uint64
	rejected  uint64
	processed uint64
	errs      uint64
}

// NewQueue creates a mailbox with the given capacity. Zero or negative
// capacity falls back to DefaultQueueSize.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan Command, size)}
}

// Enqueue adds a command without ever blocking the caller. Returns
// ErrQueueFull when the mailbox is at capacity.
func (q *Queue) Enqueue(cmd Command) error {
	select {
	case q.ch <- cmd:
		q.mu.Lock()
		q.enqueued++
		q.mu.Unlock()
		return nil
	default:
		q.mu.Lock()
		q.rejected++
		q.mu.Unlock()
		return errors.Wrapf(ErrQueueFull, "dropped %s command", cmd.Kind)
	}
}

// Dequeue blocks up to timeout for the next command. The second return is
// false when the wait timed out.
func (q *Queue) Dequeue(timeout time.Duration) (Command, bool) {
	select {
	case cmd := <-q.ch:
		return cmd, true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case cmd := <-q.ch:
		return cmd, true
	case <-timer.C:
		return Command{}, false
	}
}

// Len reports the number of pending commands.
func (q *Queue) Len() int {
	return len(q.ch)
}

// MarkProcessed records one successfully applied command.
func (q *Queue) MarkProcessed() {
	q.mu.Lock()
	q.processed++
	q.mu.Unlock()
}

// MarkError records one command whose application failed.
func (q *Queue) MarkError() {
	q.mu.Lock()
	q.errs++
	q.mu.Unlock()
}

// Stats returns a snapshot of the mailbox counters.
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Enqueued:  q.enqueued,
		Rejected:  q.rejected,
		Pending:   len(q.ch),
		Processed: q.processed,
		Errors:    q.errs,
	}
}
