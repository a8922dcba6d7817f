package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/proto"
)

// PendingBatch is a stroke batch waiting to be fanned out.
type PendingBatch struct {
	Source     uint8
	Session    uuid.UUID
	Points     []proto.Point
	ReceivedAt time.Time
}

// Queue is a FIFO of pending batches with a blocking wait for the next element.
// The queue lock is never held together with the registry lock.
type Queue struct {
	mu       sync.Mutex
	items    []PendingBatch
	capacity int
	notify   chan struct{}
}

// NewQueue creates a queue holding at most capacity batches (0 means unbounded).
func NewQueue(capacity int) *Queue {
	return &Queue{
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

// Push appends a batch. It fails with ErrQueueFull when the queue is at capacity.
func (q *Queue) Push(b PendingBatch) error {
	q.mu.Lock()
	if q.capacity > 0 && len(q.items) >= q.capacity {
		q.mu.Unlock()
		return ErrQueueFull
	}
	q.items = append(q.items, b)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Next blocks until the queue is non-empty and returns the oldest batch without removing it.
func (q *Queue) Next(ctx context.Context) (PendingBatch, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			b := q.items[0]
			q.mu.Unlock()
			return b, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return PendingBatch{}, ctx.Err()
		}
	}
}

// Remove drops the oldest batch once it has been dispatched.
func (q *Queue) Remove() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return
	}
	q.items[0] = PendingBatch{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
}

// Len returns the number of pending batches.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
