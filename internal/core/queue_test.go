package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(0)
	for i := range 3 {
		if err := q.Push(PendingBatch{Source: uint8(i)}); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	ctx := context.Background()
	for want := range 3 {
		b, err := q.Next(ctx)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if b.Source != uint8(want) {
			t.Fatalf("expected source %d, got %d", want, b.Source)
		}
		// Next does not consume.
		if q.Len() != 3-want {
			t.Fatalf("expected len %d before remove, got %d", 3-want, q.Len())
		}
		q.Remove()
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got %d", q.Len())
	}
}

func TestQueueNextWakesOnPush(t *testing.T) {
	q := NewQueue(0)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got := make(chan PendingBatch, 1)
	go func() {
		b, err := q.Next(ctx)
		if err == nil {
			got <- b
		}
	}()

	time.Sleep(20 * time.Millisecond)
	if err := q.Push(PendingBatch{Source: 7}); err != nil {
		t.Fatalf("push: %v", err)
	}

	select {
	case b := <-got:
		if b.Source != 7 {
			t.Fatalf("unexpected batch %+v", b)
		}
	case <-ctx.Done():
		t.Fatalf("Next did not wake up after Push")
	}
}

func TestQueueNextHonoursContext(t *testing.T) {
	q := NewQueue(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestQueueCapacity(t *testing.T) {
	q := NewQueue(2)
	_ = q.Push(PendingBatch{Source: 1})
	_ = q.Push(PendingBatch{Source: 2})

	if err := q.Push(PendingBatch{Source: 3}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	q.Remove()
	if err := q.Push(PendingBatch{Source: 3}); err != nil {
		t.Fatalf("push after remove: %v", err)
	}
}

func TestQueueRemoveOnEmptyIsNoop(t *testing.T) {
	q := NewQueue(0)
	q.Remove()
	if q.Len() != 0 {
		t.Fatalf("expected empty queue")
	}
}
