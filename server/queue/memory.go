package queue

import (
	"context"
	"errors"
	"sync"
)

// MemoryTransport is an in-process Transport used in demo mode and tests.
// Released items go back to the head of the queue.
type MemoryTransport struct {
	mu      sync.Mutex
	pending []*Item
	acked   []*Item
	closed  bool
	notify  chan struct{}
}

var _ Transport = (*MemoryTransport)(nil)

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{notify: make(chan struct{}, 1)}
}

// Publish enqueues a message for delivery.
func (t *MemoryTransport) Publish(msg InboundMessage) {
	t.mu.Lock()
	t.pending = append(t.pending, &Item{Message: msg})
	t.mu.Unlock()
	select {
	case t.notify <- struct{}{}:
	default:
	}
}

func (t *MemoryTransport) FetchBatch(ctx context.Context, max int) ([]*Item, error) {
	if max < 1 {
		max = 1
	}
	for {
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return nil, errors.New("queue: transport closed")
		}
		if len(t.pending) > 0 {
			n := max
			if n > len(t.pending) {
				n = len(t.pending)
			}
			items := make([]*Item, n)
			copy(items, t.pending[:n])
			t.pending = t.pending[n:]
			t.mu.Unlock()
			return items, nil
		}
		t.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.notify:
		}
	}
}

func (t *MemoryTransport) Ack(ctx context.Context, item *Item) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.acked = append(t.acked, item)
	return nil
}

func (t *MemoryTransport) Release(ctx context.Context, item *Item) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("queue: transport closed")
	}
	t.pending = append([]*Item{item}, t.pending...)
	select {
	case t.notify <- struct{}{}:
	default:
	}
	return nil
}

// Acked returns the items acknowledged so far.
func (t *MemoryTransport) Acked() []*Item {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Item, len(t.acked))
	copy(out, t.acked)
	return out
}

// PendingCount reports how many items await delivery.
func (t *MemoryTransport) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}
