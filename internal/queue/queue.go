package queue

import (
	"sync"
)

// Batcher collects items and hands them to a flush function in batches of a
// fixed size. Items of a failed flush are put back at the front so a later
// Flush retries them.
type Batcher[T any] struct {
	mu    sync.Mutex
	items []T
	size  int
	flush func([]T) error
}

// NewBatcher creates a batcher. A size below 1 flushes on every Push.
func NewBatcher[T any](size int, flush func([]T) error) *Batcher[T] {
	if size < 1 {
		size = 1
	}
	return &Batcher[T]{
		items: make([]T, 0, size),
		size:  size,
		flush: flush,
	}
}

// Push appends items and flushes every full batch.
func (b *Batcher[T]) Push(items ...T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, items...)

	for len(b.items) >= b.size {
		batch := b.items[:b.size:b.size]
		if err := b.flush(batch); err != nil {
			return err
		}
		b.items = b.items[b.size:]
	}
	return nil
}

// Flush hands every pending item to the flush function.
func (b *Batcher[T]) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return nil
	}
	if err := b.flush(b.items); err != nil {
		return err
	}
	b.items = make([]T, 0, b.size)
	return nil
}

// Len returns the number of pending items.
func (b *Batcher[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Empty returns true if nothing is pending.
func (b *Batcher[T]) Empty() bool {
	return b.Len() == 0
}
