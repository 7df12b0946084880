package queue

import (
	"errors"
	"sync"
	"testing"
)

// testItem is a simple struct for testing the generic batcher
type testItem struct {
	ID   int
	Name string
}

type sink struct {
	batches [][]testItem
	fail    bool
}

func (s *sink) flush(items []testItem) error {
	if s.fail {
		return errors.New("flush failed")
	}
	s.batches = append(s.batches, append([]testItem(nil), items...))
	return nil
}

func TestBatcher_New(t *testing.T) {
	b := NewBatcher(10, (&sink{}).flush)
	if b == nil {
		t.Fatal("expected non-nil batcher")
	}
	if !b.Empty() {
		t.Error("expected empty batcher")
	}
	if b.Len() != 0 {
		t.Errorf("expected length 0, got %d", b.Len())
	}
}

func TestBatcher_PushBelowSize(t *testing.T) {
	s := &sink{}
	b := NewBatcher(3, s.flush)

	if err := b.Push(testItem{ID: 1}, testItem{ID: 2}); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if len(s.batches) != 0 {
		t.Errorf("expected no flush, got %d batches", len(s.batches))
	}
	if b.Len() != 2 {
		t.Errorf("expected length 2, got %d", b.Len())
	}
}

func TestBatcher_PushFlushesFullBatches(t *testing.T) {
	s := &sink{}
	b := NewBatcher(2, s.flush)

	items := []testItem{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}}
	if err := b.Push(items...); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	if len(s.batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(s.batches))
	}
	if s.batches[0][0].ID != 1 || s.batches[1][1].ID != 4 {
		t.Errorf("unexpected batch contents: %+v", s.batches)
	}
	if b.Len() != 1 {
		t.Errorf("expected 1 pending item, got %d", b.Len())
	}
}

func TestBatcher_Flush(t *testing.T) {
	s := &sink{}
	b := NewBatcher(10, s.flush)

	_ = b.Push(testItem{ID: 1, Name: "first"}, testItem{ID: 2, Name: "second"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if len(s.batches) != 1 || len(s.batches[0]) != 2 {
		t.Fatalf("expected one batch of 2, got %+v", s.batches)
	}
	if !b.Empty() {
		t.Error("expected empty batcher after flush")
	}

	// flushing nothing is a no-op
	if err := b.Flush(); err != nil {
		t.Errorf("empty Flush failed: %v", err)
	}
	if len(s.batches) != 1 {
		t.Errorf("expected no extra batch, got %d", len(s.batches))
	}
}

func TestBatcher_FailedFlushKeepsItems(t *testing.T) {
	s := &sink{fail: true}
	b := NewBatcher(2, s.flush)

	if err := b.Push(testItem{ID: 1}, testItem{ID: 2}, testItem{ID: 3}); err == nil {
		t.Fatal("expected error")
	}
	if b.Len() != 3 {
		t.Errorf("expected all 3 items kept, got %d", b.Len())
	}

	s.fail = false
	if err := b.Flush(); err != nil {
		t.Fatalf("retry Flush failed: %v", err)
	}
	if len(s.batches) != 1 || len(s.batches[0]) != 3 {
		t.Errorf("expected retried batch of 3, got %+v", s.batches)
	}
}

func TestBatcher_SizeBelowOne(t *testing.T) {
	s := &sink{}
	b := NewBatcher(0, s.flush)

	_ = b.Push(testItem{ID: 1}, testItem{ID: 2})
	if len(s.batches) != 2 {
		t.Errorf("expected 2 single-item batches, got %d", len(s.batches))
	}
}

func TestBatcher_ConcurrentPush(t *testing.T) {
	var mu sync.Mutex
	total := 0
	b := NewBatcher(7, func(items []testItem) error {
		mu.Lock()
		total += len(items)
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = b.Push(testItem{ID: n*100 + j})
			}
		}(i)
	}
	wg.Wait()
	_ = b.Flush()

	if total != 1000 {
		t.Errorf("expected 1000 flushed items, got %d", total)
	}
}
