package worker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()

	var got []int
	for i := range 5 {
		if err := q.Put(func() { got = append(got, i) }); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if q.Len() != 5 {
		t.Errorf("expected len 5, got %d", q.Len())
	}

	for range 5 {
		job, ok := q.Get()
		if !ok {
			t.Fatal("expected a job")
		}
		job()
	}

	if diff := cmp.Diff([]int{0, 1, 2, 3, 4}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if q.Len() != 0 {
		t.Errorf("expected len 0, got %d", q.Len())
	}
}

func TestQueuePutAfterClose(t *testing.T) {
	q := NewQueue()

	if !q.Close() {
		t.Error("expected first Close to report true")
	}
	if q.Close() {
		t.Error("expected second Close to report false")
	}
	if !q.Closed() {
		t.Error("expected queue to be closed")
	}
	if err := q.Put(func() {}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed, got %v", err)
	}
}

func TestQueueDrainsAfterClose(t *testing.T) {
	q := NewQueue()
	_ = q.Put(func() {})
	_ = q.Put(func() {})
	q.Close()

	for i := range 2 {
		if _, ok := q.Get(); !ok {
			t.Fatalf("expected pending job %d after close", i)
		}
	}
	if job, ok := q.Get(); ok || job != nil {
		t.Error("expected closed signal once drained")
	}
}

func TestQueueCloseWakesWaiters(t *testing.T) {
	q := NewQueue()

	const waiters = 4
	var wg sync.WaitGroup
	for range waiters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := q.Get(); ok {
				t.Error("expected closed signal")
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	q.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for blocked Get to return")
	}
}

func TestQueueGetBlocksUntilPut(t *testing.T) {
	q := NewQueue()

	got := make(chan bool, 1)
	go func() {
		_, ok := q.Get()
		got <- ok
	}()

	select {
	case <-got:
		t.Fatal("Get returned before Put")
	case <-time.After(20 * time.Millisecond):
	}

	_ = q.Put(func() {})

	select {
	case ok := <-got:
		if !ok {
			t.Error("expected a job")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for Get")
	}
}
