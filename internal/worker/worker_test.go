package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestNewPool(t *testing.T) {
	for _, size := range []int{1, 2, 4, 16} {
		pool, err := NewPool(size)
		if err != nil {
			t.Fatalf("NewPool(%d) failed: %v", size, err)
		}
		if pool.Size() != size {
			t.Errorf("expected size %d, got %d", size, pool.Size())
		}
		if pool.LiveWorkers() != size {
			t.Errorf("expected %d live workers, got %d", size, pool.LiveWorkers())
		}
		if pool.State() != StateRunning {
			t.Errorf("expected Running, got %s", pool.State())
		}
		pool.Shutdown()
	}
}

func TestNewPoolInvalidSize(t *testing.T) {
	for _, size := range []int{0, -1, -5} {
		pool, err := NewPool(size)
		if !errors.Is(err, ErrInvalidSize) {
			t.Errorf("NewPool(%d): expected ErrInvalidSize, got %v", size, err)
		}
		if pool != nil {
			t.Errorf("NewPool(%d): expected nil pool", size)
		}
	}
}

func TestMustNewPoolPanics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected MustNewPool(0) to panic")
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrInvalidSize) {
			t.Errorf("expected ErrInvalidSize panic, got %v", r)
		}
	}()
	MustNewPool(0)
}

func TestPoolExecuteExactlyOnce(t *testing.T) {
	pool := MustNewPool(4)

	const n = 1000
	var counter atomic.Int32
	for range n {
		if err := pool.Execute(func() {
			counter.Add(1)
		}); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
	}

	pool.Shutdown()

	if counter.Load() != n {
		t.Errorf("expected %d jobs executed, got %d", n, counter.Load())
	}
	stats := pool.Stats()
	if stats.Submitted != n || stats.Completed != n {
		t.Errorf("expected %d submitted and completed, got %+v", n, stats)
	}
}

func TestPoolExecuteAfterShutdown(t *testing.T) {
	pool := MustNewPool(2)
	pool.Shutdown()

	var ran atomic.Bool
	done := make(chan error, 1)
	go func() {
		done <- pool.Execute(func() { ran.Store(true) })
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrPoolClosed) {
			t.Errorf("expected ErrPoolClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Execute after shutdown hung")
	}
	if ran.Load() {
		t.Error("job must not run after shutdown")
	}
}

func TestPoolExecuteRacingShutdown(t *testing.T) {
	const (
		rounds    = 200
		producers = 4
	)

	for round := range rounds {
		pool := MustNewPool(2)

		var accepted, ran atomic.Int64
		start := make(chan struct{})
		var wg sync.WaitGroup
		for range producers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for {
					err := pool.Execute(func() { ran.Add(1) })
					if errors.Is(err, ErrPoolClosed) {
						return
					}
					if err != nil {
						t.Errorf("round %d: unexpected Execute error: %v", round, err)
						return
					}
					accepted.Add(1)
				}
			}()
		}

		close(start)
		time.Sleep(100 * time.Microsecond)
		pool.Shutdown()

		// Every job accepted before Shutdown returned has already run
		wg.Wait()
		if got, want := ran.Load(), accepted.Load(); got != want {
			t.Fatalf("round %d: %d jobs accepted but %d ran", round, want, got)
		}
		if got := pool.Stats().Submitted; got != uint64(accepted.Load()) {
			t.Fatalf("round %d: Submitted=%d, accepted=%d", round, got, accepted.Load())
		}
	}
}

func TestPoolExecuteNilJob(t *testing.T) {
	pool := MustNewPool(1)
	defer pool.Shutdown()

	if err := pool.Execute(nil); !errors.Is(err, ErrNilJob) {
		t.Errorf("expected ErrNilJob, got %v", err)
	}
}

func TestPoolConcurrentExecute(t *testing.T) {
	pool := MustNewPool(4)

	const producers = 8
	const jobsPerProducer = 250

	var counter atomic.Int32
	var wg sync.WaitGroup
	for range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobsPerProducer {
				if err := pool.Execute(func() {
					counter.Add(1)
				}); err != nil {
					t.Errorf("Execute failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()
	pool.Shutdown()

	expected := int32(producers * jobsPerProducer)
	if counter.Load() != expected {
		t.Errorf("expected %d jobs completed, got %d", expected, counter.Load())
	}
}

func TestPoolShutdownJoinsWorkers(t *testing.T) {
	pool := MustNewPool(3)

	var finished atomic.Int32
	for range 6 {
		_ = pool.Execute(func() {
			time.Sleep(10 * time.Millisecond)
			finished.Add(1)
		})
	}

	pool.Shutdown()

	if finished.Load() != 6 {
		t.Errorf("expected queued jobs to finish before Shutdown returns, got %d", finished.Load())
	}
	if pool.LiveWorkers() != 0 {
		t.Errorf("expected 0 live workers, got %d", pool.LiveWorkers())
	}
	if pool.State() != StateTerminated {
		t.Errorf("expected Terminated, got %s", pool.State())
	}
	for _, info := range pool.Workers() {
		if info.Alive {
			t.Errorf("worker %d still alive after shutdown", info.ID)
		}
	}
	select {
	case <-pool.Done():
	default:
		t.Error("expected Done to be closed")
	}
}

func TestPoolShutdownIdempotent(t *testing.T) {
	pool := MustNewPool(2)

	release := make(chan struct{})
	_ = pool.Execute(func() { <-release })

	var wg sync.WaitGroup
	var returned atomic.Int32
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Shutdown()
			if pool.State() != StateTerminated {
				t.Errorf("Shutdown returned before Terminated: %s", pool.State())
			}
			returned.Add(1)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	if returned.Load() != 0 {
		t.Error("Shutdown returned while a job was still running")
	}

	close(release)
	wg.Wait()

	// Double shutdown should be no-op
	pool.Shutdown()
}

func TestPoolShutdownContext(t *testing.T) {
	pool := MustNewPool(1)

	release := make(chan struct{})
	_ = pool.Execute(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := pool.ShutdownContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
	if pool.State() != StateClosing {
		t.Errorf("expected Closing, got %s", pool.State())
	}
	if err := pool.Execute(func() {}); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed while closing, got %v", err)
	}

	close(release)
	if err := pool.ShutdownContext(context.Background()); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if pool.State() != StateTerminated {
		t.Errorf("expected Terminated, got %s", pool.State())
	}
}

func TestPoolOrderedLog(t *testing.T) {
	pool := MustNewPool(2)

	var mu sync.Mutex
	var log []int
	for i := range 5 {
		_ = pool.Execute(func() {
			mu.Lock()
			defer mu.Unlock()
			log = append(log, i)
		})
	}
	pool.Shutdown()

	sort.Ints(log)
	if diff := cmp.Diff([]int{0, 1, 2, 3, 4}, log); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
}

func TestPoolSingleWorkerFIFO(t *testing.T) {
	pool := MustNewPool(1)

	submitted := time.Now()
	var recorded time.Time
	_ = pool.Execute(func() {
		time.Sleep(50 * time.Millisecond)
	})
	_ = pool.Execute(func() {
		recorded = time.Now()
	})
	pool.Shutdown()

	if elapsed := recorded.Sub(submitted); elapsed < 50*time.Millisecond {
		t.Errorf("second job ran %v after submission, expected >= 50ms", elapsed)
	}
}

func TestPoolPanicRecover(t *testing.T) {
	pool := MustNewPool(2)

	var counter atomic.Int32
	for i := range 10 {
		_ = pool.Execute(func() {
			if i%2 == 0 {
				panic("boom")
			}
			counter.Add(1)
		})
	}
	pool.Shutdown()

	if counter.Load() != 5 {
		t.Errorf("expected 5 successful jobs, got %d", counter.Load())
	}
	stats := pool.Stats()
	want := Stats{Submitted: 10, Completed: 5, Panicked: 5, Lost: 0}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestPoolPanicRetire(t *testing.T) {
	pool, err := NewPoolWithConfig(PoolConfig{Size: 2, PanicPolicy: PanicRetire})
	if err != nil {
		t.Fatalf("NewPoolWithConfig failed: %v", err)
	}

	_ = pool.Execute(func() { panic("first") })
	waitFor(t, func() bool { return pool.LiveWorkers() == 1 })

	_ = pool.Execute(func() { panic("second") })
	waitFor(t, func() bool { return pool.LiveWorkers() == 0 })

	if err := pool.Execute(func() {}); !errors.Is(err, ErrNoWorkers) {
		t.Errorf("expected ErrNoWorkers, got %v", err)
	}
	if lost := pool.Stats().Lost; lost != 2 {
		t.Errorf("expected 2 lost workers, got %d", lost)
	}

	pool.Shutdown()
}

func TestPanicErrorUnwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := Job(func() { panic(sentinel) }).run(7)

	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PanicError, got %T", err)
	}
	if pe.WorkerID != 7 {
		t.Errorf("expected worker 7, got %d", pe.WorkerID)
	}
	if len(pe.Stack) == 0 {
		t.Error("expected stack trace")
	}
	if !errors.Is(err, sentinel) {
		t.Error("expected panic value to unwrap")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateRunning, "Running"},
		{StateClosing, "Closing"},
		{StateTerminated, "Terminated"},
		{State(42), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.expected)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for condition")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}
