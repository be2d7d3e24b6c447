package parallel

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"testing"
)

func TestWorkerPool_Create(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
	if !pool.IsRunning() {
		t.Error("Pool should be running after creation")
	}
}

func TestWorkerPool_CreateDefaultWorkers(t *testing.T) {
	for _, n := range []int{0, -5} {
		pool := NewWorkerPool(n)
		if pool.Workers() != runtime.GOMAXPROCS(0) {
			t.Errorf("NewWorkerPool(%d).Workers() = %d, want GOMAXPROCS", n, pool.Workers())
		}
		pool.Close()
	}
}

func TestWorkerPool_RunVisitsEveryIndex(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	for _, n := range []int{0, 1, 3, 16, 1000} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			hits := make([]atomic.Int32, n)
			if err := pool.Run(n, func(i int) error {
				hits[i].Add(1)
				return nil
			}); err != nil {
				t.Fatalf("Run: %v", err)
			}
			for i := range hits {
				if got := hits[i].Load(); got != 1 {
					t.Fatalf("index %d visited %d times", i, got)
				}
			}
		})
	}
}

func TestWorkerPool_RunReturnsLowestError(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	errAt := func(i int) error { return fmt.Errorf("task %d", i) }
	err := pool.Run(200, func(i int) error {
		if i == 150 || i == 37 || i == 99 {
			return errAt(i)
		}
		return nil
	})
	if err == nil || err.Error() != "task 37" {
		t.Errorf("Run = %v, want task 37", err)
	}
}

func TestWorkerPool_RunAfterClose(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()
	pool.Close()

	if pool.IsRunning() {
		t.Error("IsRunning after Close")
	}
	var count atomic.Int32
	sentinel := errors.New("last")
	err := pool.Run(10, func(i int) error {
		count.Add(1)
		if i == 9 {
			return sentinel
		}
		return nil
	})
	if count.Load() != 10 || !errors.Is(err, sentinel) {
		t.Errorf("closed pool ran %d tasks, err %v", count.Load(), err)
	}
}

func TestWorkerPool_ConcurrentRun(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var total atomic.Int64
	done := make(chan error, 4)
	for range 4 {
		go func() {
			done <- pool.Run(250, func(int) error {
				total.Add(1)
				return nil
			})
		}()
	}
	for range 4 {
		if err := <-done; err != nil {
			t.Fatal(err)
		}
	}
	if total.Load() != 1000 {
		t.Errorf("ran %d tasks, want 1000", total.Load())
	}
}

func BenchmarkWorkerPool_Run(b *testing.B) {
	pool := NewWorkerPool(0)
	defer pool.Close()
	data := make([]int, 4096)
	b.ReportAllocs()
	for b.Loop() {
		_ = pool.Run(len(data), func(i int) error {
			data[i]++
			return nil
		})
	}
}
