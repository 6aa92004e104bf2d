package playground

import (
	"sync"
	"testing"
)

func TestWorkerPool_Submit(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	defer pool.Close()

	var counter int
	var mu sync.Mutex
	for i := 0; i < 5; i++ {
		pool.Submit(func() {
			mu.Lock()
			counter++
			mu.Unlock()
		})
	}
	pool.Wait()

	if counter != 5 {
		t.Errorf("Expected counter to be 5, got %d", counter)
	}
}

func TestWorkerPool_StartOnce(t *testing.T) {
	pool := NewWorkerPool(0)
	pool.Start()
	pool.Start()
	defer pool.Close()

	executed := false
	pool.Submit(func() { executed = true })
	pool.Wait()

	if !executed {
		t.Error("Expected job to be executed")
	}
}

func TestWorkerPool_SubmitAfterClose(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()
	pool.Close()
	pool.Close()

	if pool.Submit(func() {}) {
		t.Error("Submit after Close should report false")
	}
	if stats := pool.GetStats(); stats.TotalJobs != 0 {
		t.Errorf("rejected job counted: %+v", stats)
	}
}

func TestWorkerPool_StatsConsistency(t *testing.T) {
	pool := NewWorkerPool(4)
	pool.Start()
	defer pool.Close()

	const numJobs = 20
	accepted := 0
	for i := 0; i < numJobs; i++ {
		if pool.Submit(func() {
			for j := 0; j < 1000; j++ {
				_ = j * j
			}
		}) {
			accepted++
		}
	}

	var readers sync.WaitGroup
	for i := 0; i < 5; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			_ = pool.GetStats()
		}()
	}
	readers.Wait()
	pool.Wait()

	stats := pool.GetStats()
	if stats.TotalJobs != int64(accepted) || stats.CompletedJobs != int64(accepted) {
		t.Errorf("Expected %d total and completed jobs, got %+v", accepted, stats)
	}
	if stats.ActiveWorkers != 0 {
		t.Errorf("Expected 0 active workers, got %d", stats.ActiveWorkers)
	}
}
