package utils

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestNameSetNoDuplicates(t *testing.T) {
	s := NewNameSet()

	added := s.Add("Swift Hostage")
	if !added {
		t.Error("first Add should return true")
	}

	added = s.Add("Swift Hostage")
	if added {
		t.Error("second Add of same name should return false")
	}

	if s.Size() != 1 {
		t.Errorf("size: got %d, want 1", s.Size())
	}
}

func TestNameSetConcurrency(t *testing.T) {
	s := NewNameSet()
	var added int64

	pool := NewWorkerPool(10, 0)
	for i := 0; i < 100; i++ {
		name := "Ballymac Best"
		pool.Submit(func() {
			if s.Add(name) {
				atomic.AddInt64(&added, 1)
			}
		})
	}
	pool.Wait()

	if added != 1 {
		t.Errorf("expected exactly 1 successful add, got %d", added)
	}
}

func TestNameSetSnapshot(t *testing.T) {
	s := NewNameSet()
	s.Add("Droopys Clue")
	s.Add("Savana Beau")

	names := s.Names()
	if len(names) != 2 {
		t.Fatalf("snapshot size: got %d, want 2", len(names))
	}
}

func TestWorkerPoolZeroWorkersStillRuns(t *testing.T) {
	pool := NewWorkerPool(0, 0)

	var ran int64
	for i := 0; i < 3; i++ {
		pool.Submit(func() {
			atomic.AddInt64(&ran, 1)
		})
	}
	pool.Wait()

	if ran != 3 {
		t.Errorf("jobs run: got %d, want 3", ran)
	}
}

func TestWorkerPoolRateLimit(t *testing.T) {
	rateLimitMs := 100
	pool := NewWorkerPool(1, rateLimitMs)

	var timestamps []time.Time
	mu := make(chan struct{}, 1)
	mu <- struct{}{}

	for i := 0; i < 3; i++ {
		pool.Submit(func() {
			<-mu
			timestamps = append(timestamps, time.Now())
			mu <- struct{}{}
		})
	}
	pool.Wait()

	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i].Sub(timestamps[i-1])
		min := time.Duration(rateLimitMs) * time.Millisecond
		if gap < min {
			t.Errorf("gap between job %d and %d: %v < minimum %v", i-1, i, gap, min)
		}
	}
}
