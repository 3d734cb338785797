package collect

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestJoinZeroFiresSynchronously(t *testing.T) {
	fired := false
	NewJoin(0, func() {
		fired = true
	})

	if !fired {
		t.Error("continuation must fire before NewJoin returns for n=0")
	}
}

func TestJoinNegativeFiresSynchronously(t *testing.T) {
	fired := false
	NewJoin(-1, func() {
		fired = true
	})

	if !fired {
		t.Error("continuation must fire before NewJoin returns for n<0")
	}
}

func TestJoinFiresExactlyOnce(t *testing.T) {
	var fired int32
	j := NewJoin(8, func() {
		atomic.AddInt32(&fired, 1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.Complete()
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Errorf("continuation fired %d times, want 1", got)
	}
}

func TestJoinExtraCompletesIgnored(t *testing.T) {
	var fired int32
	j := NewJoin(2, func() {
		atomic.AddInt32(&fired, 1)
	})

	j.Complete()
	j.Complete()
	j.Complete()
	j.Complete()

	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Errorf("continuation fired %d times, want 1", got)
	}
}

func TestJoinPending(t *testing.T) {
	j := NewJoin(3, func() {})

	if got := j.Pending(); got != 3 {
		t.Errorf("Pending() = %d, want 3", got)
	}

	j.Complete()
	if got := j.Pending(); got != 2 {
		t.Errorf("Pending() = %d, want 2", got)
	}

	j.Complete()
	j.Complete()
	j.Complete()
	if got := j.Pending(); got != 0 {
		t.Errorf("Pending() = %d, want 0", got)
	}
}
