package pace_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/KhangChau12/scholarship-advisor/internal/pace"
)

func TestAcquireSpacingBetweenConsecutiveCalls(t *testing.T) {
	interval := 30 * time.Millisecond
	pacer := pace.New(interval)
	ctx := context.Background()

	if err := pacer.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	before := time.Now()
	if err := pacer.Acquire(ctx); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if gap := time.Since(before); gap < interval {
		t.Fatalf("grants separated by %v, want at least %v", gap, interval)
	}
}

func TestAcquireUnderConcurrentCallers(t *testing.T) {
	interval := 10 * time.Millisecond
	pacer := pace.New(interval)
	ctx := context.Background()

	const callers = 5
	var mu sync.Mutex
	var grants []time.Time
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pacer.Acquire(ctx); err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			mu.Lock()
			grants = append(grants, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(grants) != callers {
		t.Fatalf("expected %d grants, got %d", callers, len(grants))
	}
	for first := 0; first < len(grants); first++ {
		for second := first + 1; second < len(grants); second++ {
			gap := grants[second].Sub(grants[first])
			if gap < 0 {
				gap = -gap
			}
			// Grant-time recording happens after Acquire returns, so allow a
			// small scheduling skew below the configured interval.
			if gap < interval-2*time.Millisecond {
				t.Fatalf("callers %d and %d granted %v apart, want at least %v", first, second, gap, interval)
			}
		}
	}
}

func TestAcquireHonorsContextCancellation(t *testing.T) {
	pacer := pace.New(time.Minute)
	ctx := context.Background()
	if err := pacer.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	cancelCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	err := pacer.Acquire(cancelCtx)
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
}
