package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestAcquireRelease(t *testing.T) {
	l := New(100, 10, 5)

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if got := l.InFlight(); got != 1 {
		t.Errorf("InFlight() = %d, want 1", got)
	}

	l.Release()
	if got := l.InFlight(); got != 0 {
		t.Errorf("InFlight() after Release = %d, want 0", got)
	}
}

func TestReleaseWithoutAcquire(t *testing.T) {
	l := New(100, 10, 2)

	// Must not block or drive the slot count negative.
	l.Release()
	if got := l.InFlight(); got != 0 {
		t.Errorf("InFlight() = %d, want 0", got)
	}
}

func TestNewClampsInvalidConfig(t *testing.T) {
	l := New(-1, 0, 0)

	if got := l.Burst(); got != 1 {
		t.Errorf("Burst() = %d, want 1", got)
	}
	if got := l.MaxConcurrency(); got != 1 {
		t.Errorf("MaxConcurrency() = %d, want 1", got)
	}
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	l.Release()
}

func TestBurstThenBlock(t *testing.T) {
	// 1/s refill, burst of 3: three immediate admissions, the fourth must
	// wait for a refill and trips the context deadline instead.
	l := New(1, 3, 10)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire() #%d error = %v", i+1, err)
		}
		l.Release()
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("burst admissions took %v, want nearly immediate", elapsed)
	}

	shortCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	if err := l.Acquire(shortCtx); err == nil {
		l.Release()
		t.Fatal("Acquire() beyond burst succeeded, want context deadline error")
	}
	if got := l.InFlight(); got != 0 {
		t.Errorf("InFlight() after abandoned acquire = %d, want 0", got)
	}
}

func TestSustainedRatePacing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pacing test in short mode")
	}

	// Rate 2/s with burst 5: ten sequential admissions need five refills
	// beyond the initial burst, so the batch cannot finish in under 2.5s.
	l := New(2, 5, 10)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 10; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire() #%d error = %v", i+1, err)
		}
		l.Release()
	}
	elapsed := time.Since(start)

	if elapsed < 2500*time.Millisecond {
		t.Errorf("10 admissions at 2/s burst 5 took %v, want >= 2.5s", elapsed)
	}
	if elapsed > 4*time.Second {
		t.Errorf("10 admissions took %v, want well under 4s", elapsed)
	}
}

func TestTokensCappedAtBurst(t *testing.T) {
	l := New(50, 2, 5)

	// Generous idle time; the bucket must still hold at most burst tokens.
	time.Sleep(150 * time.Millisecond)
	if got := l.Tokens(); got > 2.0 {
		t.Errorf("Tokens() = %v, want <= burst capacity 2", got)
	}
}

func TestConcurrencyGate(t *testing.T) {
	const maxConcurrency = 3
	l := New(1000, 100, maxConcurrency)

	var active, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			defer l.Release()

			cur := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&peak); got > maxConcurrency {
		t.Errorf("peak concurrency = %d, want <= %d", got, maxConcurrency)
	}
	if got := l.InFlight(); got != 0 {
		t.Errorf("InFlight() after drain = %d, want 0", got)
	}
}

func TestAcquireCancelledWaitingForSlot(t *testing.T) {
	l := New(1000, 100, 1)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := l.Acquire(shortCtx)
	if err == nil {
		t.Fatal("Acquire() with full gate succeeded, want context error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire() error = %v, want context.DeadlineExceeded", err)
	}

	// The abandoned acquire must not have consumed the slot.
	l.Release()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	l.Release()
}

func TestAcquireCancelledWaitingForToken(t *testing.T) {
	// Burst 1 at a slow refill: the second acquire gets the slot but then
	// waits for a token; abandoning it must return the slot.
	l := New(0.5, 1, 2)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := l.Acquire(shortCtx); err == nil {
		t.Fatal("Acquire() without tokens succeeded, want context error")
	}
	if got := l.InFlight(); got != 1 {
		t.Errorf("InFlight() = %d, want 1 (abandoned acquire returned its slot)", got)
	}
	l.Release()
}

func TestSetRate(t *testing.T) {
	l := New(1, 1, 5)
	l.SetRate(500, 10)

	if got := l.Burst(); got != 10 {
		t.Errorf("Burst() = %d, want 10", got)
	}

	// The raised rate must admit a small batch without multi-second waits.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 5; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire() #%d after SetRate error = %v", i+1, err)
		}
		l.Release()
	}
}
