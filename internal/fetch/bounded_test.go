package fetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spiffcs/reviewdeck/internal/provider"
)

func TestBoundedPeakConcurrency(t *testing.T) {
	const (
		n = 40
		k = 6
	)

	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)

	err := Bounded(context.Background(), n, k, func(ctx context.Context, i int) error {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		time.Sleep(2 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Bounded() error = %v", err)
	}
	if peak > k {
		t.Errorf("peak in-flight = %d, want <= %d", peak, k)
	}
}

func TestBoundedRunsAll(t *testing.T) {
	const n = 17
	var issued int32

	err := Bounded(context.Background(), n, 4, func(ctx context.Context, i int) error {
		atomic.AddInt32(&issued, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("Bounded() error = %v", err)
	}
	if issued != n {
		t.Errorf("issued = %d, want %d", issued, n)
	}
}

func TestBoundedFatalStopsScheduling(t *testing.T) {
	const (
		n = 50
		k = 6
	)

	var issued int32
	fatal := provider.ErrUnauthorized

	err := Bounded(context.Background(), n, k, func(ctx context.Context, i int) error {
		atomic.AddInt32(&issued, 1)
		if i == 0 {
			return fatal
		}
		// Keep the rest of the first window busy until the fatal error
		// lands so cancellation has to do the work.
		time.Sleep(10 * time.Millisecond)
		return nil
	})

	if !errors.Is(err, fatal) {
		t.Fatalf("Bounded() error = %v, want %v", err, fatal)
	}
	if got := atomic.LoadInt32(&issued); got > k {
		t.Errorf("sub-fetches issued after fatal = %d, want <= %d", got, k)
	}
}

func TestBoundedParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var issued int32
	err := Bounded(ctx, 10, 3, func(ctx context.Context, i int) error {
		atomic.AddInt32(&issued, 1)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Bounded() error = %v, want context.Canceled", err)
	}
}
