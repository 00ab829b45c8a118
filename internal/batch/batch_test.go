package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestRunKeepsInputOrder(t *testing.T) {
	r := NewRunner(0, 0, 4)
	out, err := Run(context.Background(), r, 10, func(_ context.Context, i int) (string, error) {
		time.Sleep(time.Duration(10-i) * time.Millisecond)
		return fmt.Sprintf("r%d", i), nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, v := range out {
		if v != fmt.Sprintf("r%d", i) {
			t.Fatalf("result %d = %q", i, v)
		}
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	r := &Runner{Concurrency: 3}
	_, err := Run(context.Background(), r, 12, func(_ context.Context, _ int) (struct{}, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := peak.Load(); got > 3 || got < 1 {
		t.Fatalf("peak concurrency %d, want between 1 and 3", got)
	}
}

func TestRunJoinsErrorsAndContinues(t *testing.T) {
	errBoom := errors.New("boom")
	var calls atomic.Int32
	out, err := Run(context.Background(), NewRunner(0, 0, 2), 5, func(_ context.Context, i int) (int, error) {
		calls.Add(1)
		if i%2 == 1 {
			return 0, errBoom
		}
		return i * 10, nil
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected joined boom error, got %v", err)
	}
	if calls.Load() != 5 {
		t.Fatalf("expected every call to run, got %d", calls.Load())
	}
	if out[0] != 0 || out[2] != 20 || out[4] != 40 {
		t.Fatalf("unexpected results %v", out)
	}
}

func TestRunHonoursRateLimit(t *testing.T) {
	r := &Runner{Limiter: rate.NewLimiter(rate.Limit(50), 1), Concurrency: 5}
	start := time.Now()
	if _, err := Run(context.Background(), r, 6, func(context.Context, int) (int, error) { return 0, nil }); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// One token up front, then five more at 20ms intervals.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("expected rate limiting to space calls, took %v", elapsed)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	_, err := Run(ctx, NewRunner(1, 1, 2), 3, func(context.Context, int) (int, error) {
		calls.Add(1)
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no calls after cancel, got %d", calls.Load())
	}
}

func TestRunNilRunnerIsSequential(t *testing.T) {
	out, err := Run(context.Background(), nil, 3, func(_ context.Context, i int) (int, error) { return i + 1, nil })
	if err != nil || len(out) != 3 || out[2] != 3 {
		t.Fatalf("unexpected result %v err=%v", out, err)
	}
}
