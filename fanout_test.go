package hydra

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestFanOutSubmissionOrder(t *testing.T) {
	const n = 16
	units := make([]Unit[int], n)
	for i := 0; i < n; i++ {
		i := i
		units[i] = func(ctx context.Context) (int, error) {
			// Finish in roughly reverse submission order
			time.Sleep(time.Duration(n-i) * time.Millisecond)
			return i, nil
		}
	}

	results, err := FanOut(context.Background(), units, FanOutOptions{})
	if err != nil {
		t.Fatalf("FanOut failed: %v", err)
	}
	if len(results) != n {
		t.Fatalf("expected %d results, got %d", n, len(results))
	}
	for i, r := range results {
		if r != i {
			t.Errorf("result %d out of submission order: got %d", i, r)
		}
	}
}

func TestFanOutCancelOnFailure(t *testing.T) {
	errBoom := errors.New("unit 3 exploded")
	var completed atomic.Int32

	units := make([]Unit[int], 8)
	for i := 0; i < 8; i++ {
		if i == 3 {
			units[i] = func(ctx context.Context) (int, error) {
				time.Sleep(20 * time.Millisecond)
				return 0, errBoom
			}
			continue
		}
		units[i] = func(ctx context.Context) (int, error) {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(2 * time.Second):
				completed.Add(1)
				return i, nil
			}
		}
	}

	start := time.Now()
	_, err := FanOut(context.Background(), units, FanOutOptions{LabelPrefix: "unit"})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected the triggering failure unchanged, got %v", err)
	}
	if completed.Load() != 0 {
		t.Errorf("%d sibling units ran to completion despite cancellation", completed.Load())
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation took %v, siblings were not cut short", elapsed)
	}
}

func TestFanOutDeadline(t *testing.T) {
	units := make([]Unit[int], 4)
	for i := 0; i < 4; i++ {
		units[i] = func(ctx context.Context) (int, error) {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(time.Second):
				return i, nil
			}
		}
	}

	_, err := FanOut(context.Background(), units, FanOutOptions{Deadline: 30 * time.Millisecond})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline expiry, got %v", err)
	}
}

func TestFanOutNoDeadlineWaitsIndefinitely(t *testing.T) {
	units := []Unit[string]{
		func(ctx context.Context) (string, error) {
			time.Sleep(80 * time.Millisecond)
			return "slow", nil
		},
	}
	results, err := FanOut(context.Background(), units, FanOutOptions{})
	if err != nil {
		t.Fatalf("FanOut failed: %v", err)
	}
	if results[0] != "slow" {
		t.Errorf("unexpected result %q", results[0])
	}
}

func TestFanOutEmpty(t *testing.T) {
	results, err := FanOut[int](context.Background(), nil, FanOutOptions{})
	if err != nil {
		t.Fatalf("empty fan-out failed: %v", err)
	}
	if results != nil {
		t.Errorf("expected nil results, got %v", results)
	}
}

func TestFanOutIsolation(t *testing.T) {
	// A failing fan-out must not disturb an unrelated concurrent one.
	errBoom := errors.New("boom")
	failing := []Unit[int]{
		func(ctx context.Context) (int, error) { return 0, errBoom },
	}
	healthy := make([]Unit[int], 4)
	for i := 0; i < 4; i++ {
		healthy[i] = func(ctx context.Context) (int, error) {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(50 * time.Millisecond):
				return i, nil
			}
		}
	}

	done := make(chan error, 1)
	go func() {
		_, err := FanOut(context.Background(), healthy, FanOutOptions{})
		done <- err
	}()
	if _, err := FanOut(context.Background(), failing, FanOutOptions{}); !errors.Is(err, errBoom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("sibling fan-out was disturbed: %v", err)
	}
}

func TestFutureWaitCancellation(t *testing.T) {
	f := newFuture[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := f.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected wait cancellation, got %v", err)
	}

	// The future can still resolve after an abandoned wait.
	f.complete(42, nil)
	v, err := f.MustWait()
	if err != nil || v != 42 {
		t.Errorf("future lost its value: %v %v", v, err)
	}
}
