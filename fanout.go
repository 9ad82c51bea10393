package hydra

import (
	"context"
	"fmt"
	"runtime/pprof"
	"time"

	"golang.org/x/sync/errgroup"
)

// Unit is one independent piece of work in a fan-out. It must honor ctx
// cancellation promptly; a cancelled unit's result is discarded.
type Unit[T any] func(ctx context.Context) (T, error)

// FanOutOptions tunes a single FanOut call
type FanOutOptions struct {
	// Deadline bounds the whole fan-out; zero means wait indefinitely
	Deadline time.Duration

	// LabelPrefix, when set, tags each unit's goroutine with a pprof label
	// "prefix-index" to aid diagnosis. Best effort; labels are restored
	// when the unit returns.
	LabelPrefix string
}

// FanOut runs every unit concurrently and collects their results in
// submission order. The first unit to fail, or deadline expiry, cancels
// every other in-flight unit and becomes the returned error, unwrapped.
// Cancellation is scoped to this call: sibling fan-outs are unaffected.
func FanOut[T any](ctx context.Context, units []Unit[T], opts FanOutOptions) ([]T, error) {
	if len(units) == 0 {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Deadline)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	results := make([]T, len(units))

	for i, unit := range units {
		i, unit := i, unit
		g.Go(func() error {
			// A unit that lost the race to a sibling failure never starts.
			if err := gctx.Err(); err != nil {
				return err
			}
			run := func(c context.Context) error {
				v, err := unit(c)
				if err != nil {
					return err
				}
				results[i] = v
				return nil
			}
			if opts.LabelPrefix == "" {
				return run(gctx)
			}
			var err error
			labels := pprof.Labels("fanout", fmt.Sprintf("%s-%d", opts.LabelPrefix, i))
			pprof.Do(gctx, labels, func(c context.Context) {
				err = run(c)
			})
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
