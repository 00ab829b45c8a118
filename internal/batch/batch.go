// Package batch runs many file.io calls with bounded concurrency under a
// shared token bucket.
package batch

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Runner executes indexed calls. A nil Limiter means no rate limit; a
// Concurrency below one runs calls sequentially.
type Runner struct {
	Limiter     *rate.Limiter
	Concurrency int
}

// NewRunner builds a Runner allowing perSecond calls with the given burst.
// perSecond <= 0 disables limiting.
func NewRunner(perSecond float64, burst, concurrency int) *Runner {
	r := &Runner{Concurrency: concurrency}
	if perSecond > 0 {
		if burst <= 0 {
			burst = 1
		}
		r.Limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	return r
}

// Run calls fn for every index in [0, n). Results keep input order. A failed
// call does not stop the others; all errors are joined. Cancelling ctx stops
// calls that have not started yet.
func Run[T any](ctx context.Context, r *Runner, n int, fn func(ctx context.Context, i int) (T, error)) ([]T, error) {
	results := make([]T, n)
	if n <= 0 {
		return results, nil
	}

	limit := 1
	var limiter *rate.Limiter
	if r != nil {
		limiter = r.Limiter
		if r.Concurrency > 1 {
			limit = r.Concurrency
		}
	}

	errs := make([]error, n)
	var g errgroup.Group
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			errs[i] = fmt.Errorf("item %d: %w", i, err)
			continue
		}
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					errs[i] = fmt.Errorf("item %d: %w", i, err)
					return nil
				}
			}
			res, err := fn(ctx, i)
			results[i] = res
			if err != nil {
				errs[i] = fmt.Errorf("item %d: %w", i, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, errors.Join(errs...)
}
