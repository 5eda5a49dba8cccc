package worker

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultMaxWorkers applies when Options.MaxWorkers is not positive.
const DefaultMaxWorkers = 8

// Options configures bounded fan-out.
type Options struct {
	MaxWorkers int
}

// ForEach runs fn once per item with at most MaxWorkers in flight and waits
// for all of them. A failing item never cancels its siblings; errors are
// returned by position, nil where the item succeeded.
func ForEach[T any](ctx context.Context, items []T, opts Options, fn func(ctx context.Context, index int, item T) error) []error {
	errs := make([]error, len(items))
	if len(items) == 0 {
		return errs
	}

	limit := opts.MaxWorkers
	if limit <= 0 {
		limit = DefaultMaxWorkers
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, item := range items {
		g.Go(func() error {
			errs[i] = runUnit(ctx, i, item, fn)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

func runUnit[T any](ctx context.Context, index int, item T, fn func(context.Context, int, T) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unit %d panicked: %v", index, r)
		}
	}()
	return fn(ctx, index, item)
}
