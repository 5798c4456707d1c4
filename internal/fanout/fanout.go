// Package fanout runs a handler over many items under a concurrency limit
// and folds every settled result into one aggregate.
package fanout

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultLimit bounds concurrency when Options.Limit is not positive.
const DefaultLimit = 4

// Handler produces a result fragment for one item.
type Handler[T, R any] func(ctx context.Context, item T) ([]R, error)

// Options configures Run.
type Options[T, R any] struct {
	// Name labels log lines.
	Name  string
	Limit int
	// Skip filters items before dispatch. Skipped items never run.
	Skip func(T) bool
	// OnError converts a failed item into a fragment. Nil contributes
	// nothing for failed items.
	OnError func(item T, err error) []R
	// OnSettled fires once per dispatched item after it settles, success
	// or failure, with the running count. OnError and OnSettled are never
	// called concurrently.
	OnSettled func(done, total int)
}

// Result is the aggregate of a fan-out.
type Result[R any] struct {
	// Items is the concatenation of every fragment in settlement order.
	Items   []R
	Skipped int
	Failed  int
	Settled int
}

// Run dispatches handler for every non-skipped item with at most
// opts.Limit running at once and returns after all have settled. A failed
// or panicking handler never cancels its siblings. Once ctx is done,
// items that have not started settle as failures with the context error.
func Run[T, R any](ctx context.Context, items []T, handler Handler[T, R], opts Options[T, R]) Result[R] {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	var res Result[R]
	work := make([]T, 0, len(items))
	for _, item := range items {
		if opts.Skip != nil && opts.Skip(item) {
			res.Skipped++
			continue
		}
		work = append(work, item)
	}
	total := len(work)

	log := zap.L().With(zap.String("fanout", opts.Name))
	log.Debug("fanout: dispatch",
		zap.Int("items", total),
		zap.Int("skipped", res.Skipped),
		zap.Int("limit", limit),
	)

	var mu sync.Mutex
	settle := func(item T, frag []R, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			frag = nil
			if opts.OnError != nil {
				frag = opts.OnError(item, err)
			}
			res.Failed++
		}
		res.Items = append(res.Items, frag...)
		res.Settled++
		if opts.OnSettled != nil {
			opts.OnSettled(res.Settled, total)
		}
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for _, item := range work {
		g.Go(func() error {
			frag, err := invoke(ctx, handler, item)
			if err != nil {
				log.Debug("fanout: item failed", zap.Error(err))
			}
			settle(item, frag, err)
			return nil
		})
	}
	_ = g.Wait()

	log.Debug("fanout: settled",
		zap.Int("settled", res.Settled),
		zap.Int("failed", res.Failed),
		zap.Int("results", len(res.Items)),
	)
	return res
}

func invoke[T, R any](ctx context.Context, handler Handler[T, R], item T) (frag []R, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			frag, err = nil, eris.Errorf("fanout: handler panic: %v", r)
		}
	}()
	return handler(ctx, item)
}
