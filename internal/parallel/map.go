package parallel

import (
	"context"
	"iter"

	"golang.org/x/sync/errgroup"
)

type result[D any] struct {
	d D
	e error
}

// Map applies mapFunc to every input element with at most limit calls in
// flight. Results are yielded in completion order, not input order.
//
//	for d, err := range parallel.NewMap(4, check).Iter(ctx, slices.Values(apps)) {}
//
// Breaking out of the loop or canceling ctx stops scheduling new work and
// cancels the context passed to running calls. Iter returns only after every
// started call has finished. A canceled ctx is reported as a final error.
type Map[E, D any] struct {
	limit   int
	mapFunc func(context.Context, E) (D, error)
}

func NewMap[E, D any](limit int, mapFunc func(context.Context, E) (D, error)) *Map[E, D] {
	if limit < 1 {
		limit = 1
	}
	return &Map[E, D]{
		limit:   limit,
		mapFunc: mapFunc,
	}
}

func (m *Map[E, D]) Iter(parentCtx context.Context, seq iter.Seq[E]) iter.Seq2[D, error] {
	return func(yield func(D, error) bool) {
		ctx, cancel := context.WithCancel(parentCtx)
		defer cancel()

		mapped := make(chan result[D], m.limit)
		var g errgroup.Group
		g.SetLimit(m.limit)

		go func() {
			defer close(mapped)
			for entry := range seq {
				if ctx.Err() != nil {
					break
				}
				// blocks while limit calls are running
				g.Go(func() error {
					d, err := m.mapFunc(ctx, entry)
					select {
					case mapped <- result[D]{d: d, e: err}:
					case <-ctx.Done():
					}
					return nil
				})
			}
			_ = g.Wait() // mapFunc errors travel through mapped
		}()

		stopped := false
		for r := range mapped {
			if !yield(r.d, r.e) {
				stopped = true
				break
			}
		}
		cancel()
		for range mapped {
		}

		if err := parentCtx.Err(); err != nil && !stopped {
			var zero D
			yield(zero, err)
		}
	}
}
