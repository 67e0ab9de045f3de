package pipeline

import (
	"context"
	"errors"
	"sync"
)

// ErrSkip can be returned by a GenerateFunc to drop the current value without stopping the stage
var ErrSkip = errors.New("pipeline: skip value")

type (
	// GenerateFunc is used in Generate to produce values for the output channel
	GenerateFunc[T any] func() (T, error)
	// BelongFunc checks if an item belongs to the group collected so far
	BelongFunc[T any] func(item T, group []T) (bool, error)
	// WorkerFunc consumes an item of the input channel
	// and publishes the result to the output channel
	WorkerFunc[In, Out any] func(ctx context.Context, item In, outc chan<- Out) error
	// EachFunc is called for each value of the input channel
	EachFunc[T any] func(val T) error
)

// Generate converts the output of a GenerateFunc to a channel.
// The only way to close the output channel is to return an error from the GenerateFunc;
// ErrSkip drops the value and keeps generating.
func Generate[T any](ctx context.Context, fn GenerateFunc[T]) (<-chan T, <-chan error) {
	outc := make(chan T)
	errc := make(chan error, 1)
	go func() {
		defer func() {
			close(outc)
			close(errc)
		}()
		for {
			select {
			case <-ctx.Done():
				errc <- errors.New("generate canceled")
				return
			default:
			}
			res, err := fn()
			switch {
			case errors.Is(err, ErrSkip):
				continue
			case err != nil:
				errc <- err
				return
			}
			select {
			case <-ctx.Done():
				errc <- errors.New("generate canceled")
				return
			case outc <- res:
			}
		}
	}()

	return outc, errc
}

// Group is a transformer that groups consecutive values by checking against a BelongFunc
func Group[T any](ctx context.Context, inc <-chan T, belong BelongFunc[T]) (<-chan []T, <-chan error) {
	outc := make(chan []T)
	errc := make(chan error, 1)
	emit := func(group []T) bool {
		if len(group) == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case outc <- group:
			return true
		}
	}

	go func() {
		var group []T
		defer func() {
			// drain the last group
			emit(group)
			close(outc)
			close(errc)
		}()
		for item := range inc {
			select {
			case <-ctx.Done():
				errc <- errors.New("grouping canceled")
				return
			default:
			}
			if len(group) == 0 {
				group = append(group, item)
				continue
			}
			ok, err := belong(item, group)
			if err != nil {
				errc <- err
				return
			}
			if ok {
				group = append(group, item)
				continue
			}
			if !emit(group) {
				return
			}
			group = []T{item}
		}
	}()
	return outc, errc
}

// Sink runs an EachFunc on each value.
// It is the final stage of the pipeline as it does not produce any channel
func Sink[T any](ctx context.Context, ch <-chan T, fn EachFunc[T]) error {
	for r := range ch {
		select {
		case <-ctx.Done():
			return errors.New("sink canceled")
		default:
			if err := fn(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// WorkerPool fans out the input channel to N workers which all publish on the output channel.
// A worker error is reported on the error channel and the worker moves on to the next item.
func WorkerPool[In, Out any](ctx context.Context, concurrency int, inc <-chan In, worker WorkerFunc[In, Out]) (<-chan Out, <-chan error) {
	var wg sync.WaitGroup
	outc := make(chan Out)
	errc := make(chan error, concurrency)

	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			for item := range inc {
				if err := worker(ctx, item, outc); err != nil {
					select {
					case errc <- err:
					default:
						// the error channel is full, the first errors are enough to fail the run
					}
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(outc)
		close(errc)
	}()

	return outc, errc
}

// MergeErrors merges all input error channels into one output channel
func MergeErrors(ctx context.Context, errs ...<-chan error) <-chan error {
	var wg sync.WaitGroup
	outc := make(chan error, len(errs))
	output := func(errc <-chan error) {
		defer wg.Done()
		for e := range errc {
			select {
			case outc <- e:
			case <-ctx.Done():
				return
			}
		}
	}

	wg.Add(len(errs))
	for _, errc := range errs {
		go output(errc)
	}

	go func() {
		wg.Wait()
		close(outc)
	}()

	return outc
}
