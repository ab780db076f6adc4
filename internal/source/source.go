// Package source holds the metric source adapters. Each adapter samples one
// metric family; Probe bounds every call so a stuck source cannot stall a tick.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/lonitor/lonitor/internal/errors"
	"github.com/lonitor/lonitor/internal/model"
)

// DefaultTimeout bounds a single adapter call.
const DefaultTimeout = 500 * time.Millisecond

// Adapter samples one metric family.
type Adapter[T any] interface {
	Sample(ctx context.Context) (T, error)
}

// Func adapts a plain function to Adapter.
type Func[T any] func(ctx context.Context) (T, error)

func (f Func[T]) Sample(ctx context.Context) (T, error) { return f(ctx) }

// Set is one adapter per metric family. A nil adapter reports Unavailable.
type Set struct {
	CPU     Adapter[model.CPU]
	Temp    Adapter[float64]
	Memory  Adapter[model.Memory]
	Disk    Adapter[model.Disk]
	DiskIO  Adapter[model.IOCounters]
	Net     Adapter[model.NetCounters]
	Battery Adapter[model.Battery]
	Load    Adapter[model.Load]
	Uptime  Adapter[time.Duration]
}

// Probe samples a with a deadline of timeout. It returns once the deadline
// passes even if the adapter ignores ctx; the abandoned call's result is dropped.
func Probe[T any](ctx context.Context, timeout time.Duration, a Adapter[T]) (model.Reading[T], error) {
	errFactory := errors.New()

	if a == nil {
		return model.Missing[T](model.Unavailable), errFactory.New(errors.ErrUnavailable)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- result{err: errFactory.WithData(errors.ErrInternal, fmt.Sprintf("adapter panic: %v", p))}
			}
		}()
		v, err := a.Sample(ctx)
		ch <- result{v: v, err: err}
	}()

	select {
	case r := <-ch:
		if r.err == nil {
			return model.Have(r.v), nil
		}
		if ctx.Err() == context.DeadlineExceeded || errors.Is(r.err, context.DeadlineExceeded) {
			return model.Missing[T](model.TimedOut), errFactory.Wrap(errors.ErrTimeout, r.err)
		}
		if errors.HasCode(r.err, errors.ErrUnavailable) {
			return model.Missing[T](model.Unavailable), r.err
		}
		return model.Missing[T](model.Unavailable), errFactory.Wrap(errors.ErrUnavailable, r.err)
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return model.Missing[T](model.TimedOut), errFactory.Wrap(errors.ErrTimeout, ctx.Err())
		}
		return model.Missing[T](model.Unavailable), errFactory.Wrap(errors.ErrUnavailable, ctx.Err())
	}
}

func unavailable(err error) error {
	return errors.New().Wrap(errors.ErrUnavailable, err)
}

func absent(what string) error {
	return errors.New().WithMessage(errors.ErrUnavailable, "no "+what+" on this host")
}
