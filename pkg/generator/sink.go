package generator

import (
	"context"

	"golang.org/x/time/rate"
)

// Sink receives every generated subdomain. Implementations must be safe for
// concurrent use since each worker emits directly into it.
type Sink interface {
	Emit(ctx context.Context, subdomain string) error
}

// SinkFunc adapts a plain function to a Sink.
type SinkFunc func(ctx context.Context, subdomain string) error

// Emit calls f(ctx, subdomain).
func (f SinkFunc) Emit(ctx context.Context, subdomain string) error {
	return f(ctx, subdomain)
}

// Throttle limits next to perSecond emissions per second. A non-positive
// rate returns next unchanged.
func Throttle(perSecond float64, next Sink) Sink {
	if perSecond <= 0 {
		return next
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
	return SinkFunc(func(ctx context.Context, subdomain string) error {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		return next.Emit(ctx, subdomain)
	})
}
