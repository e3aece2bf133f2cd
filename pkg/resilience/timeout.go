package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutError reports an operation cut off by its own deadline while the
// caller's context was still live. It unwraps to context.DeadlineExceeded.
type TimeoutError struct {
	Op    string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %v", e.Op, e.Limit)
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// IsTimeout reports whether err carries a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// Timed calls fn with a context bounded by limit. fn must honour its
// context. When the bound fires first the error is a *TimeoutError; when
// the caller's context ends first its error is returned unchanged.
func Timed[T any](ctx context.Context, limit time.Duration, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	if limit <= 0 {
		return fn(ctx)
	}
	bounded, cancel := context.WithTimeout(ctx, limit)
	defer cancel()
	v, err := fn(bounded)
	if err == nil {
		return v, nil
	}
	if ctx.Err() != nil {
		return v, fmt.Errorf("%s: %w", op, ctx.Err())
	}
	if errors.Is(bounded.Err(), context.DeadlineExceeded) {
		return v, &TimeoutError{Op: op, Limit: limit}
	}
	return v, err
}

// WithTimeout is Timed for calls without a result.
func WithTimeout(ctx context.Context, limit time.Duration, op string, fn func(ctx context.Context) error) error {
	_, err := Timed(ctx, limit, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
