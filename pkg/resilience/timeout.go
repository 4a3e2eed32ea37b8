package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/termshard/pkg/errors"
)

// WithTimeout bounds fn by limit. On expiry it returns an error matching both
// ErrTimeout and context.DeadlineExceeded without waiting for fn, which is
// left to observe its cancelled context. A non-positive limit runs fn as is.
func WithTimeout(ctx context.Context, limit time.Duration, op string, fn func(ctx context.Context) error) error {
	if limit <= 0 {
		return fn(ctx)
	}
	bounded, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(bounded) }()

	select {
	case err := <-done:
		return err
	case <-bounded.Done():
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s abandoned: %w", op, err)
		}
		return fmt.Errorf("%s exceeded %v: %w: %w", op, limit, apperrors.ErrTimeout, context.DeadlineExceeded)
	}
}
