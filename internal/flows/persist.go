package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/gateAuth/refresh"
)

// DefaultMaxPersistRetries bounds reload-and-retry cycles on version conflicts.
const DefaultMaxPersistRetries = 32

// ErrPersistRetriesExhausted reports a collection that kept changing under
// every attempt.
var ErrPersistRetriesExhausted = errors.New("persist retries exhausted")

// persistWithRetry loads a collection, applies mutate and persists it. A
// version conflict or index collision discards the attempt and starts over
// from a fresh load. Any other error from load, mutate or Persist ends the
// loop and is returned as is.
func persistWithRetry(
	ctx context.Context,
	store refresh.Store,
	maxRetries int,
	load func(context.Context) (*refresh.Collection, error),
	mutate func(*refresh.Collection) error,
) (*refresh.Collection, error) {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxPersistRetries
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		col, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := mutate(col); err != nil {
			return nil, err
		}

		err = store.Persist(ctx, col)
		if err == nil {
			return col, nil
		}
		if errors.Is(err, refresh.ErrConflict) || errors.Is(err, refresh.ErrCollision) {
			continue
		}
		return nil, err
	}

	return nil, ErrPersistRetriesExhausted
}
