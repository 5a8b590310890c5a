package sync

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy controls how individual gateway calls inside one sync pass
// are retried before the entry is declared failed for this run. A failed
// entry is never dropped: it stays queued and the next Sync call resends
// it, so the policy only bounds how hard a single pass tries.
type RetryPolicy interface {
	// Do invokes fn, retrying per the policy until it succeeds, the
	// policy gives up, or ctx is done.
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// NoRetry attempts each call exactly once. The queue itself provides the
// between-runs retry loop, so this is the default.
type NoRetry struct{}

// Do implements RetryPolicy.
func (NoRetry) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Backoff retries with exponential backoff inside a single pass. Useful on
// flaky links where a second attempt moments later usually succeeds.
type Backoff struct {
	// Initial is the first retry delay (default 250ms).
	Initial time.Duration
	// Attempts is the maximum number of attempts including the first
	// (default 3).
	Attempts uint64
}

// Do implements RetryPolicy.
func (b Backoff) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	initial := b.Initial
	if initial <= 0 {
		initial = 250 * time.Millisecond
	}
	attempts := b.Attempts
	if attempts == 0 {
		attempts = 3
	}

	backoff := retry.WithMaxRetries(attempts-1, retry.NewExponential(initial))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
