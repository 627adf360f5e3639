package database

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const maxConnectElapsed = 30 * time.Second

// connectWithRetry runs connect with exponential backoff until it succeeds,
// retries are exhausted or ctx is done.
func connectWithRetry(ctx context.Context, retries uint64, connect func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = maxConnectElapsed

	return backoff.Retry(connect, backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx))
}
