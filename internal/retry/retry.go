// Package retry contains code to retry operations that fail with
// temporary errors, such as accept failing with EMFILE.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Config tunes the exponential backoff. The zero value uses the
// defaults of the backoff package and retries forever.
type Config struct {
	// InitialInterval is the first delay.
	InitialInterval time.Duration

	// MaxInterval caps the delay between attempts.
	MaxInterval time.Duration

	// MaxTries limits the number of attempts. Zero means no limit.
	MaxTries uint

	// Notify is called before sleeping after a temporary error.
	Notify func(err error, delay time.Duration)
}

// Temporary returns whether err is a temporary error.
func Temporary(err error) bool {
	var temporary interface{ Temporary() bool }
	return errors.As(err, &temporary) && temporary.Temporary()
}

// Do calls op until it succeeds, it fails with an error that is not
// temporary, the attempts are over, or ctx is done.
func Do[T any](ctx context.Context, config Config, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if config.InitialInterval > 0 {
		b.InitialInterval = config.InitialInterval
	}
	if config.MaxInterval > 0 {
		b.MaxInterval = config.MaxInterval
	}
	options := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
	}
	if config.MaxTries > 0 {
		options = append(options, backoff.WithMaxTries(config.MaxTries))
	}
	if config.Notify != nil {
		options = append(options, backoff.WithNotify(config.Notify))
	}
	return backoff.Retry[T](ctx, func() (T, error) {
		value, err := op()
		if err != nil && !Temporary(err) {
			return value, backoff.Permanent(err)
		}
		return value, err
	}, options...)
}
