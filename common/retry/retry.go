// Package retry implements the exponential-backoff retry descriptor used by
// every chain RPC call site (§5, §9 of the spec).
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Descriptor is an immutable retry configuration threaded to every RPC call.
type Descriptor struct {
	// Base is the initial backoff duration.
	Base time.Duration
	// Factor multiplies the backoff after each failed attempt.
	Factor float64
	// MaxAttempts bounds the number of attempts; 0 means unbounded.
	MaxAttempts int
	// MaxInterval caps the backoff duration.
	MaxInterval time.Duration
	// UseJitter randomizes the backoff within [0, interval].
	UseJitter bool
}

// DefaultDescriptor is a reasonable default for contract view calls.
var DefaultDescriptor = Descriptor{
	Base:        200 * time.Millisecond,
	Factor:      2.0,
	MaxAttempts: 5,
	MaxInterval: 10 * time.Second,
	UseJitter:   true,
}

// Temporary is implemented by errors the caller may retry.
type Temporary interface {
	Temporary() bool
}

// IsTemporary reports whether err opted into retrying.
func IsTemporary(err error) bool {
	t, ok := err.(Temporary)
	return ok && t.Temporary()
}

// Do calls fn until it succeeds, fn returns a non-Temporary error, ctx is
// cancelled, or the descriptor's attempt budget is exhausted. It returns the
// last error encountered, or ctx.Err() if ctx is cancelled while waiting
// between attempts.
func Do(ctx context.Context, d Descriptor, fn func(ctx context.Context) error) error {
	interval := d.Base
	var err error
	for attempt := 1; d.MaxAttempts == 0 || attempt <= d.MaxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !IsTemporary(err) {
			return err
		}
		if d.MaxAttempts != 0 && attempt == d.MaxAttempts {
			break
		}

		wait := interval
		if d.UseJitter {
			wait = time.Duration(rand.Int63n(int64(interval) + 1))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		interval = time.Duration(float64(interval) * d.Factor)
		if d.MaxInterval > 0 && interval > d.MaxInterval {
			interval = d.MaxInterval
		}
	}
	return err
}
