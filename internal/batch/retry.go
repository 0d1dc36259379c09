// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

package batch

import (
	"context"
	"fmt"
	"time"
)

// retryPolicy is the backoff applied to repository and registry calls.
// Delays double from Base up to Attempts tries.
type retryPolicy struct {
	attempts int
	base     time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{attempts: 5, base: time.Second}
}

// do runs op with exponential backoff. The context is honoured during
// backoff waits; op errors are wrapped with the operation name on
// exhaustion.
func (p retryPolicy) do(ctx context.Context, name string, op func() error) error {
	delay := p.base
	var lastErr error

	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if attempt == p.attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return fmt.Errorf("%s: %d attempts exhausted: %w", name, p.attempts, lastErr)
}
