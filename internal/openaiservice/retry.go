package openaiservice

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const maxRetries = 3

// initialBackoff doubles after every failed attempt.
var initialBackoff = 1 * time.Second

// WithRetry runs fn up to three times with exponential backoff. Missing
// configuration and malformed output are returned immediately, as are client
// errors other than 429.
func WithRetry[T any](ctx context.Context, op string, fn func(context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)

	for i := 0; i < maxRetries; i++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !retryable(err) {
			return zero, err
		}
		log.Warn().Err(err).Str("op", op).Msgf("Attempt %d failed", i+1)

		if i == maxRetries-1 {
			break
		}
		wait := initialBackoff * time.Duration(math.Pow(2, float64(i)))
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", op, maxRetries, lastErr)
}

func retryable(err error) bool {
	if errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrMalformedOutput) ||
		errors.Is(err, context.Canceled) {
		return false
	}
	status := StatusOf(err)
	if status == 0 {
		return true
	}
	return status == http.StatusTooManyRequests || status >= 500
}
