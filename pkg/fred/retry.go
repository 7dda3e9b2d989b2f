package fred

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// retryPolicy controls transport-level retries of a single FRED request.
type retryPolicy struct {
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	jitterFraction float64
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		maxAttempts:    3,
		initialBackoff: 500 * time.Millisecond,
		maxBackoff:     10 * time.Second,
		jitterFraction: 0.25,
	}
}

// do runs fn until it succeeds, fails with a non-transient error, the
// attempts run out, or ctx is done. The last error is returned.
func (p retryPolicy) do(ctx context.Context, op string, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	attempts := p.maxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		body, err := fn(ctx)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isTransient(err) || attempt == attempts-1 {
			break
		}

		zap.L().Warn("fred request failed, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		timer := time.NewTimer(p.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, lastErr
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func (p retryPolicy) backoff(attempt int) time.Duration {
	d := float64(p.initialBackoff) * math.Pow(2, float64(attempt))
	if p.maxBackoff > 0 && d > float64(p.maxBackoff) {
		d = float64(p.maxBackoff)
	}
	if p.jitterFraction > 0 {
		d += (rand.Float64()*2 - 1) * d * p.jitterFraction
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
