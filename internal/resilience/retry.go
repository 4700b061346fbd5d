package resilience

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy configures Retry.
type RetryPolicy struct {
	// MaxRetries is the number of extra attempts after the first one.
	MaxRetries int
	// BaseDelay is the wait before the first retry; it doubles per retry.
	BaseDelay time.Duration
	Jitter    float64
	// AttemptTimeout bounds each attempt when positive.
	AttemptTimeout time.Duration
	// MaxDelay bounds the wait an error may ask for through RetryDelay().
	// A longer hint ends the retries with that error. Zero means no bound.
	MaxDelay time.Duration
	// OnRetry is called before sleeping between attempts.
	OnRetry func(retry int, delay time.Duration, err error)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Retry runs fn until it succeeds, returns a permanent error, the context is
// done, or MaxRetries retries have failed. The delay before retry n (1-based)
// is Backoff(BaseDelay, n, Jitter), i.e. BaseDelay * 2^(n-1), stretched to the
// error's RetryDelay() when it has a longer one. A RetryDelay() above MaxDelay
// is treated as final. The last error is returned.
func Retry(ctx context.Context, p RetryPolicy, fn func(context.Context) error) error {
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = p.attempt(ctx, fn)
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) || attempt == maxRetries {
			break
		}
		delay := Backoff(p.BaseDelay, attempt+1, p.Jitter)
		var hint interface{ RetryDelay() time.Duration }
		if errors.As(lastErr, &hint) && hint.RetryDelay() > delay {
			if p.MaxDelay > 0 && hint.RetryDelay() > p.MaxDelay {
				break
			}
			delay = hint.RetryDelay()
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, lastErr)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(lastErr, ctx.Err())
		case <-timer.C:
		}
	}
	return lastErr
}

func (p RetryPolicy) attempt(ctx context.Context, fn func(context.Context) error) error {
	if p.AttemptTimeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	return fn(callCtx)
}
