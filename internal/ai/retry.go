package ai

import (
	"context"
	"errors"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Timeout bounds a single attempt. Zero leaves the caller's deadline alone.
	Timeout time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Timeout:     30 * time.Second,
	}
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

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

func (c RetryConfig) delay(attempt int) time.Duration {
	d := c.BaseDelay << uint(attempt)
	if d <= 0 || (c.MaxDelay > 0 && d > c.MaxDelay) {
		return c.MaxDelay
	}
	return d
}

// Do runs fn until it succeeds, returns a permanent error, the attempts run
// out or ctx is done. Each attempt gets its own timeout.
func (c RetryConfig) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = c.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if IsPermanent(err) || ctx.Err() != nil || attempt == attempts-1 {
			break
		}
		wait := c.delay(attempt)
		logutil.GetLogger(ctx).Warn("ai call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
	return err
}

func (c RetryConfig) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if c.Timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()
	return fn(callCtx)
}
