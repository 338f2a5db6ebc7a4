package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrRetriesExhausted is returned once every attempt of a remote call has failed.
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrRecordNotFound is returned by get by id lookups for unknown records. It is never retried.
	ErrRecordNotFound = errors.New("record not found")
)

const (
	DefaultMaxAttempts  = 5
	DefaultInitialDelay = 5 * time.Second
)

type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
	}
}

// Retryer runs remote calls with exponential backoff, refreshing
// expired credentials between attempts.
type Retryer struct {
	config RetryConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRetryer(config RetryConfig) *Retryer {
	defaults := DefaultRetryConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = defaults.InitialDelay
	}
	return &Retryer{config: config, sleep: sleepContext}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Delay returns the wait after the given number of failed attempts.
func (r *Retryer) Delay(attempt int) time.Duration {
	return r.config.InitialDelay * time.Duration(1<<attempt)
}

// Do calls fn until it succeeds or MaxAttempts is reached. After each failed
// attempt that will be retried, an expired credential is refreshed and the
// retryer waits InitialDelay * 2^attempt. Refresh failures are logged and the
// next attempt proceeds with the old token.
func (r *Retryer) Do(ctx context.Context, creds *CredentialContext, operation string, fn func(ctx context.Context) error) error {
	logCtx := log.WithField("operation", operation)
	if creds != nil {
		logCtx = logCtx.WithField("hub_id", creds.HubID())
	}
	attempt := 0
	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrRecordNotFound) {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return fmt.Errorf("%s aborted: %w: %w", operation, cerr, err)
		}
		attempt++
		if attempt >= r.config.MaxAttempts {
			return fmt.Errorf("%s failed after %d attempts: %w: %w", operation, attempt, ErrRetriesExhausted, err)
		}
		if creds != nil {
			if rerr := creds.RefreshIfExpired(ctx); rerr != nil {
				logCtx.WithError(rerr).Warn("Failed to refresh access token before retry.")
			}
		}
		delay := r.Delay(attempt)
		logCtx.WithError(err).WithFields(log.Fields{"attempt": attempt, "delay": delay}).Warn("Remote call failed, retrying.")
		if serr := r.sleep(ctx, delay); serr != nil {
			return fmt.Errorf("%s aborted while backing off %w", operation, serr)
		}
	}
}

// retryValue is Do for calls that return a value.
func retryValue[T any](ctx context.Context, r *Retryer, creds *CredentialContext, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, creds, operation, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
