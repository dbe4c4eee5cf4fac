package database

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 4,
		BaseDelay:  2 * time.Second,
		MaxDelay:   15 * time.Second,
	}
}

// delay is the wait before retry number attempt+1: BaseDelay * 1.5^attempt,
// capped at MaxDelay.
func (c RetryConfig) delay(attempt int) time.Duration {
	d := time.Duration(float64(c.BaseDelay) * math.Pow(1.5, float64(attempt)))
	if d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// retry runs operation until it succeeds, MaxRetries retries are used up or
// ctx is done.
func retry(ctx context.Context, config RetryConfig, logger *logrus.Logger, what string, operation func() error) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation()
		if err == nil {
			return nil
		}

		if attempt >= config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", what, config.MaxRetries, err)
		}

		delay := config.delay(attempt)
		logger.WithFields(logrus.Fields{
			"operation": what,
			"attempt":   attempt + 1,
			"delay":     delay,
			"error":     err.Error(),
		}).Warn("Retrying operation")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
