package workflow

import (
	"os"
	"strconv"
	"time"
)

// RetryConfig bounds the publish retry schedule. Defaults are deliberately
// conservative: five attempts over roughly an hour of exponential growth.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   2 * time.Minute,
		MaxDelay:    time.Hour,
	}
}

// RetryConfigFromEnv reads PUBLISH_RETRY_MAX_ATTEMPTS,
// PUBLISH_RETRY_BASE_SECONDS, PUBLISH_RETRY_MAX_SECONDS. Unset or invalid
// values keep their defaults.
func RetryConfigFromEnv() RetryConfig {
	cfg := DefaultRetryConfig()
	if v, err := strconv.Atoi(os.Getenv("PUBLISH_RETRY_MAX_ATTEMPTS")); err == nil && v > 0 {
		cfg.MaxAttempts = v
	}
	if v, err := strconv.Atoi(os.Getenv("PUBLISH_RETRY_BASE_SECONDS")); err == nil && v > 0 {
		cfg.BaseDelay = time.Duration(v) * time.Second
	}
	if v, err := strconv.Atoi(os.Getenv("PUBLISH_RETRY_MAX_SECONDS")); err == nil && v > 0 {
		cfg.MaxDelay = time.Duration(v) * time.Second
	}
	return cfg
}

// NextRetryDelay is base * 2^retryCount, capped. retryCount is the number of
// failed attempts already recorded, so the first retry waits the base delay.
func (c RetryConfig) NextRetryDelay(retryCount int) time.Duration {
	delay := c.BaseDelay
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if delay > c.MaxDelay {
		return c.MaxDelay
	}
	return delay
}

// HasRetryBudget reports whether another attempt is allowed after retryCount
// recorded failures.
func (c RetryConfig) HasRetryBudget(retryCount int) bool {
	return retryCount < c.MaxAttempts
}
