package workflow

import (
	"testing"
	"time"
)

func TestNextRetryDelayDoublesFromBase(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: 2 * time.Minute, MaxDelay: time.Hour}

	cases := []struct {
		retryCount int
		want       time.Duration
	}{
		{0, 2 * time.Minute},
		{1, 4 * time.Minute},
		{2, 8 * time.Minute},
		{3, 16 * time.Minute},
		{4, 32 * time.Minute},
	}
	for _, c := range cases {
		if got := cfg.NextRetryDelay(c.retryCount); got != c.want {
			t.Errorf("retryCount %d: delay = %s, want %s", c.retryCount, got, c.want)
		}
	}
}

func TestNextRetryDelayCaps(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 10, BaseDelay: 2 * time.Minute, MaxDelay: time.Hour}
	if got := cfg.NextRetryDelay(5); got != time.Hour {
		t.Fatalf("delay = %s, want cap %s", got, time.Hour)
	}
	if got := cfg.NextRetryDelay(30); got != time.Hour {
		t.Fatalf("large count delay = %s, want cap %s", got, time.Hour)
	}
}

func TestHasRetryBudget(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5}
	if !cfg.HasRetryBudget(4) {
		t.Error("4 failures with max 5 should still have budget")
	}
	if cfg.HasRetryBudget(5) {
		t.Error("5 failures with max 5 should be exhausted")
	}
}

func TestRetryConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("PUBLISH_RETRY_MAX_ATTEMPTS", "3")
	t.Setenv("PUBLISH_RETRY_BASE_SECONDS", "30")
	t.Setenv("PUBLISH_RETRY_MAX_SECONDS", "600")

	cfg := RetryConfigFromEnv()
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.BaseDelay != 30*time.Second {
		t.Errorf("BaseDelay = %s, want 30s", cfg.BaseDelay)
	}
	if cfg.MaxDelay != 10*time.Minute {
		t.Errorf("MaxDelay = %s, want 10m", cfg.MaxDelay)
	}
}

func TestRetryConfigFromEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("PUBLISH_RETRY_MAX_ATTEMPTS", "zero")
	t.Setenv("PUBLISH_RETRY_BASE_SECONDS", "-5")

	cfg := RetryConfigFromEnv()
	def := DefaultRetryConfig()
	if cfg.MaxAttempts != def.MaxAttempts || cfg.BaseDelay != def.BaseDelay {
		t.Fatalf("invalid env values should keep defaults, got %+v", cfg)
	}
}
