package workflow

import (
	"context"
	"testing"
	"time"

	"bitbucket.org/pulsemark/social_backend/models"
	"bitbucket.org/pulsemark/social_backend/publisher"
)

// These tests are DB-free. decideFailure carries the orchestrator's failure
// semantics as a pure function; the idempotency short-circuit runs before any
// store access, so it is exercised against a zero-value engine.

var testRetry = RetryConfig{MaxAttempts: 5, BaseDelay: 2 * time.Minute, MaxDelay: time.Hour}

func TestDecideFailureRateLimitedSchedulesRetry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := decideFailure(publisher.ErrorCodeRateLimited, models.FailureReasonRateLimited, 0, false, testRetry, now)

	if d.Status != models.PostStatusFailed {
		t.Fatalf("status = %s, want failed", d.Status)
	}
	if !d.ScheduleRetry {
		t.Fatal("rate_limited must schedule a retry")
	}
	if d.NewRetryCount != 1 {
		t.Fatalf("retry count = %d, want 1", d.NewRetryCount)
	}
	if d.NextRetryAt == nil || !d.NextRetryAt.Equal(now.Add(2*time.Minute)) {
		t.Fatalf("next retry = %v, want %v", d.NextRetryAt, now.Add(2*time.Minute))
	}
	if d.DeactivateConnection {
		t.Fatal("rate_limited must not touch the connection's active flag")
	}
}

func TestDecideFailureContentPolicyIsTerminal(t *testing.T) {
	d := decideFailure(publisher.ErrorCodeContentPolicyViolation, models.FailureReasonContentPolicyViolation, 0, false, testRetry, time.Now())

	if d.Status != models.PostStatusFailed {
		t.Fatalf("status = %s, want failed", d.Status)
	}
	if d.ScheduleRetry || d.NextRetryAt != nil {
		t.Fatal("content_policy_violation must never retry")
	}
	if d.NewRetryCount != 0 {
		t.Fatalf("retry count = %d, want 0 (no retry recorded)", d.NewRetryCount)
	}
}

func TestDecideFailureTokenExpiredDeactivates(t *testing.T) {
	d := decideFailure(publisher.ErrorCodeTokenExpired, models.FailureReasonTokenExpired, 0, false, testRetry, time.Now())

	if !d.DeactivateConnection {
		t.Fatal("token_expired must deactivate the connection")
	}
	if d.Status != models.PostStatusAccountDisconnected {
		t.Fatalf("status = %s, want account_disconnected", d.Status)
	}
	if d.ScheduleRetry {
		t.Fatal("token_expired must not retry")
	}
}

func TestDecideFailureDisconnectedAccount(t *testing.T) {
	d := decideFailure(publisher.ErrorCodeAccountDisconnected, models.FailureReasonAccountDisconnected, 2, false, testRetry, time.Now())

	if d.Status != models.PostStatusAccountDisconnected {
		t.Fatalf("status = %s, want account_disconnected", d.Status)
	}
	if d.DeactivateConnection {
		t.Fatal("an already-inactive connection is not deactivated again")
	}
	if d.ScheduleRetry {
		t.Fatal("account_disconnected must not retry")
	}
}

func TestDecideFailureExhaustedBudgetStopsRetrying(t *testing.T) {
	now := time.Now()
	d := decideFailure(publisher.ErrorCodeRateLimited, models.FailureReasonRateLimited, 4, false, testRetry, now)

	if d.NewRetryCount != 5 {
		t.Fatalf("retry count = %d, want 5", d.NewRetryCount)
	}
	if d.ScheduleRetry || d.NextRetryAt != nil {
		t.Fatal("fifth failure with max 5 attempts must go terminal")
	}
}

func TestDecideFailureBackoffGrowsWithRetryCount(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := decideFailure(publisher.ErrorCodeUnknown, models.FailureReasonUnknown, 0, false, testRetry, now)
	third := decideFailure(publisher.ErrorCodeUnknown, models.FailureReasonUnknown, 2, false, testRetry, now)

	if first.NextRetryAt == nil || third.NextRetryAt == nil {
		t.Fatal("both failures should schedule retries")
	}
	if !third.NextRetryAt.After(*first.NextRetryAt) {
		t.Fatalf("backoff must grow: first %v, third %v", first.NextRetryAt, third.NextRetryAt)
	}
}

func TestDecideFailureNoRetryOverride(t *testing.T) {
	// Unroutable platforms classify unknown but must not burn retry budget.
	d := decideFailure(publisher.ErrorCodeUnknown, models.FailureReasonUnknown, 0, true, testRetry, time.Now())
	if d.ScheduleRetry {
		t.Fatal("noRetry override must suppress the retry")
	}
	if d.NewRetryCount != 0 {
		t.Fatalf("retry count = %d, want 0", d.NewRetryCount)
	}
}

type panicPublisher struct{}

func (panicPublisher) Publish(ctx context.Context, req publisher.Request) (*publisher.Result, error) {
	panic("publisher must not be called")
}

func TestPublishPostIdempotentShortCircuit(t *testing.T) {
	// A post with a platform id already set returns success without touching
	// the store, the credentials, or the adapter. The engine has no DB here;
	// any store access would panic.
	registry := publisher.NewRegistry()
	registry.Register("facebook", panicPublisher{})
	e := &PublishEngine{
		Publishers: registry,
		Credentials: func(*models.SocialConnection) (string, error) {
			t.Fatal("credentials must not be read")
			return "", nil
		},
		Retry: testRetry,
		Now:   time.Now,
	}

	post := &models.ScheduledPost{
		ID:              42,
		ConnectionId:    1,
		Status:          models.PostStatusPublishing,
		PlatformPostId:  "fb_existing",
		PlatformPostUrl: "https://facebook.com/p/fb_existing",
	}

	outcome, err := e.PublishPost(context.Background(), post)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != models.PostStatusPublished {
		t.Fatalf("status = %s, want published", outcome.Status)
	}
	if outcome.PlatformPostId != "fb_existing" {
		t.Fatalf("platform post id = %q, want existing id", outcome.PlatformPostId)
	}
}
