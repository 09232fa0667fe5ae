package workflow

import (
	"errors"
	"fmt"
	"testing"

	"bitbucket.org/pulsemark/social_backend/models"
	"bitbucket.org/pulsemark/social_backend/publisher"
)

func TestIsRetryableErrorCodeTable(t *testing.T) {
	cases := []struct {
		code      publisher.ErrorCode
		retryable bool
	}{
		{publisher.ErrorCodeRateLimited, true},
		{publisher.ErrorCodePlatformError, true},
		{publisher.ErrorCodeTimeout, true},
		{publisher.ErrorCodeUnknown, true},
		{publisher.ErrorCode("some_future_code"), true},
		{publisher.ErrorCode(""), true},
		{publisher.ErrorCodeContentPolicyViolation, false},
		{publisher.ErrorCodeAccountDisconnected, false},
		{publisher.ErrorCodeInvalidCredentials, false},
		{publisher.ErrorCodeInsufficientPermissions, false},
		{publisher.ErrorCodeTokenExpired, false},
	}
	for _, c := range cases {
		if got := IsRetryableErrorCode(c.code); got != c.retryable {
			t.Errorf("code %q: retryable = %v, want %v", c.code, got, c.retryable)
		}
	}
}

func TestClassifyPublishErrorMapsKnownCodes(t *testing.T) {
	cases := []struct {
		code publisher.ErrorCode
		want models.FailureReason
	}{
		{publisher.ErrorCodeRateLimited, models.FailureReasonRateLimited},
		{publisher.ErrorCodePlatformError, models.FailureReasonPlatformError},
		{publisher.ErrorCodeContentPolicyViolation, models.FailureReasonContentPolicyViolation},
		{publisher.ErrorCodeAccountDisconnected, models.FailureReasonAccountDisconnected},
		{publisher.ErrorCodeInvalidCredentials, models.FailureReasonInvalidCredentials},
		{publisher.ErrorCodeInsufficientPermissions, models.FailureReasonInsufficientPermissions},
		{publisher.ErrorCodeTokenExpired, models.FailureReasonTokenExpired},
		{publisher.ErrorCodeTimeout, models.FailureReasonTimeout},
	}
	for _, c := range cases {
		code, reason := ClassifyPublishError(publisher.NewError(c.code, "boom"))
		if code != c.code || reason != c.want {
			t.Errorf("code %q: got (%q, %q), want (%q, %q)", c.code, code, reason, c.code, c.want)
		}
	}
}

func TestClassifyPublishErrorUnknownInputs(t *testing.T) {
	// Plain errors and unlisted codes both collapse to unknown.
	code, reason := ClassifyPublishError(errors.New("connection reset"))
	if code != publisher.ErrorCodeUnknown || reason != models.FailureReasonUnknown {
		t.Fatalf("plain error: got (%q, %q)", code, reason)
	}

	code, reason = ClassifyPublishError(publisher.NewError("brand_new_code", "what"))
	if code != publisher.ErrorCodeUnknown || reason != models.FailureReasonUnknown {
		t.Fatalf("unlisted code: got (%q, %q)", code, reason)
	}

	wrapped := fmt.Errorf("publish attempt: %w", publisher.NewError(publisher.ErrorCodeRateLimited, "slow down"))
	code, reason = ClassifyPublishError(wrapped)
	if code != publisher.ErrorCodeRateLimited || reason != models.FailureReasonRateLimited {
		t.Fatalf("wrapped error: got (%q, %q)", code, reason)
	}
}
