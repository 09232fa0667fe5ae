package workflow

import (
	"errors"

	"bitbucket.org/pulsemark/social_backend/models"
	"bitbucket.org/pulsemark/social_backend/publisher"
)

// IsRetryableErrorCode implements the retry classification table. Unknown and
// unlisted codes default to retryable; dropping a transient failure silently
// costs more than a wasted retry. The non-retryable set covers failures a
// retry cannot fix.
func IsRetryableErrorCode(code publisher.ErrorCode) bool {
	switch code {
	case publisher.ErrorCodeContentPolicyViolation,
		publisher.ErrorCodeAccountDisconnected,
		publisher.ErrorCodeInvalidCredentials,
		publisher.ErrorCodeInsufficientPermissions,
		publisher.ErrorCodeTokenExpired:
		return false
	}
	return true
}

// ClassifyPublishError maps any error coming back from an adapter onto the
// closed failure-reason enum. Non-publisher errors (transport wrappers,
// context cancellation) classify as unknown.
func ClassifyPublishError(err error) (publisher.ErrorCode, models.FailureReason) {
	var pubErr *publisher.Error
	if !errors.As(err, &pubErr) {
		return publisher.ErrorCodeUnknown, models.FailureReasonUnknown
	}
	switch pubErr.Code {
	case publisher.ErrorCodeRateLimited:
		return pubErr.Code, models.FailureReasonRateLimited
	case publisher.ErrorCodePlatformError:
		return pubErr.Code, models.FailureReasonPlatformError
	case publisher.ErrorCodeContentPolicyViolation:
		return pubErr.Code, models.FailureReasonContentPolicyViolation
	case publisher.ErrorCodeAccountDisconnected:
		return pubErr.Code, models.FailureReasonAccountDisconnected
	case publisher.ErrorCodeInvalidCredentials:
		return pubErr.Code, models.FailureReasonInvalidCredentials
	case publisher.ErrorCodeInsufficientPermissions:
		return pubErr.Code, models.FailureReasonInsufficientPermissions
	case publisher.ErrorCodeTokenExpired:
		return pubErr.Code, models.FailureReasonTokenExpired
	case publisher.ErrorCodeTimeout:
		return pubErr.Code, models.FailureReasonTimeout
	default:
		return publisher.ErrorCodeUnknown, models.FailureReasonUnknown
	}
}
