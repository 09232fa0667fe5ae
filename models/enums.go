package models

import "errors"

type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformTikTok    Platform = "tiktok"
)

func (p Platform) IsValid() bool {
	switch p {
	case PlatformFacebook, PlatformInstagram, PlatformTwitter, PlatformLinkedIn, PlatformTikTok:
		return true
	}
	return false
}

var ErrInvalidPlatform = errors.New("invalid platform")

type PriorityLevel string

const (
	PriorityLevelLow    PriorityLevel = "low"
	PriorityLevelMedium PriorityLevel = "medium"
	PriorityLevelHigh   PriorityLevel = "high"
	PriorityLevelUrgent PriorityLevel = "urgent"
)

type ApprovalStatus string

const (
	ApprovalStatusPendingReview     ApprovalStatus = "pending_review"
	ApprovalStatusApproved          ApprovalStatus = "approved"
	ApprovalStatusRejected          ApprovalStatus = "rejected"
	ApprovalStatusRevisionRequested ApprovalStatus = "revision_requested"
)

// ApprovalAction names the audit-trail entry written for each queue transition.
type ApprovalAction string

const (
	ApprovalActionSubmitted         ApprovalAction = "submitted"
	ApprovalActionAutoApproved      ApprovalAction = "auto_approved"
	ApprovalActionApproved          ApprovalAction = "approved"
	ApprovalActionRejected          ApprovalAction = "rejected"
	ApprovalActionRevisionRequested ApprovalAction = "revision_requested"
)

type PostStatus string

const (
	PostStatusDraft               PostStatus = "draft"
	PostStatusScheduled           PostStatus = "scheduled"
	PostStatusPublishing          PostStatus = "publishing"
	PostStatusPublished           PostStatus = "published"
	PostStatusFailed              PostStatus = "failed"
	PostStatusCancelled           PostStatus = "cancelled"
	PostStatusAccountDisconnected PostStatus = "account_disconnected"
)

// FailureReason is the closed classification persisted on a failed post.
// It mirrors publisher.ErrorCode plus "unknown" for anything unrecognized.
type FailureReason string

const (
	FailureReasonRateLimited             FailureReason = "rate_limited"
	FailureReasonPlatformError           FailureReason = "platform_error"
	FailureReasonContentPolicyViolation  FailureReason = "content_policy_violation"
	FailureReasonAccountDisconnected     FailureReason = "account_disconnected"
	FailureReasonInvalidCredentials      FailureReason = "invalid_credentials"
	FailureReasonInsufficientPermissions FailureReason = "insufficient_permissions"
	FailureReasonTokenExpired            FailureReason = "token_expired"
	FailureReasonTimeout                 FailureReason = "timeout"
	FailureReasonUnknown                 FailureReason = "unknown"
)

// PostEventAction tags outbox events emitted on lifecycle transitions.
type PostEventAction string

const (
	PostEventActionQueued            PostEventAction = "queued"
	PostEventActionAutoApproved      PostEventAction = "auto_approved"
	PostEventActionApproved          PostEventAction = "approved"
	PostEventActionRejected          PostEventAction = "rejected"
	PostEventActionRevisionRequested PostEventAction = "revision_requested"
	PostEventActionScheduled         PostEventAction = "scheduled"
	PostEventActionPublished         PostEventAction = "published"
	PostEventActionPublishFailed     PostEventAction = "publish_failed"
	PostEventActionCancelled         PostEventAction = "cancelled"
)

type PostReferenceType string

const (
	PostReferenceTypeQueueItem PostReferenceType = "ApprovalQueueItem"
	PostReferenceTypePost      PostReferenceType = "ScheduledPost"
)
