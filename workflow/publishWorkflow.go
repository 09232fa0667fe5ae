package workflow

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/pulsemark/social_backend/config"
	"bitbucket.org/pulsemark/social_backend/models"
	"bitbucket.org/pulsemark/social_backend/publisher"
	"bitbucket.org/pulsemark/social_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PublishEngine executes claimed posts against platform adapters and persists
// the outcome. One post's publish sequence is strictly sequential; concurrency
// happens across posts, never inside one.
type PublishEngine struct {
	DB         *gorm.DB
	Logger     *logrus.Logger
	Publishers *publisher.Registry
	// Credentials decrypts a connection's stored token. Overridable for tests.
	Credentials func(*models.SocialConnection) (string, error)
	Subs        *Subscriptions
	Retry       RetryConfig
	Now         func() time.Time
}

func NewPublishEngine(db *gorm.DB, logger *logrus.Logger, registry *publisher.Registry, subs *Subscriptions) *PublishEngine {
	return &PublishEngine{
		DB:          db,
		Logger:      logger,
		Publishers:  registry,
		Credentials: (*models.SocialConnection).AccessToken,
		Subs:        subs,
		Retry:       RetryConfigFromEnv(),
		Now:         time.Now,
	}
}

// publishDecision is the persisted consequence of one failed attempt.
type publishDecision struct {
	Status               models.PostStatus
	FailureReason        models.FailureReason
	DeactivateConnection bool
	ScheduleRetry        bool
	NewRetryCount        int
	NextRetryAt          *time.Time
}

// decideFailure applies the classification table to one failure. retryCount
// is the count before this attempt. Expired tokens and dead connections move
// the post to account_disconnected; everything else lands on failed, with a
// retry slot when the code is retryable and budget remains. An explicit
// noRetry overrides the table (unroutable platforms).
func decideFailure(code publisher.ErrorCode, reason models.FailureReason, retryCount int, noRetry bool, cfg RetryConfig, now time.Time) publishDecision {
	d := publishDecision{
		Status:               models.PostStatusFailed,
		FailureReason:        reason,
		DeactivateConnection: code == publisher.ErrorCodeTokenExpired,
		NewRetryCount:        retryCount,
	}
	if reason == models.FailureReasonAccountDisconnected || reason == models.FailureReasonTokenExpired {
		d.Status = models.PostStatusAccountDisconnected
	}
	if noRetry || !IsRetryableErrorCode(code) || d.Status != models.PostStatusFailed {
		return d
	}
	d.NewRetryCount = retryCount + 1
	if !cfg.HasRetryBudget(d.NewRetryCount) {
		return d
	}
	next := now.Add(cfg.NextRetryDelay(retryCount))
	d.ScheduleRetry = true
	d.NextRetryAt = &next
	return d
}

// PublishPost runs the full attempt for a post already claimed into
// publishing. It always returns the outcome it persisted; the error return is
// reserved for persistence failures, not publish failures.
func (e *PublishEngine) PublishPost(ctx context.Context, post *models.ScheduledPost) (*PublishOutcome, error) {
	// Idempotency short-circuit. A platform id on the row means a previous
	// attempt already delivered; nothing below may run again.
	if post.PlatformPostId != "" {
		return &PublishOutcome{
			PostId:          post.ID,
			Status:          models.PostStatusPublished,
			PlatformPostId:  post.PlatformPostId,
			PlatformPostUrl: post.PlatformPostUrl,
		}, nil
	}

	now := e.Now()

	conn, err := e.loadConnection(ctx, post.ConnectionId)
	if err != nil {
		return nil, err
	}
	if conn == nil || conn.IsActive == nil || !*conn.IsActive {
		return e.persistFailure(ctx, post, nil,
			publisher.ErrorCodeAccountDisconnected, models.FailureReasonAccountDisconnected,
			"social connection is missing or inactive", false, now)
	}

	token, err := e.Credentials(conn)
	if err != nil {
		return e.persistFailure(ctx, post, nil,
			publisher.ErrorCodeInvalidCredentials, models.FailureReasonInvalidCredentials,
			"stored credential could not be decrypted", false, now)
	}

	adapter := e.Publishers.Get(string(conn.Platform))
	if adapter == nil {
		return e.persistFailure(ctx, post, nil,
			publisher.ErrorCodeUnknown, models.FailureReasonUnknown,
			"no publisher registered for platform "+string(conn.Platform), true, now)
	}

	result, err := adapter.Publish(ctx, publisher.Request{
		Caption:     post.Caption,
		Hashtags:    strings.Fields(post.Hashtags),
		ImageURL:    post.ImageURL,
		AccessToken: token,
	})
	if err != nil {
		code, reason := ClassifyPublishError(err)
		return e.persistFailure(ctx, post, conn, code, reason, err.Error(), false, now)
	}

	return e.persistSuccess(ctx, post, conn, result, now)
}

func (e *PublishEngine) loadConnection(ctx context.Context, id int) (*models.SocialConnection, error) {
	var conn models.SocialConnection
	err := e.DB.WithContext(utils.SetSkipTenantScopeInContext(ctx, true)).
		Where("id = ?", id).First(&conn).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func (e *PublishEngine) persistSuccess(ctx context.Context, post *models.ScheduledPost, conn *models.SocialConnection, result *publisher.Result, now time.Time) (*PublishOutcome, error) {
	uctx := utils.SetSkipTenantScopeInContext(ctx, true)
	err := e.DB.WithContext(uctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ScheduledPost{}).
			Where("id = ? AND platform_post_id = ''", post.ID).
			Updates(map[string]interface{}{
				"status":            models.PostStatusPublished,
				"platform_post_id":  result.PlatformPostId,
				"platform_post_url": result.PlatformPostUrl,
				"published_at":      now,
				"error_message":     "",
				"failure_reason":    "",
				"next_retry_at":     nil,
				"claimed_by":        "",
			})
		if res.Error != nil {
			return res.Error
		}
		from := post.Status
		post.Status = models.PostStatusPublished
		post.PlatformPostId = result.PlatformPostId
		post.PlatformPostUrl = result.PlatformPostUrl
		post.PublishedAt = &now
		if err := models.MarkConnectionUsed(uctx, tx, conn.ID, now); err != nil {
			return err
		}
		if err := models.AppendPostHistory(tx, post, "published", from, ""); err != nil {
			return err
		}
		return models.QueuePostEvent(tx, post.WorkspaceId, models.PostReferenceTypePost, post.ID, models.PostEventActionPublished, post)
	})
	if err != nil {
		config.LogError(e.Logger, "publishWorkflow.go", "persistSuccess", "transaction", post.ID, err)
		return nil, err
	}

	outcome := PublishOutcome{
		PostId:          post.ID,
		Status:          models.PostStatusPublished,
		PlatformPostId:  result.PlatformPostId,
		PlatformPostUrl: result.PlatformPostUrl,
	}
	e.notify(outcome)

	e.Logger.WithFields(logrus.Fields{
		"post_id":          post.ID,
		"platform_post_id": result.PlatformPostId,
	}).Info("post published")
	return &outcome, nil
}

func (e *PublishEngine) persistFailure(ctx context.Context, post *models.ScheduledPost, conn *models.SocialConnection, code publisher.ErrorCode, reason models.FailureReason, message string, noRetry bool, now time.Time) (*PublishOutcome, error) {
	decision := decideFailure(code, reason, post.RetryCount, noRetry, e.Retry, now)

	uctx := utils.SetSkipTenantScopeInContext(ctx, true)
	err := e.DB.WithContext(uctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ScheduledPost{}).
			Where("id = ?", post.ID).
			Updates(map[string]interface{}{
				"status":         decision.Status,
				"failure_reason": decision.FailureReason,
				"error_message":  message,
				"retry_count":    decision.NewRetryCount,
				"next_retry_at":  decision.NextRetryAt,
				"claimed_by":     "",
			})
		if res.Error != nil {
			return res.Error
		}
		from := post.Status
		post.Status = decision.Status
		post.FailureReason = decision.FailureReason
		post.ErrorMessage = message
		post.RetryCount = decision.NewRetryCount
		post.NextRetryAt = decision.NextRetryAt

		if conn != nil {
			if err := models.RecordConnectionError(uctx, tx, conn.ID, message, decision.DeactivateConnection, now); err != nil {
				return err
			}
		}
		if err := models.AppendPostHistory(tx, post, "failed", from, string(code)+": "+message); err != nil {
			return err
		}
		return models.QueuePostEvent(tx, post.WorkspaceId, models.PostReferenceTypePost, post.ID, models.PostEventActionPublishFailed, post)
	})
	if err != nil {
		config.LogError(e.Logger, "publishWorkflow.go", "persistFailure", "transaction", post.ID, err)
		return nil, err
	}

	outcome := PublishOutcome{
		PostId:        post.ID,
		Status:        decision.Status,
		FailureReason: decision.FailureReason,
		ErrorMessage:  message,
		WillRetry:     decision.ScheduleRetry,
	}
	if !decision.ScheduleRetry {
		// Terminal failures wake waiters; a retryable failure keeps them
		// blocked until the retry resolves or their timeout fires.
		e.notify(outcome)
	}

	e.Logger.WithFields(logrus.Fields{
		"post_id":        post.ID,
		"failure_reason": decision.FailureReason,
		"retry_count":    decision.NewRetryCount,
		"will_retry":     decision.ScheduleRetry,
	}).Warn("post publish failed")
	return &outcome, nil
}

func (e *PublishEngine) notify(outcome PublishOutcome) {
	if e.Subs != nil {
		e.Subs.Notify(outcome)
	}
}
