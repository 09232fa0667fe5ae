package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/pulsemark/social_backend/config"
	"bitbucket.org/pulsemark/social_backend/utils"
	"gorm.io/gorm"
)

// ScheduledPost is the unit of published work. Terminal rows are retained,
// never deleted. PlatformPostId is set at most once and doubles as the
// idempotency token for publish attempts.
type ScheduledPost struct {
	ID              int           `gorm:"primary_key" json:"id"`
	WorkspaceId     string        `gorm:"index;not null" json:"workspace_id"`
	QueueItemId     int           `gorm:"index" json:"queue_item_id"`
	ConnectionId    int           `gorm:"index;not null" json:"connection_id"`
	Caption         string        `gorm:"type:text;not null" json:"caption"`
	Hashtags        string        `gorm:"type:text" json:"hashtags"`
	ImageURL        string        `gorm:"size:500" json:"image_url"`
	ScheduledFor    *time.Time    `gorm:"index" json:"scheduled_for"`
	Timezone        string        `gorm:"size:60" json:"timezone"`
	Status          PostStatus    `gorm:"size:30;not null;index" json:"status"`
	PlatformPostId  string        `gorm:"size:255" json:"platform_post_id"`
	PlatformPostUrl string        `gorm:"size:500" json:"platform_post_url"`
	ErrorMessage    string        `gorm:"size:1000" json:"error_message"`
	FailureReason   FailureReason `gorm:"size:40" json:"failure_reason"`
	RetryCount      int           `gorm:"not null;default:0" json:"retry_count"`
	NextRetryAt     *time.Time    `gorm:"index" json:"next_retry_at"`
	PublishedAt     *time.Time    `json:"published_at"`
	ClaimedAt       *time.Time    `json:"claimed_at"`
	ClaimedBy       string        `gorm:"size:100" json:"claimed_by"`
	CreatedAt       time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

var (
	ErrPostNotFound         = errors.New("scheduled post not found")
	ErrPostNotDraft         = errors.New("post is not a draft")
	ErrPostNotCancellable   = errors.New("post can only be cancelled while draft or scheduled")
	ErrScheduledForRequired = errors.New("scheduled_for is required")
	ErrScheduledForInPast   = errors.New("scheduled_for must be in the future")
)

// CreateScheduledPostTx validates and inserts within the caller's
// transaction, with the initial history row. Used both by direct creation and
// by approval.
func CreateScheduledPostTx(tx *gorm.DB, post *ScheduledPost) error {
	ctx := tx.Statement.Context
	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok || workspaceId == "" {
		return errors.New("workspace id is required")
	}
	post.WorkspaceId = workspaceId

	if post.Caption == "" {
		return errors.New("caption is required")
	}
	if post.ConnectionId == 0 {
		return errors.New("connection id is required")
	}
	if post.Timezone != "" {
		if _, err := time.LoadLocation(post.Timezone); err != nil {
			return errors.New("invalid timezone")
		}
	}
	switch post.Status {
	case PostStatusDraft:
	case PostStatusScheduled:
		if post.ScheduledFor == nil {
			return ErrScheduledForRequired
		}
	default:
		return errors.New("new posts must be draft or scheduled")
	}

	var count int64
	if err := tx.Model(&SocialConnection{}).
		Where("id = ? AND workspace_id = ?", post.ConnectionId, workspaceId).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrConnectionNotFound
	}

	if err := tx.Create(post).Error; err != nil {
		return err
	}
	event := "created"
	if post.Status == PostStatusScheduled {
		event = "scheduled"
	}
	return AppendPostHistory(tx, post, event, "", "")
}

func CreateScheduledPost(ctx context.Context, post *ScheduledPost) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return CreateScheduledPostTx(tx, post)
	})
}

func GetScheduledPost(ctx context.Context, id int) (*ScheduledPost, error) {
	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok || workspaceId == "" {
		return nil, errors.New("workspace id is required")
	}

	var post ScheduledPost
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", id, workspaceId).
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// SchedulePost moves a draft into the due set.
func SchedulePost(ctx context.Context, id int, scheduledFor time.Time, timezone string) (*ScheduledPost, error) {
	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok || workspaceId == "" {
		return nil, errors.New("workspace id is required")
	}
	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return nil, errors.New("invalid timezone")
		}
	}
	if !scheduledFor.After(time.Now()) {
		return nil, ErrScheduledForInPast
	}

	var post ScheduledPost
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":        PostStatusScheduled,
			"scheduled_for": scheduledFor,
		}
		if timezone != "" {
			updates["timezone"] = timezone
		}
		res := tx.Model(&ScheduledPost{}).
			Where("id = ? AND workspace_id = ? AND status = ?", id, workspaceId, PostStatusDraft).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPostNotDraft
		}
		if err := tx.Where("id = ?", id).First(&post).Error; err != nil {
			return err
		}
		return AppendPostHistory(tx, &post, "scheduled", PostStatusDraft, "")
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// CancelScheduledPost is legal only while the post is draft or scheduled.
// A post already claimed into publishing cannot be cancelled.
func CancelScheduledPost(ctx context.Context, id int) (*ScheduledPost, error) {
	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok || workspaceId == "" {
		return nil, errors.New("workspace id is required")
	}

	var post ScheduledPost
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND workspace_id = ?", id, workspaceId).First(&post).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPostNotFound
			}
			return err
		}
		from := post.Status
		res := tx.Model(&ScheduledPost{}).
			Where("id = ? AND workspace_id = ? AND status IN ?",
				id, workspaceId, []PostStatus{PostStatusDraft, PostStatusScheduled}).
			Update("status", PostStatusCancelled)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPostNotCancellable
		}
		post.Status = PostStatusCancelled
		if err := AppendPostHistory(tx, &post, "cancelled", from, ""); err != nil {
			return err
		}
		return QueuePostEvent(tx, post.WorkspaceId, PostReferenceTypePost, post.ID, PostEventActionCancelled, &post)
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// ListDuePosts returns claim candidates: scheduled posts whose time has come
// and failed posts whose retry window has opened with budget remaining.
// Runs unscoped across workspaces; callers are background processors.
func ListDuePosts(ctx context.Context, db *gorm.DB, now time.Time, maxRetries int, limit int) ([]*ScheduledPost, error) {
	var posts []*ScheduledPost
	err := db.WithContext(utils.SetSkipTenantScopeInContext(ctx, true)).
		Where("(status = ? AND scheduled_for <= ?) OR (status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ? AND retry_count < ?)",
			PostStatusScheduled, now, PostStatusFailed, now, maxRetries).
		Order("scheduled_for ASC").
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

// ClaimDuePost is the compare-and-swap that grants exclusive processing
// rights. The status condition is inside the UPDATE itself, so of any number
// of concurrent scanners exactly one sees RowsAffected == 1. A false return
// with no error means another worker won or the post left the due set.
func ClaimDuePost(ctx context.Context, db *gorm.DB, post *ScheduledPost, claimedBy string, now time.Time, maxRetries int) (bool, error) {
	res := db.WithContext(utils.SetSkipTenantScopeInContext(ctx, true)).
		Model(&ScheduledPost{}).
		Where("id = ? AND ((status = ? AND scheduled_for <= ?) OR (status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ? AND retry_count < ?))",
			post.ID, PostStatusScheduled, now, PostStatusFailed, now, maxRetries).
		Updates(map[string]interface{}{
			"status":     PostStatusPublishing,
			"claimed_at": now,
			"claimed_by": claimedBy,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	from := post.Status
	post.Status = PostStatusPublishing
	post.ClaimedAt = &now
	post.ClaimedBy = claimedBy
	return true, appendPostHistoryUnscoped(ctx, db, post, "claimed", from, claimedBy)
}

func appendPostHistoryUnscoped(ctx context.Context, db *gorm.DB, post *ScheduledPost, event string, from PostStatus, detail string) error {
	return AppendPostHistory(db.WithContext(utils.SetSkipTenantScopeInContext(ctx, true)), post, event, from, detail)
}

// ReleaseStaleClaims returns posts stuck in publishing past the lease window
// to the failed set with an immediate retry slot. A crashed worker's claim is
// reclaimed without human intervention; the idempotency short-circuit keeps a
// replay safe even if the worker had already published.
func ReleaseStaleClaims(ctx context.Context, db *gorm.DB, olderThan time.Duration, now time.Time) (int64, error) {
	cutoff := now.Add(-olderThan)
	res := db.WithContext(utils.SetSkipTenantScopeInContext(ctx, true)).
		Model(&ScheduledPost{}).
		Where("status = ? AND claimed_at IS NOT NULL AND claimed_at < ?", PostStatusPublishing, cutoff).
		Updates(map[string]interface{}{
			"status":         PostStatusFailed,
			"failure_reason": FailureReasonUnknown,
			"error_message":  "publish attempt abandoned, claim lease expired",
			"retry_count":    gorm.Expr("retry_count + 1"),
			"next_retry_at":  now,
			"claimed_by":     "",
		})
	return res.RowsAffected, res.Error
}
