package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/pulsemark/social_backend/config"
	"bitbucket.org/pulsemark/social_backend/utils"
	"gorm.io/gorm"
)

type ApprovalQueueItem struct {
	ID                 int            `gorm:"primary_key" json:"id"`
	WorkspaceId        string         `gorm:"index;not null" json:"workspace_id"`
	Caption            string         `gorm:"type:text;not null" json:"caption"`
	Hashtags           string         `gorm:"type:text" json:"hashtags"`
	Platform           Platform       `gorm:"size:20;not null" json:"platform"`
	ImageURL           string         `gorm:"size:500" json:"image_url"`
	IsProductLaunch    *bool          `gorm:"not null;default:false" json:"is_product_launch"`
	ConfidenceScore    int            `gorm:"not null" json:"confidence_score"`
	Recommendation     string         `gorm:"size:20;not null" json:"recommendation"`
	SafetyCheckResults string         `gorm:"type:text" json:"safety_check_results"`
	PriorityScore      int            `gorm:"not null;index" json:"priority_score"`
	PriorityLevel      PriorityLevel  `gorm:"size:10;not null;index" json:"priority_level"`
	Status             ApprovalStatus `gorm:"size:30;not null;index" json:"status"`
	IsSystemAction     *bool          `gorm:"not null;default:false" json:"is_system_action"`
	ReviewerId         int            `json:"reviewer_id"`
	ReviewNotes        string         `gorm:"type:text" json:"review_notes"`
	ScheduledFor       *time.Time     `json:"scheduled_for"`
	Timezone           string         `gorm:"size:60" json:"timezone"`
	ScheduledPostId    int            `gorm:"index" json:"scheduled_post_id"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

var (
	ErrQueueItemNotFound    = errors.New("approval queue item not found")
	ErrQueueItemNotPending  = errors.New("approval queue item is not pending review")
	ErrQueueItemNotApproved = errors.New("approval queue item is not approved")
)

// CreateApprovalQueueItemTx persists a newly evaluated item together with its
// first audit row, inside the caller's transaction. Auto-approved items record
// the system actor.
func CreateApprovalQueueItemTx(tx *gorm.DB, item *ApprovalQueueItem) error {
	workspaceId, ok := utils.GetWorkspaceIdFromContext(tx.Statement.Context)
	if !ok || workspaceId == "" {
		return errors.New("workspace id is required")
	}
	item.WorkspaceId = workspaceId

	action := ApprovalActionSubmitted
	isSystem := false
	if item.Status == ApprovalStatusApproved {
		action = ApprovalActionAutoApproved
		isSystem = true
	}
	item.IsSystemAction = &isSystem

	if err := tx.Create(item).Error; err != nil {
		return err
	}
	return createApprovalAudit(tx, item, action, isSystem, "")
}

func GetApprovalQueueItem(ctx context.Context, id int) (*ApprovalQueueItem, error) {
	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok || workspaceId == "" {
		return nil, errors.New("workspace id is required")
	}

	var item ApprovalQueueItem
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", id, workspaceId).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQueueItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

// TransitionQueueItem moves a pending item to a terminal review status and
// writes the audit row, inside the supplied transaction. The pending check is
// part of the UPDATE so concurrent reviewers cannot both win.
func TransitionQueueItem(tx *gorm.DB, item *ApprovalQueueItem, status ApprovalStatus, action ApprovalAction, reviewerId int, notes string) error {
	res := tx.Model(&ApprovalQueueItem{}).
		Where("id = ? AND workspace_id = ? AND status = ?", item.ID, item.WorkspaceId, ApprovalStatusPendingReview).
		Updates(map[string]interface{}{
			"status":       status,
			"reviewer_id":  reviewerId,
			"review_notes": notes,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrQueueItemNotPending
	}
	item.Status = status
	item.ReviewerId = reviewerId
	item.ReviewNotes = notes
	return createApprovalAudit(tx, item, action, false, notes)
}

// LinkScheduledPost records the post created for an approved item.
func LinkScheduledPost(tx *gorm.DB, item *ApprovalQueueItem, postId int) error {
	err := tx.Model(&ApprovalQueueItem{}).
		Where("id = ? AND workspace_id = ?", item.ID, item.WorkspaceId).
		Update("scheduled_post_id", postId).Error
	if err != nil {
		return err
	}
	item.ScheduledPostId = postId
	return nil
}

type QueueFilter struct {
	Status   ApprovalStatus
	Priority PriorityLevel
	Platform Platform
	From     *time.Time
	To       *time.Time
}

// ListApprovalQueue returns the workspace's queue ordered for reviewers:
// highest priority score first, oldest first within a score.
func ListApprovalQueue(ctx context.Context, filter QueueFilter) ([]*ApprovalQueueItem, error) {
	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok || workspaceId == "" {
		return nil, errors.New("workspace id is required")
	}

	db := config.GetDB()
	q := db.WithContext(ctx).Where("workspace_id = ?", workspaceId)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		q = q.Where("priority_level = ?", filter.Priority)
	}
	if filter.Platform != "" {
		q = q.Where("platform = ?", filter.Platform)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}

	var items []*ApprovalQueueItem
	if err := q.Order("priority_score DESC, created_at ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
