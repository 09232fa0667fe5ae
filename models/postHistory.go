package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/pulsemark/social_backend/config"
	"bitbucket.org/pulsemark/social_backend/utils"
	"gorm.io/gorm"
)

// PostHistory is the append-only event log of a scheduled post. One row per
// transition, written in the same transaction as the transition.
type PostHistory struct {
	ID            int           `gorm:"primary_key" json:"id"`
	WorkspaceId   string        `gorm:"index;not null" json:"workspace_id"`
	PostId        int           `gorm:"index;not null" json:"post_id"`
	Event         string        `gorm:"size:40;not null" json:"event"`
	FromStatus    PostStatus    `gorm:"size:30" json:"from_status"`
	ToStatus      PostStatus    `gorm:"size:30;not null" json:"to_status"`
	FailureReason FailureReason `gorm:"size:40" json:"failure_reason"`
	Detail        string        `gorm:"size:1000" json:"detail"`
	CreatedAt     time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

// AppendPostHistory writes one transition row in the caller's transaction.
func AppendPostHistory(tx *gorm.DB, post *ScheduledPost, event string, from PostStatus, detail string) error {
	h := PostHistory{
		WorkspaceId:   post.WorkspaceId,
		PostId:        post.ID,
		Event:         event,
		FromStatus:    from,
		ToStatus:      post.Status,
		FailureReason: post.FailureReason,
		Detail:        detail,
	}
	return tx.Create(&h).Error
}

func ListPostHistory(ctx context.Context, postId int) ([]*PostHistory, error) {
	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok || workspaceId == "" {
		return nil, errors.New("workspace id is required")
	}

	var rows []*PostHistory
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("workspace_id = ? AND post_id = ?", workspaceId, postId).
		Order("id ASC").Find(&rows).Error
	return rows, err
}
