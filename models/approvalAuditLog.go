package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/pulsemark/social_backend/config"
	"bitbucket.org/pulsemark/social_backend/utils"
	"gorm.io/gorm"
)

// ApprovalAuditLog is append-only. One row per approval-queue transition,
// written inside the same transaction as the transition itself. Rows are never
// updated or deleted.
type ApprovalAuditLog struct {
	ID              int            `gorm:"primary_key" json:"id"`
	WorkspaceId     string         `gorm:"index;not null" json:"workspace_id"`
	QueueItemId     int            `gorm:"index;not null" json:"queue_item_id"`
	Action          ApprovalAction `gorm:"size:30;not null" json:"action"`
	ActorId         int            `gorm:"index" json:"actor_id"`
	ActorName       string         `gorm:"size:100;not null" json:"actor_name"`
	IsSystemAction  *bool          `gorm:"not null;default:false" json:"is_system_action"`
	ContentSnapshot string         `gorm:"type:text" json:"content_snapshot"`
	Notes           string         `gorm:"type:text" json:"notes"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// createApprovalAudit appends one audit row in the caller's transaction.
// Human actions take identity from the context and fail without it; system
// actions record the fixed "System" actor.
func createApprovalAudit(tx *gorm.DB, item *ApprovalQueueItem, action ApprovalAction, isSystem bool, notes string) error {
	ctx := tx.Statement.Context

	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok || workspaceId == "" {
		return errors.New("workspace id is required")
	}

	actorId := 0
	actorName := "System"
	if !isSystem {
		userId, ok := utils.GetUserIdFromContext(ctx)
		if !ok {
			return errors.New("user id is required")
		}
		userName, ok := utils.GetUserNameFromContext(ctx)
		if !ok {
			return errors.New("user name is required")
		}
		actorId = userId
		actorName = userName
	}

	snapshot, err := json.Marshal(item)
	if err != nil {
		return err
	}

	audit := ApprovalAuditLog{
		WorkspaceId:     workspaceId,
		QueueItemId:     item.ID,
		Action:          action,
		ActorId:         actorId,
		ActorName:       actorName,
		IsSystemAction:  &isSystem,
		ContentSnapshot: string(snapshot),
		Notes:           notes,
	}
	return tx.Create(&audit).Error
}

type AuditLogFilter struct {
	QueueItemId int
	From        *time.Time
	To          *time.Time
}

func ListApprovalAuditLogs(ctx context.Context, filter AuditLogFilter) ([]*ApprovalAuditLog, error) {
	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok || workspaceId == "" {
		return nil, errors.New("workspace id is required")
	}

	db := config.GetDB()
	q := db.WithContext(ctx).Where("workspace_id = ?", workspaceId)
	if filter.QueueItemId > 0 {
		q = q.Where("queue_item_id = ?", filter.QueueItemId)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}

	var logs []*ApprovalAuditLog
	if err := q.Order("id ASC").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
