package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/pulsemark/social_backend/config"
	"bitbucket.org/pulsemark/social_backend/utils"
	"gorm.io/gorm/clause"
)

const DefaultConfidenceThreshold = 95

// ApprovalSettings is per-workspace auto-approve configuration. One row per
// workspace, upserted.
type ApprovalSettings struct {
	ID                  int       `gorm:"primary_key" json:"id"`
	WorkspaceId         string    `gorm:"size:64;not null;uniqueIndex" json:"workspace_id" binding:"required"`
	AutoApproveEnabled  *bool     `gorm:"not null;default:false" json:"auto_approve_enabled"`
	ConfidenceThreshold int       `gorm:"not null;default:95" json:"confidence_threshold"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewApprovalSettings struct {
	AutoApproveEnabled  *bool `json:"auto_approve_enabled" binding:"required"`
	ConfidenceThreshold int   `json:"confidence_threshold"`
}

// GetApprovalSettings returns the workspace settings, falling back to the
// defaults (auto-approve off, threshold 95) when no row exists.
func GetApprovalSettings(ctx context.Context) (*ApprovalSettings, error) {
	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok || workspaceId == "" {
		return nil, errors.New("workspace id is required")
	}

	db := config.GetDB()
	var settings ApprovalSettings
	err := db.WithContext(ctx).Where("workspace_id = ?", workspaceId).First(&settings).Error
	if err != nil {
		return &ApprovalSettings{
			WorkspaceId:         workspaceId,
			AutoApproveEnabled:  utils.NewFalse(),
			ConfidenceThreshold: DefaultConfidenceThreshold,
		}, nil
	}
	return &settings, nil
}

func UpsertApprovalSettings(ctx context.Context, input *NewApprovalSettings) (*ApprovalSettings, error) {
	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok || workspaceId == "" {
		return nil, errors.New("workspace id is required")
	}
	if input.AutoApproveEnabled == nil {
		return nil, errors.New("auto_approve_enabled is required")
	}

	threshold := input.ConfidenceThreshold
	if threshold == 0 {
		threshold = DefaultConfidenceThreshold
	}
	if threshold < 0 || threshold > 100 {
		return nil, errors.New("confidence threshold must be between 0 and 100")
	}

	settings := ApprovalSettings{
		WorkspaceId:         workspaceId,
		AutoApproveEnabled:  input.AutoApproveEnabled,
		ConfidenceThreshold: threshold,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "workspace_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"auto_approve_enabled", "confidence_threshold", "updated_at"}),
		}).
		Create(&settings).Error
	if err != nil {
		return nil, err
	}
	return &settings, nil
}
