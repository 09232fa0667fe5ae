package utils

import (
	"context"

	"bitbucket.org/pulsemark/social_backend/config"
)

// check if id exists, using ctx's workspace_id in WHERE, return RecordNotFound error
func ValidateResourceId[T any](ctx context.Context, workspaceId string, id interface{}) error {

	count, err := ResourceCountWhere[T](ctx, workspaceId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

// count rows matching condition, scoped by workspace when workspaceId is non-empty
func ResourceCountWhere[T any](ctx context.Context, workspaceId string, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	var count int64
	if workspaceId != "" {
		dbCtx.Where("workspace_id = ?", workspaceId)
	}
	dbCtx.Where(condition, value...)
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
