package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/pulsemark/social_backend/config"
	"bitbucket.org/pulsemark/social_backend/utils"
	"github.com/google/uuid"
)

// Workspace is the tenant boundary. Every domain table carries workspace_id
// and the tenant guard plugin scopes queries to it.
type Workspace struct {
	ID        uuid.UUID `gorm:"type:char(36);primary_key" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name" binding:"required"`
	Email     string    `gorm:"size:255" json:"email"`
	Timezone  string    `gorm:"size:64;default:'UTC'" json:"timezone"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewWorkspace struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email"`
	Timezone string `json:"timezone"`
}

func CreateWorkspace(ctx context.Context, input *NewWorkspace) (*Workspace, error) {
	if input.Name == "" {
		return nil, errors.New("workspace name is required")
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid email")
	}

	tz := input.Timezone
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, errors.New("invalid timezone")
	}

	workspace := Workspace{
		ID:       uuid.New(),
		Name:     input.Name,
		Email:    input.Email,
		Timezone: tz,
		IsActive: utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&workspace).Error; err != nil {
		return nil, err
	}
	return &workspace, nil
}

func GetWorkspace(ctx context.Context, id string) (*Workspace, error) {
	db := config.GetDB()
	var workspace Workspace
	if err := db.WithContext(ctx).Where("id = ?", id).First(&workspace).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &workspace, nil
}
