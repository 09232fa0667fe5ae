package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/pulsemark/social_backend/config"
	"bitbucket.org/pulsemark/social_backend/utils"
)

type User struct {
	ID           int       `gorm:"primary_key" json:"id"`
	WorkspaceId  string    `gorm:"index;not null" json:"workspace_id" binding:"required"`
	Username     string    `gorm:"size:255;not null;uniqueIndex" json:"username" binding:"required"`
	Name         string    `gorm:"size:255" json:"name"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         string    `gorm:"size:50;not null;default:'reviewer'" json:"role"`
	IsActive     *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	WorkspaceId string `json:"workspace_id" binding:"required"`
	Username    string `json:"username" binding:"required"`
	Name        string `json:"name"`
	Password    string `json:"password" binding:"required"`
	Role        string `json:"role"`
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	if !utils.IsValidEmail(input.Username) {
		return nil, errors.New("username must be an email address")
	}
	if len(input.Password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	hash, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = "reviewer"
	}

	user := User{
		WorkspaceId:  input.WorkspaceId,
		Username:     input.Username,
		Name:         input.Name,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &user, nil
}
