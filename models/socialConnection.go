package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/pulsemark/social_backend/config"
	"bitbucket.org/pulsemark/social_backend/utils"
	"gorm.io/gorm"
)

// SocialConnection is a linked platform account. Access tokens are stored
// encrypted (AES-256-GCM, ciphertext + iv + auth tag columns); plaintext never
// touches the database. Connections are deactivated on auth failure, never
// deleted, so post history keeps its references.
type SocialConnection struct {
	ID                   int        `gorm:"primary_key" json:"id"`
	WorkspaceId          string     `gorm:"index;not null" json:"workspace_id"`
	Platform             Platform   `gorm:"size:20;not null" json:"platform"`
	AccountName          string     `gorm:"size:255;not null" json:"account_name"`
	ExternalAccountId    string     `gorm:"size:255" json:"external_account_id"`
	CredentialCiphertext string     `gorm:"type:text;not null" json:"-"`
	CredentialIV         string     `gorm:"size:64;not null" json:"-"`
	CredentialAuthTag    string     `gorm:"size:64;not null" json:"-"`
	TokenExpiresAt       *time.Time `json:"token_expires_at"`
	IsActive             *bool      `gorm:"not null;default:true" json:"is_active"`
	LastUsedAt           *time.Time `json:"last_used_at"`
	LastErrorAt          *time.Time `json:"last_error_at"`
	LastErrorMessage     string     `gorm:"size:500" json:"last_error_message"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

var ErrConnectionNotFound = errors.New("social connection not found")

func CreateSocialConnection(ctx context.Context, conn *SocialConnection, accessToken string) error {
	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok || workspaceId == "" {
		return errors.New("workspace id is required")
	}
	if !conn.Platform.IsValid() {
		return ErrInvalidPlatform
	}
	if conn.AccountName == "" {
		return errors.New("account name is required")
	}
	if accessToken == "" {
		return errors.New("access token is required")
	}

	ct, iv, tag, err := utils.EncryptCredential(accessToken)
	if err != nil {
		return err
	}
	conn.WorkspaceId = workspaceId
	conn.CredentialCiphertext = ct
	conn.CredentialIV = iv
	conn.CredentialAuthTag = tag
	if conn.IsActive == nil {
		conn.IsActive = utils.NewTrue()
	}

	db := config.GetDB()
	return db.WithContext(ctx).Create(conn).Error
}

func GetSocialConnection(ctx context.Context, id int) (*SocialConnection, error) {
	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok || workspaceId == "" {
		return nil, errors.New("workspace id is required")
	}

	var conn SocialConnection
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", id, workspaceId).
		First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConnectionNotFound
		}
		return nil, err
	}
	return &conn, nil
}

func ListSocialConnections(ctx context.Context) ([]*SocialConnection, error) {
	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok || workspaceId == "" {
		return nil, errors.New("workspace id is required")
	}

	var conns []*SocialConnection
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("workspace_id = ?", workspaceId).
		Order("id ASC").Find(&conns).Error
	return conns, err
}

// AccessToken decrypts the stored credential. A decryption failure means the
// row was corrupted or the key rotated without re-encryption; callers treat it
// as invalid_credentials, never as an empty token.
func (c *SocialConnection) AccessToken() (string, error) {
	return utils.DecryptCredential(c.CredentialCiphertext, c.CredentialIV, c.CredentialAuthTag)
}

func MarkConnectionUsed(ctx context.Context, db *gorm.DB, id int, now time.Time) error {
	return db.WithContext(ctx).Model(&SocialConnection{}).
		Where("id = ?", id).
		Update("last_used_at", now).Error
}

// RecordConnectionError stamps the failure on the connection and optionally
// deactivates it (expired or revoked tokens).
func RecordConnectionError(ctx context.Context, db *gorm.DB, id int, message string, deactivate bool, now time.Time) error {
	updates := map[string]interface{}{
		"last_error_at":      now,
		"last_error_message": message,
	}
	if deactivate {
		updates["is_active"] = false
	}
	return db.WithContext(ctx).Model(&SocialConnection{}).
		Where("id = ?", id).
		Updates(updates).Error
}
