// seed-admin creates or updates the admin console user. When the database has
// no workspace yet it creates one first, so a fresh environment is usable
// after a single run.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/pulsemark/social_backend/config"
	"bitbucket.org/pulsemark/social_backend/models"
	"bitbucket.org/pulsemark/social_backend/utils"
	"gorm.io/gorm"
)

const (
	defaultAdminUsername = "admin@pulsemark.io"
	defaultAdminName     = "Pulsemark Admin"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	username := os.Getenv("SEED_ADMIN_USERNAME")
	if username == "" {
		username = defaultAdminUsername
	}
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		fmt.Fprintln(os.Stderr, "SEED_ADMIN_PASSWORD is required")
		os.Exit(1)
	}

	ctx = utils.SetUserIdInContext(ctx, 0)
	ctx = utils.SetUserNameInContext(ctx, "Seed")
	ctx = utils.SetIsAdminInContext(ctx, true)
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	var workspace models.Workspace
	err := db.WithContext(ctx).Model(&models.Workspace{}).First(&workspace).Error
	if err == gorm.ErrRecordNotFound {
		created, createErr := models.CreateWorkspace(ctx, &models.NewWorkspace{
			Name: "Default Workspace",
		})
		if createErr != nil {
			fmt.Fprintf(os.Stderr, "failed to create workspace: %v\n", createErr)
			os.Exit(1)
		}
		workspace = *created
		fmt.Printf("Created workspace %q (%s)\n", workspace.Name, workspace.ID)
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "failed to lookup workspace: %v\n", err)
		os.Exit(1)
	}

	workspaceID := workspace.ID.String()
	ctx = utils.SetWorkspaceIdInContext(ctx, workspaceID)

	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			WorkspaceId:  workspaceID,
			Username:     username,
			Name:         defaultAdminName,
			PasswordHash: string(hashed),
			Role:         "admin",
			IsActive:     utils.NewTrue(),
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: username=%q\n", username)
		return
	}

	if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Updates(map[string]any{
		"password_hash": string(hashed),
		"is_active":     utils.NewTrue(),
		"role":          "admin",
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Updated admin user: username=%q\n", username)
}
