package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/pulsemark/social_backend/config"
	"bitbucket.org/pulsemark/social_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PostAnalytics holds append-only engagement snapshots for a published post.
// One row per sync; the latest row is the current view.
type PostAnalytics struct {
	ID             int             `gorm:"primary_key" json:"id"`
	WorkspaceId    string          `gorm:"index;not null" json:"workspace_id"`
	PostId         int             `gorm:"index;not null;index:idx_analytics_post_fetched,priority:1" json:"post_id"`
	Likes          int             `gorm:"not null;default:0" json:"likes"`
	Comments       int             `gorm:"not null;default:0" json:"comments"`
	Shares         int             `gorm:"not null;default:0" json:"shares"`
	Impressions    int             `gorm:"not null;default:0" json:"impressions"`
	EngagementRate decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"engagement_rate"`
	FetchedAt      time.Time       `gorm:"index;not null;index:idx_analytics_post_fetched,priority:2" json:"fetched_at"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// EngagementRateFor is (likes + comments + shares) / impressions, zero when
// the post has no impressions yet.
func EngagementRateFor(likes, comments, shares, impressions int) decimal.Decimal {
	if impressions <= 0 {
		return decimal.Zero
	}
	interactions := decimal.NewFromInt(int64(likes + comments + shares))
	return interactions.Div(decimal.NewFromInt(int64(impressions))).Round(4)
}

// AppendPostAnalytics records one snapshot. Called by the platform sync
// worker, so it writes unscoped with the workspace taken from the post row.
func AppendPostAnalytics(ctx context.Context, db *gorm.DB, snapshot *PostAnalytics) error {
	if snapshot.PostId == 0 {
		return errors.New("post id is required")
	}
	if snapshot.WorkspaceId == "" {
		return errors.New("workspace id is required")
	}
	if snapshot.FetchedAt.IsZero() {
		snapshot.FetchedAt = time.Now()
	}
	snapshot.EngagementRate = EngagementRateFor(snapshot.Likes, snapshot.Comments, snapshot.Shares, snapshot.Impressions)
	return db.WithContext(utils.SetSkipTenantScopeInContext(ctx, true)).Create(snapshot).Error
}

func ListPostAnalytics(ctx context.Context, postId int) ([]*PostAnalytics, error) {
	workspaceId, ok := utils.GetWorkspaceIdFromContext(ctx)
	if !ok || workspaceId == "" {
		return nil, errors.New("workspace id is required")
	}

	var rows []*PostAnalytics
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("workspace_id = ? AND post_id = ?", workspaceId, postId).
		Order("fetched_at ASC").Find(&rows).Error
	return rows, err
}
