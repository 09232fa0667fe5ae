package platformsync

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/pulsemark/social_backend/config"
	"bitbucket.org/pulsemark/social_backend/models"
	"bitbucket.org/pulsemark/social_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Worker periodically pulls engagement metrics for recently published posts
// and appends one analytics snapshot per post per cycle. It runs unscoped
// across all workspaces.
type Worker struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	Interval  time.Duration
	Window    time.Duration
	BatchSize int

	clients map[string]*metricsClient
}

func NewWorker(db *gorm.DB, logger *logrus.Logger) *Worker {
	interval := time.Hour
	if v := strings.TrimSpace(os.Getenv("ANALYTICS_SYNC_INTERVAL_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			interval = time.Duration(n) * time.Second
		}
	}
	windowDays := 7
	if v := strings.TrimSpace(os.Getenv("ANALYTICS_SYNC_WINDOW_DAYS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			windowDays = n
		}
	}

	return &Worker{
		DB:        db,
		Logger:    logger,
		Interval:  interval,
		Window:    time.Duration(windowDays) * 24 * time.Hour,
		BatchSize: 200,
		clients:   map[string]*metricsClient{},
	}
}

// ShouldRun gates the worker on ANALYTICS_SYNC_ENABLED (default on).
func ShouldRun() bool {
	return config.AnalyticsSyncEnabled()
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		w.syncOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) syncOnce(ctx context.Context) {
	scanCtx := utils.SetSkipTenantScopeInContext(ctx, true)

	var posts []*models.ScheduledPost
	err := w.DB.WithContext(scanCtx).
		Where("status = ? AND platform_post_id <> '' AND published_at >= ?",
			models.PostStatusPublished, time.Now().Add(-w.Window)).
		Order("published_at DESC").
		Limit(w.BatchSize).
		Find(&posts).Error
	if err != nil {
		config.LogError(w.Logger, "worker.go", "syncOnce", "list published posts", nil, err)
		return
	}

	for _, post := range posts {
		if ctx.Err() != nil {
			return
		}
		if err := w.syncPost(scanCtx, post); err != nil {
			w.Logger.WithFields(logrus.Fields{
				"field":        "syncPost",
				"post_id":      post.ID,
				"workspace_id": post.WorkspaceId,
			}).Warn("analytics sync failed: " + err.Error())
		}
	}
}

func (w *Worker) syncPost(ctx context.Context, post *models.ScheduledPost) error {
	var conn models.SocialConnection
	if err := w.DB.WithContext(ctx).
		Where("id = ?", post.ConnectionId).
		Take(&conn).Error; err != nil {
		return err
	}
	if conn.IsActive == nil || !*conn.IsActive {
		return nil
	}

	client, err := w.clientFor(string(conn.Platform))
	if err != nil {
		return err
	}
	token, err := conn.AccessToken()
	if err != nil {
		return err
	}

	metrics, err := client.getMetrics(ctx, post.PlatformPostId, token)
	if err != nil {
		return err
	}

	return models.AppendPostAnalytics(ctx, w.DB, &models.PostAnalytics{
		WorkspaceId: post.WorkspaceId,
		PostId:      post.ID,
		Likes:       metrics.Likes,
		Comments:    metrics.Comments,
		Shares:      metrics.Shares,
		Impressions: metrics.Impressions,
		FetchedAt:   time.Now(),
	})
}

func (w *Worker) clientFor(platform string) (*metricsClient, error) {
	if c, ok := w.clients[platform]; ok {
		return c, nil
	}
	c, err := newMetricsClient(platform)
	if err != nil {
		return nil, err
	}
	w.clients[platform] = c
	return c, nil
}
