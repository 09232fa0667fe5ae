package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"bitbucket.org/pulsemark/social_backend/config"
	"bitbucket.org/pulsemark/social_backend/models"
	"bitbucket.org/pulsemark/social_backend/utils"
	"bitbucket.org/pulsemark/social_backend/workflow"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// PublishScanProcessor is the due-post scan. Each cycle it lists claim
// candidates, wins each post with the conditional-update claim, and hands the
// winners to a bounded worker pool. The claim is what makes concurrent
// scanners safe; the redis lock on the batch is only a politeness that keeps
// replicas from scanning the same rows at the same moment.
type PublishScanProcessor struct {
	DB       *gorm.DB
	Logger   *logrus.Logger
	Engine   *workflow.PublishEngine
	WorkerID string

	BatchSize   int
	Concurrency int
	Interval    time.Duration
	LeaseTTL    time.Duration
}

func NewPublishScanProcessor(db *gorm.DB, logger *logrus.Logger, engine *workflow.PublishEngine) *PublishScanProcessor {
	concurrency := 4
	if v, err := strconv.Atoi(os.Getenv("PUBLISH_SCAN_CONCURRENCY")); err == nil && v > 0 {
		concurrency = v
	}
	return &PublishScanProcessor{
		DB:          db,
		Logger:      logger,
		Engine:      engine,
		WorkerID:    "scan-" + time.Now().Format("20060102-150405.000"),
		BatchSize:   50,
		Concurrency: concurrency,
		Interval:    15 * time.Second,
		LeaseTTL:    10 * time.Minute,
	}
}

func shouldRunPublishScan() bool {
	return config.PublishDirectScan()
}

func (p *PublishScanProcessor) Run(ctx context.Context) {
	if p == nil || p.DB == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.scanOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.Interval):
		}
	}
}

func (p *PublishScanProcessor) scanOnce(ctx context.Context) {
	// Single scan per cycle across replicas when redis is up; correctness does
	// not depend on it.
	var lock *redislock.Lock
	if locker := config.GetRedisLock(); locker != nil {
		var err error
		lock, err = locker.Obtain(ctx, "publish-scan", p.Interval, nil)
		if err == redislock.ErrNotObtained {
			return
		}
		if err != nil {
			lock = nil
		}
	}
	if lock != nil {
		defer func() { _ = lock.Release(context.Background()) }()
	}

	now := time.Now().UTC()

	// Return abandoned claims to the due set before scanning.
	if released, err := models.ReleaseStaleClaims(ctx, p.DB, p.LeaseTTL, now); err == nil && released > 0 {
		p.Logger.WithFields(logrus.Fields{
			"field":    "PublishScanProcessor",
			"released": released,
		}).Warn("released stale publishing claims")
	}

	candidates, err := models.ListDuePosts(ctx, p.DB, now, p.Engine.Retry.MaxAttempts, p.BatchSize)
	if err != nil {
		config.LogError(p.Logger, "publish_scan_processor.go", "scanOnce", "ListDuePosts", nil, err)
		return
	}
	if len(candidates) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Concurrency)
	for _, post := range candidates {
		post := post
		g.Go(func() error {
			p.processCandidate(gctx, post)
			return nil
		})
	}
	_ = g.Wait()
}

func (p *PublishScanProcessor) processCandidate(ctx context.Context, post *models.ScheduledPost) {
	won, err := models.ClaimDuePost(ctx, p.DB, post, p.WorkerID, time.Now().UTC(), p.Engine.Retry.MaxAttempts)
	if err != nil {
		config.LogError(p.Logger, "publish_scan_processor.go", "processCandidate", "ClaimDuePost", post.ID, err)
		return
	}
	if !won {
		// Another scanner claimed it, or it left the due set. Not an error.
		return
	}

	procCtx := utils.SetWorkspaceIdInContext(ctx, post.WorkspaceId)
	procCtx = utils.SetUserNameInContext(procCtx, "System")
	if _, err := p.Engine.PublishPost(procCtx, post); err != nil {
		config.LogError(p.Logger, "publish_scan_processor.go", "processCandidate", "PublishPost", post.ID, err)
	}
}
