package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/pulsemark/social_backend/config"
	"bitbucket.org/pulsemark/social_backend/evaluation"
	"bitbucket.org/pulsemark/social_backend/models"
	"bitbucket.org/pulsemark/social_backend/utils"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ApprovalEngine runs the review pipeline: evaluate, score, gate, persist.
type ApprovalEngine struct {
	DB         *gorm.DB
	Logger     *logrus.Logger
	Confidence evaluation.ConfidenceEvaluator
	Safety     evaluation.SafetyEvaluator
	Now        func() time.Time
}

func NewApprovalEngine(db *gorm.DB, logger *logrus.Logger, confidence evaluation.ConfidenceEvaluator, safety evaluation.SafetyEvaluator) *ApprovalEngine {
	return &ApprovalEngine{
		DB:         db,
		Logger:     logger,
		Confidence: confidence,
		Safety:     safety,
		Now:        time.Now,
	}
}

type NewQueueContent struct {
	Caption         string     `json:"caption" validate:"required"`
	Hashtags        []string   `json:"hashtags"`
	Platform        string     `json:"platform" validate:"required"`
	ImageURL        string     `json:"image_url" validate:"omitempty,url"`
	IsProductLaunch bool       `json:"is_product_launch"`
	ConnectionId    int        `json:"connection_id"`
	ScheduledFor    *time.Time `json:"scheduled_for"`
	Timezone        string     `json:"timezone"`
}

var queueContentValidator = validator.New()

// AddToQueue evaluates new content and persists the queue item plus its first
// audit row in one transaction. An evaluator error propagates with nothing
// persisted. Items passing the auto-approve gate are created already approved
// and, when a schedule and connection are present, the scheduled post is
// created in the same transaction.
func (e *ApprovalEngine) AddToQueue(ctx context.Context, input *NewQueueContent) (*models.ApprovalQueueItem, error) {
	if err := queueContentValidator.Struct(input); err != nil {
		return nil, err
	}
	platform := models.Platform(input.Platform)
	if !platform.IsValid() {
		return nil, models.ErrInvalidPlatform
	}
	if input.ScheduledFor != nil && input.Timezone != "" {
		if _, err := time.LoadLocation(input.Timezone); err != nil {
			return nil, errors.New("invalid timezone")
		}
	}

	content := evaluation.Content{
		Caption:         input.Caption,
		Hashtags:        input.Hashtags,
		Platform:        input.Platform,
		ImageURL:        input.ImageURL,
		IsProductLaunch: input.IsProductLaunch,
	}

	confidence, err := e.Confidence.Evaluate(ctx, content)
	if err != nil {
		config.LogError(e.Logger, "approvalWorkflow.go", "AddToQueue", "Confidence.Evaluate", input.Caption, err)
		return nil, err
	}
	safety, err := e.Safety.Evaluate(ctx, content)
	if err != nil {
		config.LogError(e.Logger, "approvalWorkflow.go", "AddToQueue", "Safety.Evaluate", input.Caption, err)
		return nil, err
	}

	now := e.Now()
	score := CalculatePriorityScore(ScoringInput{
		Caption:         input.Caption,
		ScheduledFor:    input.ScheduledFor,
		ConfidenceScore: confidence.Score,
		SafetyResult:    *safety,
		IsProductLaunch: input.IsProductLaunch,
		Now:             now,
	})
	level := PriorityLevelForScore(score)

	settings, err := models.GetApprovalSettings(ctx)
	if err != nil {
		return nil, err
	}

	autoApproved := EvaluateAutoApproveGate(GateInput{
		AutoApproveEnabled:  settings.AutoApproveEnabled != nil && *settings.AutoApproveEnabled,
		ConfidenceThreshold: settings.ConfidenceThreshold,
		ConfidenceScore:     confidence.Score,
		Recommendation:      confidence.Recommendation,
		AllSafetyPassed:     safety.AllPassed,
		PriorityLevel:       level,
		KillSwitchActive:    config.AutoApproveKillSwitch(),
	})

	safetyJSON, err := utils.MarshalToJSON(safety)
	if err != nil {
		return nil, err
	}

	item := models.ApprovalQueueItem{
		Caption:            input.Caption,
		Hashtags:           strings.Join(input.Hashtags, " "),
		Platform:           platform,
		ImageURL:           input.ImageURL,
		IsProductLaunch:    &input.IsProductLaunch,
		ConfidenceScore:    confidence.Score,
		Recommendation:     string(confidence.Recommendation),
		SafetyCheckResults: safetyJSON,
		PriorityScore:      score,
		PriorityLevel:      level,
		Status:             models.ApprovalStatusPendingReview,
		ScheduledFor:       input.ScheduledFor,
		Timezone:           input.Timezone,
	}
	if autoApproved {
		item.Status = models.ApprovalStatusApproved
	}

	err = e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := models.CreateApprovalQueueItemTx(tx, &item); err != nil {
			return err
		}
		action := models.PostEventActionQueued
		if autoApproved {
			action = models.PostEventActionAutoApproved
			if input.ScheduledFor != nil && input.ConnectionId != 0 {
				if err := e.createPostForItem(tx, &item, input.ConnectionId); err != nil {
					return err
				}
			}
		}
		return models.QueuePostEvent(tx, item.WorkspaceId, models.PostReferenceTypeQueueItem, item.ID, action, &item)
	})
	if err != nil {
		config.LogError(e.Logger, "approvalWorkflow.go", "AddToQueue", "persist", input.Caption, err)
		return nil, err
	}

	e.Logger.WithFields(logrus.Fields{
		"queue_item_id":  item.ID,
		"priority_score": item.PriorityScore,
		"priority_level": item.PriorityLevel,
		"auto_approved":  autoApproved,
	}).Info("content queued for approval")

	return &item, nil
}

func (e *ApprovalEngine) createPostForItem(tx *gorm.DB, item *models.ApprovalQueueItem, connectionId int) error {
	status := models.PostStatusDraft
	if item.ScheduledFor != nil {
		status = models.PostStatusScheduled
	}
	post := models.ScheduledPost{
		QueueItemId:  item.ID,
		ConnectionId: connectionId,
		Caption:      item.Caption,
		Hashtags:     item.Hashtags,
		ImageURL:     item.ImageURL,
		ScheduledFor: item.ScheduledFor,
		Timezone:     item.Timezone,
		Status:       status,
	}
	if err := models.CreateScheduledPostTx(tx, &post); err != nil {
		return err
	}
	return models.LinkScheduledPost(tx, item, post.ID)
}

type ReviewInput struct {
	ConnectionId int    `json:"connection_id"`
	Notes        string `json:"notes"`
}

// ApproveContent transitions a pending item to approved and, when the item
// carries a schedule and the reviewer supplies a connection, creates the
// scheduled post in the same transaction.
func (e *ApprovalEngine) ApproveContent(ctx context.Context, id int, input ReviewInput) (*models.ApprovalQueueItem, error) {
	item, err := models.GetApprovalQueueItem(ctx, id)
	if err != nil {
		return nil, err
	}
	reviewerId, _ := utils.GetUserIdFromContext(ctx)

	err = e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := models.TransitionQueueItem(tx, item, models.ApprovalStatusApproved, models.ApprovalActionApproved, reviewerId, input.Notes); err != nil {
			return err
		}
		if item.ScheduledFor != nil && input.ConnectionId != 0 {
			if err := e.createPostForItem(tx, item, input.ConnectionId); err != nil {
				return err
			}
		}
		return models.QueuePostEvent(tx, item.WorkspaceId, models.PostReferenceTypeQueueItem, item.ID, models.PostEventActionApproved, item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (e *ApprovalEngine) RejectContent(ctx context.Context, id int, notes string) (*models.ApprovalQueueItem, error) {
	return e.review(ctx, id, models.ApprovalStatusRejected, models.ApprovalActionRejected, models.PostEventActionRejected, notes)
}

func (e *ApprovalEngine) RequestRevision(ctx context.Context, id int, notes string) (*models.ApprovalQueueItem, error) {
	return e.review(ctx, id, models.ApprovalStatusRevisionRequested, models.ApprovalActionRevisionRequested, models.PostEventActionRevisionRequested, notes)
}

func (e *ApprovalEngine) review(ctx context.Context, id int, status models.ApprovalStatus, action models.ApprovalAction, event models.PostEventAction, notes string) (*models.ApprovalQueueItem, error) {
	item, err := models.GetApprovalQueueItem(ctx, id)
	if err != nil {
		return nil, err
	}
	reviewerId, _ := utils.GetUserIdFromContext(ctx)

	err = e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := models.TransitionQueueItem(tx, item, status, action, reviewerId, notes); err != nil {
			return err
		}
		return models.QueuePostEvent(tx, item.WorkspaceId, models.PostReferenceTypeQueueItem, item.ID, event, item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

type BulkApproveFailure struct {
	Id    int    `json:"id"`
	Error string `json:"error"`
}

type BulkApproveResult struct {
	Succeeded []int                `json:"succeeded"`
	Failed    []BulkApproveFailure `json:"failed"`
}

// BulkApprove is best effort. A failure on one id never blocks the rest;
// the caller gets a partition of outcomes.
func (e *ApprovalEngine) BulkApprove(ctx context.Context, ids []int) BulkApproveResult {
	return partitionBulkApprove(ids, func(id int) error {
		_, err := e.ApproveContent(ctx, id, ReviewInput{})
		return err
	})
}

func partitionBulkApprove(ids []int, approve func(int) error) BulkApproveResult {
	result := BulkApproveResult{Succeeded: []int{}, Failed: []BulkApproveFailure{}}
	for _, id := range ids {
		if err := approve(id); err != nil {
			result.Failed = append(result.Failed, BulkApproveFailure{Id: id, Error: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	return result
}

// GetQueueForUser is read-only.
func (e *ApprovalEngine) GetQueueForUser(ctx context.Context, filter models.QueueFilter) ([]*models.ApprovalQueueItem, error) {
	return models.ListApprovalQueue(ctx, filter)
}
