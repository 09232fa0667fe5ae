package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"bitbucket.org/pulsemark/social_backend/config"
	"bitbucket.org/pulsemark/social_backend/models"
	"bitbucket.org/pulsemark/social_backend/utils"
	"bitbucket.org/pulsemark/social_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// statusForError maps domain errors onto HTTP codes. Anything unrecognized is
// a 500; handlers never leak raw driver errors into responses for those.
func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrQueueItemNotFound),
		errors.Is(err, models.ErrPostNotFound),
		errors.Is(err, models.ErrConnectionNotFound),
		errors.Is(err, utils.ErrorRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrQueueItemNotPending),
		errors.Is(err, models.ErrPostNotDraft),
		errors.Is(err, models.ErrPostNotCancellable):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidPlatform),
		errors.Is(err, models.ErrScheduledForRequired),
		errors.Is(err, models.ErrScheduledForInPast):
		return http.StatusBadRequest
	}
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := statusForError(err)
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		c.JSON(status, gin.H{"error": "validation failed", "fields": utils.ProcessValidationErrors(err)})
		return
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// --- auth ---

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}

		user, err := models.GetUserByUsername(c.Request.Context(), req.Username)
		if err != nil || user.IsActive == nil || !*user.IsActive {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if err := utils.ComparePassword(user.PasswordHash, req.Password); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		token, err := utils.JwtGenerate(user.ID, user.WorkspaceId, user.Name, user.Role)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := config.SetRedisValue("Session:"+token, user.Username, 72*time.Hour); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": gin.H{"token": token, "user": user}})
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := utils.GetTokenFromContext(c.Request.Context()); ok && token != "" {
			_ = config.RemoveRedisKey("Session:" + token)
		}
		c.Status(http.StatusNoContent)
	}
}

// --- approval queue ---

func addToQueueHandler(engine *workflow.ApprovalEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input workflow.NewQueueContent
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		item, err := engine.AddToQueue(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": item})
	}
}

func listQueueHandler(engine *workflow.ApprovalEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := models.QueueFilter{
			Status:   models.ApprovalStatus(c.Query("status")),
			Priority: models.PriorityLevel(c.Query("priority")),
			Platform: models.Platform(c.Query("platform")),
		}
		if v := c.Query("from"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
				return
			}
			filter.From = &t
		}
		if v := c.Query("to"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
				return
			}
			filter.To = &t
		}

		items, err := engine.GetQueueForUser(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": items})
	}
}

func approveHandler(engine *workflow.ApprovalEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var input workflow.ReviewInput
		_ = c.ShouldBindJSON(&input)

		item, err := engine.ApproveContent(c.Request.Context(), id, input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": item})
	}
}

func rejectHandler(engine *workflow.ApprovalEngine) gin.HandlerFunc {
	return reviewHandler(engine.RejectContent)
}

func requestRevisionHandler(engine *workflow.ApprovalEngine) gin.HandlerFunc {
	return reviewHandler(engine.RequestRevision)
}

func reviewHandler(fn func(ctx context.Context, id int, notes string) (*models.ApprovalQueueItem, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var input struct {
			Notes string `json:"notes"`
		}
		_ = c.ShouldBindJSON(&input)

		item, err := fn(c.Request.Context(), id, input.Notes)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": item})
	}
}

func bulkApproveHandler(engine *workflow.ApprovalEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Ids []int `json:"ids" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || len(req.Ids) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ids is required"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": engine.BulkApprove(c.Request.Context(), req.Ids)})
	}
}

func queueAuditHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		logs, err := models.ListApprovalAuditLogs(c.Request.Context(), models.AuditLogFilter{QueueItemId: id})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": logs})
	}
}

// --- approval settings ---

func getSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		settings, err := models.GetApprovalSettings(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": settings})
	}
}

func putSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewApprovalSettings
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		settings, err := models.UpsertApprovalSettings(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": settings})
	}
}

// --- social connections ---

type newConnectionRequest struct {
	Platform          string     `json:"platform" binding:"required"`
	AccountName       string     `json:"account_name" binding:"required"`
	ExternalAccountId string     `json:"external_account_id"`
	AccessToken       string     `json:"access_token" binding:"required"`
	TokenExpiresAt    *time.Time `json:"token_expires_at"`
}

func createConnectionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req newConnectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		conn := models.SocialConnection{
			Platform:          models.Platform(req.Platform),
			AccountName:       req.AccountName,
			ExternalAccountId: req.ExternalAccountId,
			TokenExpiresAt:    req.TokenExpiresAt,
		}
		if err := models.CreateSocialConnection(c.Request.Context(), &conn, req.AccessToken); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": conn})
	}
}

func listConnectionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conns, err := models.ListSocialConnections(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": conns})
	}
}

// --- scheduled posts ---

type newPostRequest struct {
	ConnectionId int        `json:"connection_id" binding:"required"`
	Caption      string     `json:"caption" binding:"required"`
	Hashtags     string     `json:"hashtags"`
	ImageURL     string     `json:"image_url"`
	ScheduledFor *time.Time `json:"scheduled_for"`
	Timezone     string     `json:"timezone"`
}

func createPostHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req newPostRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		status := models.PostStatusDraft
		if req.ScheduledFor != nil {
			status = models.PostStatusScheduled
		}
		post := models.ScheduledPost{
			ConnectionId: req.ConnectionId,
			Caption:      req.Caption,
			Hashtags:     req.Hashtags,
			ImageURL:     req.ImageURL,
			ScheduledFor: req.ScheduledFor,
			Timezone:     req.Timezone,
			Status:       status,
		}
		if err := models.CreateScheduledPost(c.Request.Context(), &post); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": post})
	}
}

type scheduleRequest struct {
	ScheduledFor time.Time `json:"scheduled_for" binding:"required"`
	Timezone     string    `json:"timezone"`
}

func schedulePostHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req scheduleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "scheduled_for is required"})
			return
		}
		post, err := models.SchedulePost(c.Request.Context(), id, req.ScheduledFor, req.Timezone)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": post})
	}
}

func cancelPostHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		post, err := models.CancelScheduledPost(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": post})
	}
}

func getPostHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		post, err := models.GetScheduledPost(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": post})
	}
}

func postHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		rows, err := models.ListPostHistory(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
	}
}

// postOutcomeHandler blocks on the publish outcome with a bounded wait. If
// nothing arrives in time it falls back to the current row so callers always
// get the latest known state.
func postOutcomeHandler(subs *workflow.Subscriptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		post, err := models.GetScheduledPost(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}

		switch post.Status {
		case models.PostStatusPublished, models.PostStatusCancelled, models.PostStatusAccountDisconnected:
			c.JSON(http.StatusOK, gin.H{"data": outcomeFromPost(post), "final": true})
			return
		}

		timeout := 25 * time.Second
		if v, err := strconv.Atoi(c.Query("wait_seconds")); err == nil && v > 0 && v <= 60 {
			timeout = time.Duration(v) * time.Second
		}

		if outcome, ok := subs.Wait(c.Request.Context(), id, timeout); ok {
			c.JSON(http.StatusOK, gin.H{"data": outcome, "final": !outcome.WillRetry})
			return
		}

		post, err = models.GetScheduledPost(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": outcomeFromPost(post), "final": false})
	}
}

func outcomeFromPost(post *models.ScheduledPost) workflow.PublishOutcome {
	return workflow.PublishOutcome{
		PostId:          post.ID,
		Status:          post.Status,
		PlatformPostId:  post.PlatformPostId,
		PlatformPostUrl: post.PlatformPostUrl,
		FailureReason:   post.FailureReason,
		ErrorMessage:    post.ErrorMessage,
		WillRetry:       post.NextRetryAt != nil,
	}
}

func postAnalyticsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		rows, err := models.ListPostAnalytics(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows})
	}
}
