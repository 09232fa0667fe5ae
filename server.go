package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/pulsemark/social_backend/config"
	"bitbucket.org/pulsemark/social_backend/evaluation"
	"bitbucket.org/pulsemark/social_backend/middlewares"
	"bitbucket.org/pulsemark/social_backend/models"
	"bitbucket.org/pulsemark/social_backend/platformsync"
	"bitbucket.org/pulsemark/social_backend/publisher"
	"bitbucket.org/pulsemark/social_backend/utils"
	"bitbucket.org/pulsemark/social_backend/workflow"
	"github.com/bsm/redislock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// PubSubMessage is the push-delivery envelope Pub/Sub wraps around payloads.
type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// contentIngestMessage is what the content generation service publishes for
// each piece of generated content.
type contentIngestMessage struct {
	WorkspaceId     string     `json:"workspace_id"`
	Caption         string     `json:"caption"`
	Hashtags        []string   `json:"hashtags"`
	Platform        string     `json:"platform"`
	ImageURL        string     `json:"image_url"`
	IsProductLaunch bool       `json:"is_product_launch"`
	ConnectionId    int        `json:"connection_id"`
	ScheduledFor    *time.Time `json:"scheduled_for"`
	Timezone        string     `json:"timezone"`
	CorrelationId   string     `json:"correlation_id"`
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func getRedisClient(redisAddress string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
	return client
}

// contentIngestHandler receives generated content pushed by the content
// generation service and runs it through the approval pipeline. Dedupe is by
// Pub/Sub message ID so redeliveries cannot enqueue twice.
func contentIngestHandler(engine *workflow.ApprovalEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg PubSubMessage
		logger := config.GetLogger()

		// Redis lock is a best-effort optimization; the idempotency key is what
		// actually guarantees exactly-once enqueue.
		redisLock := config.GetRedisLock()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "server.go", "contentIngestHandler", "io.ReadAll", nil, err)
			// Malformed request body: ack/drop to avoid infinite retries.
			c.Status(http.StatusNoContent)
			return
		}

		// byte slice unmarshalling handles base64 decoding.
		if err := json.Unmarshal(body, &msg); err != nil {
			config.LogError(logger, "server.go", "contentIngestHandler", "Unmarshal body", body, err)
			c.Status(http.StatusNoContent)
			return
		}

		var m contentIngestMessage
		if err := json.Unmarshal(msg.Message.Data, &m); err != nil {
			config.LogError(logger, "server.go", "contentIngestHandler", "Unmarshal content message", msg.Message.Data, err)
			c.Status(http.StatusNoContent)
			return
		}

		// Basic validation to avoid retry loops on poisoned messages.
		if m.WorkspaceId == "" || m.Caption == "" || m.Platform == "" {
			config.LogError(logger, "server.go", "contentIngestHandler", "Invalid content message (missing required fields)", m, fmt.Errorf("workspace_id/caption/platform required"))
			c.Status(http.StatusNoContent)
			return
		}

		correlationID := m.CorrelationId
		if correlationID == "" {
			correlationID = msg.Message.ID
		}

		if redisLock != nil {
			lock, err := redisLock.Obtain(c.Request.Context(), "lock:"+m.WorkspaceId, 30*time.Second, nil)
			if err != nil {
				logger.WithFields(logrus.Fields{
					"field":        "contentIngestHandler",
					"workspace_id": m.WorkspaceId,
					"message_id":   msg.Message.ID,
				}).Warn("could not obtain redis lock; proceeding without redis lock")
			} else {
				defer func() {
					if releaseErr := lock.Release(c.Request.Context()); releaseErr != nil && releaseErr != redislock.ErrLockNotHeld {
						logger.WithFields(logrus.Fields{
							"field":        "contentIngestHandler",
							"workspace_id": m.WorkspaceId,
							"message_id":   msg.Message.ID,
						}).Warn("failed to release redis lock: " + releaseErr.Error())
					}
				}()
			}
		}

		ctx := utils.SetWorkspaceIdInContext(c.Request.Context(), m.WorkspaceId)
		ctx = utils.SetUserIdInContext(ctx, 0)
		ctx = utils.SetUserNameInContext(ctx, "System")
		ctx = utils.SetCorrelationIdInContext(ctx, correlationID)

		db := config.GetDB().WithContext(ctx)
		skip, err := workflow.BeginIdempotency(db, m.WorkspaceId, "content-ingest", msg.Message.ID)
		if err != nil {
			if errors.Is(err, workflow.ErrIdempotencyInProgress) {
				// Another delivery is mid-flight. Non-2xx tells Pub/Sub to retry.
				c.Status(http.StatusConflict)
				return
			}
			config.LogError(logger, "server.go", "contentIngestHandler", "BeginIdempotency", m, err)
			c.Status(http.StatusInternalServerError)
			return
		}
		if skip {
			c.Status(http.StatusNoContent)
			return
		}

		input := workflow.NewQueueContent{
			Caption:         m.Caption,
			Hashtags:        m.Hashtags,
			Platform:        m.Platform,
			ImageURL:        m.ImageURL,
			IsProductLaunch: m.IsProductLaunch,
			ConnectionId:    m.ConnectionId,
			ScheduledFor:    m.ScheduledFor,
			Timezone:        m.Timezone,
		}
		if _, err := engine.AddToQueue(ctx, &input); err != nil {
			_ = workflow.MarkIdempotencyFailed(db, m.WorkspaceId, "content-ingest", msg.Message.ID, err)
			logger.WithFields(logrus.Fields{
				"field":          "contentIngestHandler",
				"workspace_id":   m.WorkspaceId,
				"platform":       m.Platform,
				"message_id":     msg.Message.ID,
				"correlation_id": correlationID,
			}).Error("content ingest failed: " + err.Error())
			// Non-2xx tells Pub/Sub to retry (and potentially route to DLQ).
			c.Status(http.StatusInternalServerError)
			return
		}
		if err := workflow.MarkIdempotencySucceeded(db, m.WorkspaceId, "content-ingest", msg.Message.ID); err != nil {
			config.LogError(logger, "server.go", "contentIngestHandler", "MarkIdempotencySucceeded", m, err)
		}

		// Success: ack.
		c.Status(http.StatusNoContent)
	}
}

type outboxReplayRequest struct {
	WorkspaceId string `json:"workspace_id"`
	RecordId    int    `json:"record_id"`
}

// outboxReplayHandler re-arms a DEAD or FAILED outbox record so the
// dispatcher picks it up again. Admin only.
func outboxReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isAdmin, ok := utils.GetIsAdminFromContext(c.Request.Context()); !ok || !isAdmin {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req outboxReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.WorkspaceId == "" || req.RecordId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "workspace_id and record_id are required"})
			return
		}

		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "db is nil"})
			return
		}
		now := time.Now().UTC()
		if err := db.WithContext(c.Request.Context()).
			Model(&models.PostEventRecord{}).
			Where("id = ? AND workspace_id = ?", req.RecordId, req.WorkspaceId).
			Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusFailed,
				"next_attempt_at":    &now,
				"locked_at":          nil,
				"locked_by":          nil,
				"last_publish_error": nil,
			}).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"workspace_id":    req.WorkspaceId,
			"record_id":       req.RecordId,
			"publish_status":  models.OutboxPublishStatusFailed,
			"next_attempt_at": now.Format(time.RFC3339Nano),
		})
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Shutdown coordination.
	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Collaborators. Engines are wired to the DB handle after it connects; the
	// readiness gate below returns 503 until then.
	evalClient, err := evaluation.NewClient()
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "evaluation"}).Panic(err.Error())
	}
	registry := publisher.NewRegistry()
	for _, platform := range []models.Platform{
		models.PlatformFacebook,
		models.PlatformInstagram,
		models.PlatformTwitter,
		models.PlatformLinkedIn,
		models.PlatformTikTok,
	} {
		adapter, err := publisher.NewHTTPPublisher(string(platform))
		if err != nil {
			logger.WithFields(logrus.Fields{"field": "publisher", "platform": platform}).
				Warn("platform adapter not configured: " + err.Error())
			continue
		}
		registry.Register(string(platform), adapter)
	}

	subs := workflow.NewSubscriptions()
	approvalEngine := workflow.NewApprovalEngine(nil, logger, evalClient, evalClient.Safety())
	publishEngine := workflow.NewPublishEngine(nil, logger, registry, subs)

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, we return 503 for app endpoints.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on dependency readiness.
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))

	// Optional rate limiting (recommended for production).
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/auth/login", loginHandler())
	r.POST("/pubsub/content", contentIngestHandler(approvalEngine))

	api := r.Group("/", middlewares.RequireAuth())
	api.POST("/auth/logout", logoutHandler())
	api.POST("/approval-queue", addToQueueHandler(approvalEngine))
	api.GET("/approval-queue", listQueueHandler(approvalEngine))
	api.POST("/approval-queue/bulk-approve", bulkApproveHandler(approvalEngine))
	api.POST("/approval-queue/:id/approve", approveHandler(approvalEngine))
	api.POST("/approval-queue/:id/reject", rejectHandler(approvalEngine))
	api.POST("/approval-queue/:id/request-revision", requestRevisionHandler(approvalEngine))
	api.GET("/approval-queue/:id/audit", queueAuditHandler())
	api.GET("/approval-settings", getSettingsHandler())
	api.PUT("/approval-settings", putSettingsHandler())
	api.POST("/connections", createConnectionHandler())
	api.GET("/connections", listConnectionsHandler())
	api.POST("/posts", createPostHandler())
	api.POST("/posts/:id/schedule", schedulePostHandler())
	api.POST("/posts/:id/cancel", cancelPostHandler())
	api.GET("/posts/:id", getPostHandler())
	api.GET("/posts/:id/history", postHistoryHandler())
	api.GET("/posts/:id/outcome", postOutcomeHandler(subs))
	api.GET("/posts/:id/analytics", postAnalyticsHandler())
	api.POST("/uploads/post-image", postImageUploadHandler())
	api.GET("/exports/approval-audit.xlsx", auditExportHandler())
	// Ops tooling (admin only): replay outbox messages that were marked DEAD/FAILED.
	api.POST("/internal/ops/outbox/replay", outboxReplayHandler())

	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	// Now DB is ready; run migrations.
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// IMPORTANT: AutoMigrate can run DDL that blocks tables and causes 504/502 timeouts.
	// Allow disabling migrations on startup (run them as a separate job instead).
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	approvalEngine.DB = db
	publishEngine.DB = db

	// Background workers: outbox dispatcher (publishes AFTER commit), the
	// publish scanner that claims due posts, and the analytics pull.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	go workflow.NewOutboxDispatcher(db, logger).Run(workerCtx)
	if shouldRunPublishScan() {
		go NewPublishScanProcessor(db, logger, publishEngine).Run(workerCtx)
	}
	if platformsync.ShouldRun() {
		go platformsync.NewWorker(db, logger).Run(workerCtx)
	}

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while we're draining.
	cancelWorkers()

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

// Initialize a new RateLimiter instance.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	// Get the IP address or user identifier from the request.
	key := c.ClientIP() // Assuming IP-based rate limiting

	// Check if the key exists in Redis.
	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the key doesn't exist, create it and set expiry.
	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	// If the key exists, get the current count.
	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the count exceeds the limit, return an error response.
	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
