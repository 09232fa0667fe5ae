package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"bitbucket.org/pulsemark/social_backend/config"
	"bitbucket.org/pulsemark/social_backend/utils"
	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxUploadSizeBytes int64 = 5 * 1024 * 1024

// Feed widths the platforms render at; anything wider is wasted bytes.
const postImageMaxWidth = 1080
const thumbnailWidth = 200

var imageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

type uploadImageResponse struct {
	ImageURL     string `json:"image_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	ObjectKey    string `json:"object_key"`
}

// postImageUploadHandler takes a multipart image, normalizes it for feed
// delivery (max width resize plus a thumbnail) and stores both in GCS under
// the caller's workspace prefix.
func postImageUploadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		workspaceId, ok := utils.GetWorkspaceIdFromContext(c.Request.Context())
		if !ok || workspaceId == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		file, header, err := c.Request.FormFile("image")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
			return
		}
		defer file.Close()

		if header.Size > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
			return
		}
		contentType := header.Header.Get("Content-Type")
		if !imageMimeTypes[contentType] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image type"})
			return
		}

		data, err := io.ReadAll(io.LimitReader(file, maxUploadSizeBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read image"})
			return
		}
		if int64(len(data)) > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
			return
		}

		img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is not a decodable image"})
			return
		}
		if img.Bounds().Dx() > postImageMaxWidth {
			img = imaging.Resize(img, postImageMaxWidth, 0, imaging.Lanczos)
		}
		thumbnail := imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)

		var imgBuf, thumbBuf bytes.Buffer
		if err := imaging.Encode(&imgBuf, img, imaging.JPEG); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode image"})
			return
		}
		if err := imaging.Encode(&thumbBuf, thumbnail, imaging.JPEG); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode thumbnail"})
			return
		}

		objectKey := path.Join(workspaceId, "post-images", uuid.New().String()+".jpg")
		thumbnailKey := path.Join(path.Dir(objectKey), "thumbnails", path.Base(objectKey))

		ctx := c.Request.Context()
		imageURL, err := utils.UploadObjectToGCS(ctx, objectKey, "image/jpeg", &imgBuf)
		if err != nil {
			logUploadError(logger, err, requestIDFromHeaders(c))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store image"})
			return
		}
		thumbnailURL, err := utils.UploadObjectToGCS(ctx, thumbnailKey, "image/jpeg", &thumbBuf)
		if err != nil {
			logUploadError(logger, err, requestIDFromHeaders(c))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store thumbnail"})
			return
		}

		logger.WithFields(logrus.Fields{
			"workspace_id": workspaceId,
			"object_key":   objectKey,
			"size":         len(data),
		}).Info("[upload.post-image]")

		c.JSON(http.StatusOK, gin.H{"data": uploadImageResponse{
			ImageURL:     imageURL,
			ThumbnailURL: thumbnailURL,
			ObjectKey:    objectKey,
		}})
	}
}

func logUploadError(logger *logrus.Logger, err error, requestID string) {
	logger.WithFields(logrus.Fields{
		"error":      err.Error(),
		"request_id": requestID,
	}).Error("[upload.error]")
}

func requestIDFromHeaders(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader("X-Correlation-Id")); id != "" {
		return id
	}
	if id := strings.TrimSpace(c.GetHeader("X-Request-Id")); id != "" {
		return id
	}
	return fmt.Sprintf("upload-%d", time.Now().UnixNano())
}
