package models

import (
	"encoding/json"
	"time"

	"bitbucket.org/pulsemark/social_backend/config"
	"bitbucket.org/pulsemark/social_backend/utils"
	"gorm.io/gorm"
)

// PostEventRecord is the transactional outbox row for lifecycle events.
// Rows are written in the same transaction as the state change they describe
// and delivered to Pub/Sub after commit by the outbox dispatcher.
type PostEventRecord struct {
	ID            int               `gorm:"primary_key;index:idx_post_event_dispatch,priority:3" json:"id"`
	WorkspaceId   string            `gorm:"size:64;not null;index" json:"workspace_id"`
	OccurredAt    time.Time         `gorm:"index;not null" json:"occurred_at"`
	ReferenceId   int               `gorm:"index" json:"reference_id"`
	ReferenceType PostReferenceType `gorm:"size:40;not null" json:"reference_type"`
	Action        PostEventAction   `gorm:"size:30;not null" json:"action"`
	Payload       []byte            `gorm:"type:blob" json:"payload"`
	// Delivery metadata (publish happens after commit via the dispatcher).
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_post_event_dispatch,priority:1" json:"publish_status"`
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_post_event_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// QueuePostEvent appends an outbox row inside the caller's transaction. The
// event only exists if the surrounding state change commits.
func QueuePostEvent(tx *gorm.DB, workspaceId string, refType PostReferenceType, refId int, action PostEventAction, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	correlationId, _ := utils.GetCorrelationIdFromContext(tx.Statement.Context)
	record := PostEventRecord{
		WorkspaceId:   workspaceId,
		OccurredAt:    time.Now(),
		ReferenceId:   refId,
		ReferenceType: refType,
		Action:        action,
		Payload:       body,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationId,
	}
	return tx.Create(&record).Error
}

func ConvertToPostEventMessage(record PostEventRecord) config.PostEventMessage {
	return config.PostEventMessage{
		ID:            record.ID,
		WorkspaceId:   record.WorkspaceId,
		OccurredAt:    record.OccurredAt,
		ReferenceId:   record.ReferenceId,
		ReferenceType: string(record.ReferenceType),
		Action:        string(record.Action),
		Payload:       record.Payload,
		CorrelationId: record.CorrelationId,
	}
}
