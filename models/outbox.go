package models

import (
	"encoding/json"
	"time"

	"github.com/synerge/order101-backend/config"
	"gorm.io/gorm"
)

// Outbox publish lifecycle.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// PubSubMessageRecord is the transactional outbox row. State changes enqueue
// their events here inside the same transaction; the dispatcher publishes
// after commit.
type PubSubMessageRecord struct {
	ID            int                 `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	EventDateTime time.Time           `gorm:"index;not null" json:"event_date_time"`
	ReferenceId   int                 `json:"reference_id"`
	ReferenceType ReferenceType       `gorm:"size:30;index" json:"reference_type"`
	Action        PubSubMessageAction `gorm:"size:40" json:"action"`
	Payload       []byte              `gorm:"type:blob" json:"payload"`
	// Publish metadata (publish happens after commit via dispatcher).
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToReplenishmentMessage(record PubSubMessageRecord) config.ReplenishmentMessage {
	return config.ReplenishmentMessage{
		ID:            record.ID,
		EventDateTime: record.EventDateTime,
		ReferenceId:   record.ReferenceId,
		ReferenceType: string(record.ReferenceType),
		Action:        string(record.Action),
		Payload:       record.Payload,
		CorrelationId: record.CorrelationId,
	}
}

// Recipient groups used by the notification payloads.
const (
	RecipientsHQStaff = "HQ_STAFF"
	RecipientsAdmins  = "ADMINS"
)

// NotificationPayload is the contract of the external notification sink.
type NotificationPayload struct {
	Recipients    string        `json:"recipients"`
	ReferenceType ReferenceType `json:"reference_type"`
	ReferenceId   int           `json:"reference_id"`
	Summary       string        `json:"summary"`
}

// SettlementRequestPayload is emitted once when a purchase is confirmed.
type SettlementRequestPayload struct {
	PurchaseId  int    `json:"purchase_id"`
	SupplierId  int    `json:"supplier_id"`
	PoNumber    string `json:"po_number"`
	TotalAmount string `json:"total_amount"`
}

// QueueOutboxMessage writes one outbox row inside the caller's transaction.
func QueueOutboxMessage(tx *gorm.DB, referenceType ReferenceType, referenceId int, action PubSubMessageAction, payload any, correlationId string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	record := PubSubMessageRecord{
		EventDateTime: time.Now(),
		ReferenceId:   referenceId,
		ReferenceType: referenceType,
		Action:        action,
		Payload:       body,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationId,
	}
	return tx.Create(&record).Error
}

// QueueNotification enqueues a notification event; delivery failures never
// block the state transition because publishing is deferred to the
// dispatcher.
func QueueNotification(tx *gorm.DB, recipients string, referenceType ReferenceType, referenceId int, summary string, correlationId string) error {
	payload := NotificationPayload{
		Recipients:    recipients,
		ReferenceType: referenceType,
		ReferenceId:   referenceId,
		Summary:       summary,
	}
	return QueueOutboxMessage(tx, ReferenceTypeNotification, referenceId, ActionNotify, payload, correlationId)
}
