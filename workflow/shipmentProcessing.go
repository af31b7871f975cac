package workflow

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/synerge/order101-backend/config"
	"github.com/synerge/order101-backend/models"
	"github.com/synerge/order101-backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProcessShipmentMessage applies one shipment transition event delivered by
// Pub/Sub push. Delivery is at-least-once, so the handler is guarded three
// ways: a per-shipment advisory lock, a durable idempotency key per
// (handler, message), and the write-once flags inside the apply commands.
// Returning an error makes the push endpoint NACK so Pub/Sub retries.
func ProcessShipmentMessage(logger *logrus.Logger, messageId string, msg config.ReplenishmentMessage) error {
	db := config.GetDB()
	if db == nil {
		return fmt.Errorf("db not ready")
	}

	var handlerName string
	switch models.PubSubMessageAction(msg.Action) {
	case models.ActionShipmentInTransit:
		handlerName = "shipment_in_transit"
	case models.ActionShipmentDelivered:
		handlerName = "shipment_delivered"
	default:
		// Not ours; ack without side effects.
		return nil
	}

	shipmentId := msg.ReferenceId

	var applyErr error
	err := db.Transaction(func(tx *gorm.DB) error {
		// Enforce strict per-shipment ordering across instances.
		if err := AcquireShipmentPostingLock(tx, shipmentId); err != nil {
			return err
		}
		// GET_LOCK is connection-scoped, not transaction-scoped: release must
		// run while the tx is still live, before db.Transaction commits or
		// rolls back, or the pooled connection keeps the lock.
		defer ReleaseShipmentPostingLock(tx, shipmentId)

		skip, err := BeginIdempotency(tx, handlerName, messageId)
		if err != nil {
			return err
		}
		if skip {
			logger.WithFields(logrus.Fields{
				"handler":     handlerName,
				"message_id":  messageId,
				"shipment_id": shipmentId,
			}).Info("shipment event already applied; skipping")
			return nil
		}

		if err := applyShipmentEvent(tx, shipmentId, models.PubSubMessageAction(msg.Action)); err != nil {
			applyErr = err
			return err
		}

		return MarkIdempotencySucceeded(tx, handlerName, messageId)
	})
	if err != nil {
		if applyErr != nil {
			markFailed(db, handlerName, messageId, applyErr)
		}
		return err
	}
	return nil
}

// applyShipmentEvent re-derives the shipment state from the event and runs
// the matching inventory command inside the caller's transaction.
func applyShipmentEvent(tx *gorm.DB, shipmentId int, action models.PubSubMessageAction) error {
	var shipment models.Shipment
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&shipment, shipmentId).Error; err != nil {
		return fmt.Errorf("shipment %d not found", shipmentId)
	}

	switch action {
	case models.ActionShipmentInTransit:
		if shipment.ShipmentStatus == models.ShipmentStatusWaiting {
			if err := tx.Model(&shipment).
				Update("shipment_status", models.ShipmentStatusInTransit).Error; err != nil {
				return err
			}
		}
		return models.ApplyShipmentInTransit(tx, shipmentId)
	case models.ActionShipmentDelivered:
		if shipment.ShipmentStatus != models.ShipmentStatusDelivered {
			if err := tx.Model(&shipment).
				Update("shipment_status", models.ShipmentStatusDelivered).Error; err != nil {
				return err
			}
		}
		return models.ApplyShipmentDelivered(tx, shipmentId)
	}
	return nil
}

// markFailed records the failure outside the rolled-back transaction so the
// next retry sees a FAILED key instead of a dangling STARTED one.
func markFailed(db *gorm.DB, handlerName, messageId string, cause error) {
	msg := cause.Error()
	key := models.IdempotencyKey{
		HandlerName: handlerName,
		MessageId:   messageId,
		Status:      models.IdempotencyStatusFailed,
		LastError:   &msg,
	}
	if err := db.Create(&key).Error; err != nil && utils.IsDuplicateKeyError(err) {
		_ = MarkIdempotencyFailed(db, handlerName, messageId, cause)
	}
}
