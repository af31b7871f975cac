package workflow

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/synerge/order101-backend/config"
	"github.com/synerge/order101-backend/models"
	"go.opentelemetry.io/otel"
)

// AdvanceShipments promotes every shipment that has crossed its time
// threshold by one step, applying inventory effects inside each shipment's
// own transaction. One failing shipment never aborts the sweep.
func AdvanceShipments(ctx context.Context, logger *logrus.Logger) (advanced int, err error) {
	tracer := otel.Tracer("workflow")
	ctx, span := tracer.Start(ctx, "AdvanceShipments")
	defer span.End()

	ids, err := models.FindShipmentsDueForPromotion(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		if _, err := models.AdvanceShipment(ctx, id); err != nil {
			config.LogError(logger, "shipmentSweep.go", "AdvanceShipments", "advance shipment", id, err)
			continue
		}
		advanced++
	}

	if advanced > 0 {
		logger.WithFields(logrus.Fields{
			"candidates": len(ids),
			"advanced":   advanced,
		}).Info("shipment sweep finished")
	}
	return advanced, nil
}

// RunShipmentSweepLoop runs AdvanceShipments on a fixed interval until the
// context is cancelled.
func RunShipmentSweepLoop(ctx context.Context, logger *logrus.Logger) {
	ticker := time.NewTicker(config.ShipmentSweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := AdvanceShipments(ctx, logger); err != nil {
				config.LogError(logger, "shipmentSweep.go", "RunShipmentSweepLoop", "sweep run", nil, err)
			}
		}
	}
}
