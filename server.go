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

	"github.com/bsm/redislock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/synerge/order101-backend/config"
	"github.com/synerge/order101-backend/models"
	"github.com/synerge/order101-backend/utils"
	"github.com/synerge/order101-backend/workflow"
)

const defaultPort = "8080"

var validate = validator.New()

// PubSubMessage is the Pub/Sub push envelope.
type PubSubMessage struct {
	Message struct {
		Data       []byte            `json:"data,omitempty"`
		ID         string            `json:"id"`
		Attributes map[string]string `json:"attributes,omitempty"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func resolveActor(c *gin.Context) string {
	actor := strings.TrimSpace(c.GetHeader("x-user-name"))
	if actor == "" {
		actor = "System"
	}
	return actor
}

func shipmentPubSubHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg PubSubMessage
		logger := config.GetLogger()

		// Redis lock is a best-effort optimization.
		// Reliability must not depend on Redis: processing also serializes via MySQL advisory locks.
		redisLock := config.GetRedisLock()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "server.go", "shipmentPubSubHandler", "io.ReadAll", nil, err)
			// Malformed request body: ack/drop to avoid infinite retries.
			c.Status(http.StatusNoContent)
			return
		}

		// byte slice unmarshalling handles base64 decoding.
		if err := json.Unmarshal(body, &msg); err != nil {
			config.LogError(logger, "server.go", "shipmentPubSubHandler", "Unmarshal body", body, err)
			c.Status(http.StatusNoContent)
			return
		}

		var m config.ReplenishmentMessage
		if err := json.Unmarshal(msg.Message.Data, &m); err != nil {
			config.LogError(logger, "server.go", "shipmentPubSubHandler", "Unmarshal pubsub message", msg.Message.Data, err)
			c.Status(http.StatusNoContent)
			return
		}

		// Basic validation to avoid retry loops on poisoned messages.
		if m.ReferenceType == "" || m.ReferenceId <= 0 {
			config.LogError(logger, "server.go", "shipmentPubSubHandler", "Invalid pubsub message (missing required fields)", m, fmt.Errorf("reference_type/reference_id required"))
			c.Status(http.StatusNoContent)
			return
		}

		// Correlation ID propagation: prefer payload correlation_id; fall back to Pub/Sub message ID.
		correlationID := m.CorrelationId
		if correlationID == "" {
			correlationID = msg.Message.ID
		}

		// Best-effort: short redis lock per shipment to reduce in-request contention.
		var lock *redislock.Lock
		if redisLock != nil {
			lock, err = redisLock.Obtain(c.Request.Context(), fmt.Sprintf("shipmentLock:%d", m.ReferenceId), 30*time.Second, nil)
			if err != nil {
				logger.WithFields(logrus.Fields{
					"field":        "shipmentPubSubHandler",
					"reference_id": m.ReferenceId,
					"message_id":   msg.Message.ID,
				}).Warn("could not obtain redis lock; proceeding without redis lock")
				lock = nil
			}
		}
		defer func() {
			if lock == nil {
				return
			}
			if releaseErr := lock.Release(c.Request.Context()); releaseErr != nil {
				logger.WithFields(logrus.Fields{
					"field":        "shipmentPubSubHandler",
					"reference_id": m.ReferenceId,
					"message_id":   msg.Message.ID,
				}).Warn("failed to release redis lock: " + releaseErr.Error())
			}
		}()

		if err := workflow.ProcessShipmentMessage(logger, msg.Message.ID, m); err != nil {
			logger.WithFields(logrus.Fields{
				"field":          "shipmentPubSubHandler",
				"reference_type": m.ReferenceType,
				"reference_id":   m.ReferenceId,
				"message_id":     msg.Message.ID,
				"correlation_id": correlationID,
			}).Error("pubsub processing failed: " + err.Error())
			// Non-2xx tells Pub/Sub to retry (and potentially route to DLQ).
			c.Status(http.StatusInternalServerError)
			return
		}

		// Success: ack.
		c.Status(http.StatusNoContent)
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, utils.ErrorPurchaseNotFound),
		errors.Is(err, utils.ErrorSmartOrderNotFound),
		errors.Is(err, utils.ErrorShipmentNotFound),
		errors.Is(err, utils.ErrorInventoryNotFound),
		errors.Is(err, utils.ErrorForecastNotFound),
		errors.Is(err, utils.ErrorSupplierMappingNotFound),
		errors.Is(err, utils.ErrorRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, utils.ErrorAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, utils.ErrorInvalidStateTransition),
		errors.Is(err, utils.ErrorSubmitNotAllowed),
		errors.Is(err, utils.ErrorUpdateNotAllowed),
		errors.Is(err, utils.ErrorShipmentNotDelivered):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func safetyStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		updated, skipped, err := workflow.RunSafetyStockRecalculation(c.Request.Context(), logger)
		if err != nil {
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": updated, "skipped": skipped})
	}
}

func autoPurchaseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		created, err := workflow.PlanAutoPurchases(c.Request.Context(), logger)
		if err != nil {
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"created": len(created), "purchases": created})
	}
}

type submitPurchaseRequest struct {
	LineEdits map[int]int `json:"line_edits" validate:"required"`
}

func submitAutoPurchaseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		purchaseId, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid purchase id"})
			return
		}
		var req submitPurchaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := validate.Struct(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		purchase, err := models.SubmitAutoPurchase(c.Request.Context(), purchaseId, resolveActor(c), req.LineEdits)
		if err != nil {
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, purchase)
	}
}

type purchaseStatusRequest struct {
	Action models.OrderAction `json:"action" validate:"required,oneof=SUBMIT CONFIRM REJECT"`
}

func purchaseStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		purchaseId, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid purchase id"})
			return
		}
		var req purchaseStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := validate.Struct(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		purchase, err := models.UpdatePurchaseStatus(c.Request.Context(), purchaseId, req.Action, resolveActor(c))
		if err != nil {
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, purchase)
	}
}

func autoPurchaseListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		purchases, err := models.GetAutoPurchases(c.Request.Context())
		if err != nil {
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, purchases)
	}
}

func purchaseDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		purchaseId, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid purchase id"})
			return
		}
		purchase, history, err := models.GetPurchaseDetail(c.Request.Context(), purchaseId)
		if err != nil {
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"purchase": purchase, "history": history})
	}
}

type generateSmartOrdersRequest struct {
	TargetWeek string `json:"target_week" validate:"required"`
}

func generateSmartOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req generateSmartOrdersRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := validate.Struct(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		orders, err := models.GenerateSmartOrders(c.Request.Context(), req.TargetWeek, resolveActor(c))
		if err != nil {
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"created": len(orders), "smart_orders": orders})
	}
}

type submitSmartOrderRequest struct {
	EditedQty *int `json:"edited_qty" validate:"omitempty,gte=0"`
}

func submitSmartOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		smartOrderId, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid smart order id"})
			return
		}
		var req submitSmartOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := validate.Struct(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		order, err := models.SubmitSmartOrder(c.Request.Context(), smartOrderId, resolveActor(c), req.EditedQty)
		if err != nil {
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func decideSmartOrderHandler(action models.OrderAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		smartOrderId, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid smart order id"})
			return
		}
		var (
			order *models.SmartOrder
		)
		switch action {
		case models.OrderActionConfirm:
			order, err = models.ConfirmSmartOrder(c.Request.Context(), smartOrderId, resolveActor(c))
		case models.OrderActionReject:
			order, err = models.RejectSmartOrder(c.Request.Context(), smartOrderId, resolveActor(c))
		}
		if err != nil {
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func smartOrdersForWeekHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := models.GetSmartOrdersForWeek(c.Request.Context(), c.Param("week"))
		if err != nil {
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, orders)
	}
}

func smartOrderSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := models.GetSmartOrderSummary(c.Request.Context(), c.Param("week"))
		if err != nil {
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func advanceShipmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		shipmentId, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid shipment id"})
			return
		}
		shipment, err := models.AdvanceShipment(c.Request.Context(), shipmentId)
		if err != nil {
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, shipment)
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
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
		if config.GetDB() == nil {
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
	r.Use(gin.Recovery())

	r.POST("/pubsub", shipmentPubSubHandler())

	r.POST("/internal/replenishment/safety-stock", safetyStockHandler())
	r.POST("/internal/replenishment/auto-purchase", autoPurchaseHandler())
	r.GET("/internal/purchases/auto", autoPurchaseListHandler())
	r.GET("/internal/purchases/:id", purchaseDetailHandler())
	r.POST("/internal/purchases/:id/submit", submitAutoPurchaseHandler())
	r.POST("/internal/purchases/:id/status", purchaseStatusHandler())
	r.POST("/internal/smart-orders/generate", generateSmartOrdersHandler())
	r.POST("/internal/smart-orders/:id/submit", submitSmartOrderHandler())
	r.POST("/internal/smart-orders/:id/confirm", decideSmartOrderHandler(models.OrderActionConfirm))
	r.POST("/internal/smart-orders/:id/reject", decideSmartOrderHandler(models.OrderActionReject))
	r.GET("/internal/smart-orders/summary/:week", smartOrderSummaryHandler())
	r.GET("/internal/smart-orders/week/:week", smartOrdersForWeekHandler())
	r.POST("/internal/shipments/:id/advance", advanceShipmentHandler())

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

	// Background workers: outbox dispatcher (publishes AFTER commit) and the
	// shipment promotion sweep.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	if config.OutboxDispatcherEnabled() {
		go workflow.NewOutboxDispatcher(db, logger).Run(workerCtx)
	}
	go workflow.RunShipmentSweepLoop(workerCtx, logger)

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<minInt(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

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
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
