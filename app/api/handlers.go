package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Kanet1105/linkdrive/app/database"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

func NewHandler(store database.DeliveryStore, scheduler SchedulerInterface, version string) *Handler {
	return &Handler{
		store:     store,
		scheduler: scheduler,
		version:   version,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   h.version,
		"scheduler": h.scheduler.Snapshot(),
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	total, succeeded, failed, err := h.store.GetDeliveryStats(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "get_delivery_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"total":     total,
		"succeeded": succeeded,
		"failed":    failed,
	})
}

func (h *Handler) APIListDeliveries(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = min(parsed, maxListLimit)
	}

	deliveries, err := h.store.ListDeliveries(c.Request.Context(), limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_deliveries", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"deliveries": deliveries,
		"total":      len(deliveries),
	})
}

func (h *Handler) APIGetDelivery(c *gin.Context) {
	periodKey := c.Param("period")

	delivery, err := h.store.GetDelivery(c.Request.Context(), periodKey)
	if err != nil {
		slog.Error("Database error", "operation", "get_delivery", "period", periodKey, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if delivery == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No delivery recorded for period"})
		return
	}

	c.JSON(http.StatusOK, delivery)
}

// APITriggerDigest runs a digest cycle for the current period right away.
// A period that already has a recorded outcome reports "skipped".
func (h *Handler) APITriggerDigest(c *gin.Context) {
	outcome, err := h.scheduler.RunOnce(c.Request.Context(), time.Now())
	if err != nil {
		slog.Error("Manual digest trigger failed", "outcome", string(outcome), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"outcome": string(outcome),
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"outcome": string(outcome)})
}
