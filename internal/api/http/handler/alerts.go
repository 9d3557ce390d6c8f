package handler

import (
	"log/slog"
	"net/http"

	"github.com/countersight/counter-cloud/internal/alerts"
	"github.com/gin-gonic/gin"
)

type AlertsHandler struct {
	rules *alerts.Store
}

func NewAlertsHandler(rules *alerts.Store) *AlertsHandler {
	return &AlertsHandler{rules: rules}
}

type createRuleRequest struct {
	Name            string   `json:"name" binding:"required"`
	SiteID          string   `json:"siteId" binding:"required"`
	Cameras         []string `json:"cameras"`
	Threshold       int      `json:"threshold" binding:"required,min=1"`
	CooldownMinutes int      `json:"cooldownMinutes"`
}

// Create registers an alert rule.
// POST /api/v1/alert-rules
func (h *AlertsHandler) Create(c *gin.Context) {
	var req createRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cooldown := req.CooldownMinutes
	if cooldown <= 0 {
		cooldown = 30
	}
	id, err := h.rules.Create(c.Request.Context(), alerts.Rule{
		Name:            req.Name,
		SiteID:          req.SiteID,
		Cameras:         req.Cameras,
		Threshold:       req.Threshold,
		CooldownMinutes: cooldown,
		Enabled:         true,
	})
	if err != nil {
		slog.Error("Failed to create alert rule", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create rule"})
		return
	}

	slog.Info("Alert rule created", "rule_id", id, "site_id", req.SiteID, "threshold", req.Threshold)
	c.JSON(http.StatusCreated, gin.H{"id": id})
}
