package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/countersight/counter-cloud/internal/api/http/dto"
	"github.com/countersight/counter-cloud/internal/provisioning"
	"github.com/countersight/counter-cloud/internal/telemetry"
	"github.com/gin-gonic/gin"
)

type CamerasHandler struct {
	cameras *provisioning.CameraPgStore
	logs    *telemetry.Store
}

func NewCamerasHandler(cameras *provisioning.CameraPgStore, logs *telemetry.Store) *CamerasHandler {
	return &CamerasHandler{cameras: cameras, logs: logs}
}

// List returns cameras, optionally filtered by site.
// GET /api/v1/cameras?siteId=...
func (h *CamerasHandler) List(c *gin.Context) {
	cameras, err := h.cameras.List(c.Request.Context(), c.Query("siteId"))
	if err != nil {
		slog.Error("Failed to list cameras", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cameras": cameras})
}

// Activate is the activation webhook target.
// POST /api/cameras/activate
func (h *CamerasHandler) Activate(c *gin.Context) {
	var req dto.ActivateCameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := req.Status
	if status == "" {
		status = "online"
	}
	if err := h.cameras.Activate(c.Request.Context(), req.CameraID, req.SiteID, status, time.Now()); err != nil {
		slog.Error("Camera activation failed", "error", err, "camera_id", req.CameraID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "activation failed"})
		return
	}

	slog.Info("Camera activated", "camera_id", req.CameraID, "site_id", req.SiteID)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Logs returns a camera's detection logs in a time range.
// GET /api/v1/cameras/:id/logs?from=...&to=...&limit=...
func (h *CamerasHandler) Logs(c *gin.Context) {
	cameraID := c.Param("id")
	if _, err := h.cameras.Get(c.Request.Context(), cameraID); err != nil {
		if errors.Is(err, provisioning.ErrCameraNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
			return
		}
		slog.Error("Failed to query camera", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	from, to := timeRange(c)
	limit, _ := strconv.Atoi(c.Query("limit"))

	entries, err := h.logs.ListByCamera(c.Request.Context(), cameraID, from, to, limit)
	if err != nil {
		slog.Error("Failed to list detection logs", "error", err, "camera_id", cameraID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": entries})
}

// Stats aggregates a camera's logs over a time range.
// GET /api/v1/cameras/:id/stats?from=...&to=...
func (h *CamerasHandler) Stats(c *gin.Context) {
	cameraID := c.Param("id")
	from, to := timeRange(c)

	stats, err := h.logs.StatsByCamera(c.Request.Context(), cameraID, from, to)
	if err != nil {
		slog.Error("Failed to aggregate detection logs", "error", err, "camera_id", cameraID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// timeRange parses from/to query params, defaulting to the last 24 hours.
func timeRange(c *gin.Context) (time.Time, time.Time) {
	to := time.Now()
	from := to.Add(-24 * time.Hour)
	if raw := c.Query("from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			from = t
		}
	}
	if raw := c.Query("to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			to = t
		}
	}
	return from, to
}
