package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/countersight/counter-cloud/internal/api/http/middleware"
	"github.com/countersight/counter-cloud/internal/detection"
	"github.com/countersight/counter-cloud/internal/provisioning"
	"github.com/gin-gonic/gin"
)

type DetectionHandler struct {
	controller *detection.Controller
}

func NewDetectionHandler(controller *detection.Controller) *DetectionHandler {
	return &DetectionHandler{controller: controller}
}

// Start proxies a detection start to the device agent.
// POST /api/v1/cameras/:id/detection/start
func (h *DetectionHandler) Start(c *gin.Context) {
	resp, err := h.controller.Start(c.Request.Context(),
		c.GetString(middleware.UserIDKey), middleware.RoleFromContext(c), c.Param("id"))
	h.reply(c, resp, err)
}

// Stop proxies a detection stop to the device agent.
// POST /api/v1/cameras/:id/detection/stop
func (h *DetectionHandler) Stop(c *gin.Context) {
	resp, err := h.controller.Stop(c.Request.Context(),
		c.GetString(middleware.UserIDKey), middleware.RoleFromContext(c), c.Param("id"))
	h.reply(c, resp, err)
}

// Status reads the agent's detection status.
// GET /api/v1/cameras/:id/detection/status
func (h *DetectionHandler) Status(c *gin.Context) {
	resp, err := h.controller.Status(c.Request.Context(), c.Param("id"))
	h.reply(c, resp, err)
}

// Health probes the camera's Raspberry Pi, failing soft to offline.
// GET /api/v1/rpi/health?cameraId=...
func (h *DetectionHandler) Health(c *gin.Context) {
	cameraID := c.Query("cameraId")
	if cameraID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cameraId is required"})
		return
	}

	resp, err := h.controller.Health(c.Request.Context(), cameraID)
	if err != nil {
		if errors.Is(err, provisioning.ErrCameraNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
			return
		}
		slog.Error("RPi health check failed", "error", err, "camera_id", cameraID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *DetectionHandler) reply(c *gin.Context, resp detection.AgentResponse, err error) {
	if err != nil {
		switch {
		case errors.Is(err, provisioning.ErrCameraNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "camera not found"})
		case errors.Is(err, detection.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		case errors.Is(err, detection.ErrNoAgentAddress):
			c.JSON(http.StatusConflict, gin.H{"error": "camera has no agent address"})
		case errors.Is(err, detection.ErrAgentUnreachable):
			c.JSON(http.StatusBadGateway, gin.H{"error": "device agent unreachable"})
		default:
			slog.Error("Detection control failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	c.JSON(http.StatusOK, resp)
}
