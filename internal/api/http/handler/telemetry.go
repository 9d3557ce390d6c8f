package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/countersight/counter-cloud/internal/api/http/dto"
	"github.com/countersight/counter-cloud/internal/api/http/middleware"
	"github.com/countersight/counter-cloud/internal/telemetry"
	"github.com/gin-gonic/gin"
)

type TelemetryHandler struct {
	pipeline *telemetry.Pipeline
}

func NewTelemetryHandler(pipeline *telemetry.Pipeline) *TelemetryHandler {
	return &TelemetryHandler{pipeline: pipeline}
}

// ReportCounts ingests one telemetry report from an authenticated device.
// POST /api/detection/counts
func (h *TelemetryHandler) ReportCounts(c *gin.Context) {
	var req dto.CountReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			ErrorCode: dto.CodeMissingParams,
			Message:   err.Error(),
		})
		return
	}

	ts, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			ErrorCode: dto.CodeMissingParams,
			Message:   "timestamp must be RFC 3339",
		})
		return
	}

	result, err := h.pipeline.Ingest(c.Request.Context(), c.GetString(middleware.SiteIDKey), telemetry.CountReport{
		CameraID:        req.CameraID,
		Timestamp:       ts,
		Counts:          req.Counts,
		TotalObjects:    req.TotalObjects,
		FramesProcessed: req.FramesProcessed,
		FPS:             req.FPS,
		RuntimeSeconds:  req.RuntimeSeconds,
		SystemHealth:    req.SystemHealth,
		DetectorStatus:  req.DetectorStatus,
	})
	if err != nil {
		if errors.Is(err, telemetry.ErrMissingCameraID) ||
			errors.Is(err, telemetry.ErrMissingTimestamp) ||
			errors.Is(err, telemetry.ErrFutureTimestamp) {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				ErrorCode: dto.CodeMissingParams,
				Message:   err.Error(),
			})
			return
		}
		slog.Error("Telemetry ingest failed", "error", err, "camera_id", req.CameraID)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			ErrorCode: dto.CodeInternalError,
			Message:   "failed to persist report",
		})
		return
	}

	c.JSON(http.StatusOK, dto.CountReportResponse{
		Success:   true,
		Received:  true,
		LogID:     result.LogID,
		Anomalies: result.Anomalies,
	})
}
