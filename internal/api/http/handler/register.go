package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/countersight/counter-cloud/internal/api/http/dto"
	"github.com/countersight/counter-cloud/internal/enrollment"
	"github.com/gin-gonic/gin"
)

const enrollTokenHeader = "x-enroll-token"

type RegisterHandler struct {
	enrollment *enrollment.Service
}

func NewRegisterHandler(enrollmentService *enrollment.Service) *RegisterHandler {
	return &RegisterHandler{enrollment: enrollmentService}
}

// Register enrolls a device holding an enrollment token.
// POST /registerDevice
func (h *RegisterHandler) Register(c *gin.Context) {
	token := c.GetHeader(enrollTokenHeader)
	if token == "" {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			ErrorCode: dto.CodeMissingToken,
			Message:   "x-enroll-token header is required",
		})
		return
	}

	var req dto.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			ErrorCode: dto.CodeMissingParams,
			Message:   "siteId and cameraId are required",
		})
		return
	}

	result, err := h.enrollment.RegisterDevice(c.Request.Context(), token, req.SiteID, req.CameraID)
	if err != nil {
		status, code := registerError(err)
		if status == http.StatusInternalServerError {
			slog.Error("Device registration failed", "error", err, "site_id", req.SiteID)
		}
		c.JSON(status, dto.ErrorResponse{ErrorCode: code, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.RegisterDeviceResponse{
		OK:       true,
		DeviceID: result.DeviceID,
		APIKey:   result.APIKeyPlaintext,
		TenantID: result.TenantID,
		SiteID:   result.SiteID,
	})
}

func registerError(err error) (int, string) {
	switch {
	case errors.Is(err, enrollment.ErrMissingParams):
		return http.StatusBadRequest, dto.CodeMissingParams
	case errors.Is(err, enrollment.ErrTokenNotFound):
		return http.StatusUnauthorized, dto.CodeTokenNotFound
	case errors.Is(err, enrollment.ErrTokenInactive):
		return http.StatusForbidden, dto.CodeTokenInactive
	case errors.Is(err, enrollment.ErrTokenExpired):
		return http.StatusForbidden, dto.CodeTokenExpired
	case errors.Is(err, enrollment.ErrSiteMismatch):
		return http.StatusForbidden, dto.CodeSiteIDMismatch
	case errors.Is(err, enrollment.ErrTokenExhausted):
		return http.StatusTooManyRequests, dto.CodeTokenMaxUses
	}
	return http.StatusInternalServerError, dto.CodeInternalError
}
