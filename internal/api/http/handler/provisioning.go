package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/countersight/counter-cloud/internal/api/http/dto"
	"github.com/countersight/counter-cloud/internal/api/http/middleware"
	"github.com/countersight/counter-cloud/internal/provisioning"
	"github.com/gin-gonic/gin"
)

type ProvisioningHandler struct {
	provisioning *provisioning.Service
	sites        *provisioning.SitePgStore
}

func NewProvisioningHandler(service *provisioning.Service, sites *provisioning.SitePgStore) *ProvisioningHandler {
	return &ProvisioningHandler{provisioning: service, sites: sites}
}

// GenerateToken mints a provisioning token for a named camera.
// POST /api/v1/provisioning-tokens
func (h *ProvisioningHandler) GenerateToken(c *gin.Context) {
	var req dto.GenerateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ttl := time.Duration(req.ExpiresInDays) * 24 * time.Hour
	token, err := h.provisioning.GenerateToken(c.Request.Context(),
		c.GetString(middleware.UserIDKey), middleware.RoleFromContext(c),
		req.SiteID, req.CameraName, ttl)
	if err != nil {
		switch {
		case errors.Is(err, provisioning.ErrSiteNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "site not found"})
		case errors.Is(err, provisioning.ErrNotSiteOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "site is not assigned to you"})
		case errors.Is(err, provisioning.ErrMissingCameraName):
			c.JSON(http.StatusBadRequest, gin.H{"error": "camera name is required"})
		default:
			slog.Error("Failed to generate provisioning token", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		}
		return
	}

	c.JSON(http.StatusCreated, dto.GenerateTokenResponse{
		Token:      token.Token,
		CameraName: token.CameraName,
		SiteID:     token.SiteID,
		ExpiresAt:  token.ExpiresAt,
	})
}

// TokenInfo is the public pre-redemption view. The token arrives as a
// query param or, on POST, in the JSON body.
// GET|POST /token-info
func (h *ProvisioningHandler) TokenInfo(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		var req dto.TokenInfoRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			token = req.Token
		}
	}
	if token == "" {
		c.JSON(http.StatusBadRequest, dto.ProvisionErrorResponse{
			ErrorCode: dto.CodeMissingParams,
			Message:   "token is required",
		})
		return
	}

	info, err := h.provisioning.Info(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, provisioning.ErrTokenNotFound) {
			c.JSON(http.StatusNotFound, dto.ProvisionErrorResponse{
				ErrorCode: dto.CodeTokenNotFound,
				Message:   "token not found",
			})
			return
		}
		slog.Error("Failed to look up provisioning token", "error", err)
		c.JSON(http.StatusInternalServerError, dto.ProvisionErrorResponse{
			ErrorCode: dto.CodeInternalError,
			Message:   "internal error",
		})
		return
	}
	c.JSON(http.StatusOK, info)
}

// ProvisionCamera redeems a token from the device agent. Used and expired
// tokens are client errors, not conflicts; agents retry on anything else.
// POST /provisionCamera
func (h *ProvisioningHandler) ProvisionCamera(c *gin.Context) {
	var req dto.ProvisionCameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ProvisionErrorResponse{
			ErrorCode: dto.CodeMissingParams,
			Message:   "token is required",
		})
		return
	}

	config, err := h.provisioning.ProvisionCamera(c.Request.Context(), req.Token, provisioning.HardwareDetails{
		MACAddress:    req.MACAddress,
		SerialNumber:  req.SerialNumber,
		RaspberryPiIP: req.RaspberryPiIP,
	})
	if err != nil {
		status, code, message := provisionError(err)
		if status == http.StatusInternalServerError {
			slog.Error("Camera provisioning failed", "error", err)
		}
		c.JSON(status, dto.ProvisionErrorResponse{ErrorCode: code, Message: message})
		return
	}

	c.JSON(http.StatusOK, dto.ProvisionCameraResponse{Success: true, Config: config})
}

func provisionError(err error) (int, string, string) {
	switch {
	case errors.Is(err, provisioning.ErrBadTokenFormat):
		return http.StatusBadRequest, dto.CodeInvalidToken, "malformed token"
	case errors.Is(err, provisioning.ErrTokenNotFound):
		return http.StatusNotFound, dto.CodeTokenNotFound, "token not found"
	case errors.Is(err, provisioning.ErrTokenUsed):
		return http.StatusBadRequest, dto.CodeTokenUsed, "token already used"
	case errors.Is(err, provisioning.ErrTokenExpired):
		return http.StatusBadRequest, dto.CodeTokenExpired, "token has expired"
	}
	return http.StatusInternalServerError, dto.CodeInternalError, "provisioning failed"
}

// ReportPending records an unauthenticated device self-report.
// POST /api/cameras/pending
func (h *ProvisioningHandler) ReportPending(c *gin.Context) {
	var req dto.PendingCameraReport
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "deviceId is required"})
		return
	}

	err := h.provisioning.ReportPending(c.Request.Context(), provisioning.PendingCamera{
		DeviceID:     req.DeviceID,
		MACAddress:   req.MACAddress,
		IPAddress:    req.IPAddress,
		HardwareInfo: req.HardwareInfo,
	})
	if err != nil {
		slog.Error("Failed to record pending camera", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "pending"})
}

// ListPending returns devices awaiting review.
// GET /api/v1/pending-cameras
func (h *ProvisioningHandler) ListPending(c *gin.Context) {
	pending, err := h.provisioning.ListPending(c.Request.Context())
	if err != nil {
		slog.Error("Failed to list pending cameras", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": pending})
}

// Approve turns a pending device into an active camera.
// POST /api/v1/pending-cameras/:id/approve
func (h *ProvisioningHandler) Approve(c *gin.Context) {
	var req dto.ApproveCameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.provisioning.ApprovePending(c.Request.Context(),
		c.Param("id"), req.Name, req.SiteID, c.GetString(middleware.UserIDKey))
	if err != nil {
		switch {
		case errors.Is(err, provisioning.ErrPendingNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "pending camera not found"})
		case errors.Is(err, provisioning.ErrSiteNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "site not found"})
		case errors.Is(err, provisioning.ErrMissingCameraName):
			c.JSON(http.StatusBadRequest, gin.H{"error": "camera name is required"})
		default:
			slog.Error("Failed to approve pending camera", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusCreated, dto.ApproveCameraResponse{
		CameraID:    result.Camera.ID,
		Name:        result.Camera.Name,
		SiteID:      result.Camera.SiteID,
		DeviceToken: result.DeviceToken,
	})
}

// Reject discards a pending self-report.
// DELETE /api/v1/pending-cameras/:id
func (h *ProvisioningHandler) Reject(c *gin.Context) {
	if err := h.provisioning.RejectPending(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, provisioning.ErrPendingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "pending camera not found"})
			return
		}
		slog.Error("Failed to reject pending camera", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "pending camera rejected"})
}

// CreateSite registers a site.
// POST /api/v1/sites
func (h *ProvisioningHandler) CreateSite(c *gin.Context) {
	var req dto.CreateSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.sites.Create(c.Request.Context(), provisioning.Site{
		ID:         req.ID,
		Name:       req.Name,
		Location:   req.Location,
		SubadminID: req.SubadminID,
	})
	if err != nil {
		slog.Error("Failed to create site", "error", err, "site_id", req.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create site"})
		return
	}

	slog.Info("Site created", "site_id", req.ID)
	c.JSON(http.StatusCreated, gin.H{"id": req.ID, "name": req.Name})
}
