package dto

// Error codes returned by the device registration endpoint.
const (
	CodeMissingToken   = "MISSING_TOKEN"
	CodeMissingParams  = "MISSING_PARAMS"
	CodeTokenNotFound  = "TOKEN_NOT_FOUND"
	CodeTokenInactive  = "TOKEN_INACTIVE"
	CodeTokenExpired   = "TOKEN_EXPIRED"
	CodeSiteIDMismatch = "SITE_ID_MISMATCH"
	CodeTokenMaxUses   = "TOKEN_MAX_USES_EXCEEDED"
	CodeInternalError  = "INTERNAL_ERROR"
)

// ErrorResponse is the error envelope shared by the device-facing endpoints.
type ErrorResponse struct {
	OK        bool   `json:"ok"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

type RegisterDeviceRequest struct {
	SiteID   string `json:"siteId" binding:"required"`
	CameraID string `json:"cameraId" binding:"required"`
}

type RegisterDeviceResponse struct {
	OK       bool   `json:"ok"`
	DeviceID string `json:"deviceId"`
	APIKey   string `json:"apiKey"` // plaintext, returned exactly once
	TenantID string `json:"tenantId"`
	SiteID   string `json:"siteId"`
}
