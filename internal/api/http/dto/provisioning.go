package dto

import "time"

type GenerateTokenRequest struct {
	SiteID        string `json:"siteId" binding:"required"`
	CameraName    string `json:"cameraName" binding:"required"`
	ExpiresInDays int    `json:"expiresInDays"`
}

type GenerateTokenResponse struct {
	Token      string    `json:"token"`
	CameraName string    `json:"cameraName"`
	SiteID     string    `json:"siteId"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type ProvisionCameraRequest struct {
	Token         string `json:"token" binding:"required"`
	MACAddress    string `json:"macAddress"`
	SerialNumber  string `json:"serialNumber"`
	RaspberryPiIP string `json:"raspberryPiIp"`
}

type ProvisionCameraResponse struct {
	Success bool `json:"success"`
	Config  any  `json:"config"`
}

// ProvisionErrorResponse is the error envelope for the device-facing
// provisioning endpoints.
type ProvisionErrorResponse struct {
	Success   bool   `json:"success"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

// Error codes returned by the camera provisioning endpoints.
const (
	CodeInvalidToken = "INVALID_TOKEN"
	CodeTokenUsed    = "TOKEN_USED"
)

// TokenInfoRequest is the POST body form of the token lookup; the query
// param takes precedence when both are present.
type TokenInfoRequest struct {
	Token string `json:"token"`
}

type PendingCameraReport struct {
	DeviceID     string         `json:"deviceId" binding:"required"`
	MACAddress   string         `json:"macAddress"`
	IPAddress    string         `json:"ipAddress"`
	HardwareInfo map[string]any `json:"hardwareInfo"`
}

type ApproveCameraRequest struct {
	Name   string `json:"name" binding:"required"`
	SiteID string `json:"siteId" binding:"required"`
}

type ApproveCameraResponse struct {
	CameraID    string `json:"cameraId"`
	Name        string `json:"name"`
	SiteID      string `json:"siteId"`
	DeviceToken string `json:"deviceToken"` // plaintext, returned exactly once
}

type ActivateCameraRequest struct {
	CameraID string `json:"camera_id" binding:"required"`
	SiteID   string `json:"site_id" binding:"required"`
	Status   string `json:"status"`
}

type CreateSiteRequest struct {
	ID         string `json:"id" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Location   string `json:"location"`
	SubadminID string `json:"subadminId"`
}
