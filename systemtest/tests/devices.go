package tests

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/countersight/counter-cloud/internal/api/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDeviceLifecycle walks a device from enrollment through telemetry
// ingestion to the admin log queries.
func TestDeviceLifecycle(t *testing.T, router *gin.Engine, enrollSecret string) {
	var apiKey, deviceCameraID string

	t.Run("register device", func(t *testing.T) {
		rr := doJSON(router, "POST", "/registerDevice",
			dto.RegisterDeviceRequest{SiteID: "site-lobby", CameraID: "entrance-1"},
			map[string]string{"x-enroll-token": enrollSecret})
		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.RegisterDeviceResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Len(t, resp.DeviceID, 24)
		assert.NotEmpty(t, resp.APIKey)
		apiKey = resp.APIKey
		deviceCameraID = "entrance-1"
	})

	t.Run("register rejects bad token", func(t *testing.T) {
		rr := doJSON(router, "POST", "/registerDevice",
			dto.RegisterDeviceRequest{SiteID: "site-lobby", CameraID: "entrance-2"},
			map[string]string{"x-enroll-token": "not-a-token"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)

		var resp dto.ErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, dto.CodeTokenNotFound, resp.ErrorCode)
	})

	t.Run("report counts", func(t *testing.T) {
		require.NotEmpty(t, apiKey, "enrollment must succeed first")

		rr := doJSON(router, "POST", "/api/detection/counts", gin.H{
			"camera_id":     deviceCameraID,
			"timestamp":     time.Now().Format(time.RFC3339),
			"counts":        gin.H{"person": gin.H{"in": 4, "out": 2}},
			"total_objects": 6,
		}, map[string]string{"X-API-Key": apiKey})
		require.Equal(t, http.StatusOK, rr.Code)

		var resp dto.CountReportResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.True(t, resp.Received)
		assert.NotZero(t, resp.LogID)
	})

	t.Run("report rejected without key", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/detection/counts", gin.H{
			"camera_id": deviceCameraID,
			"timestamp": time.Now().Format(time.RFC3339),
		}, nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("report rejected with future timestamp", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/detection/counts", gin.H{
			"camera_id": deviceCameraID,
			"timestamp": time.Now().Add(time.Hour).Format(time.RFC3339),
		}, map[string]string{"X-API-Key": apiKey})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
