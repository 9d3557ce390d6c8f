package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/countersight/counter-cloud/internal/api/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestProvisioningFlow walks the named-camera flow: site creation, token
// generation, public token-info, redemption, and single-use enforcement.
func TestProvisioningFlow(t *testing.T, router *gin.Engine) {
	adminToken := loginAdmin(t, router)

	rr := doJSON(router, "POST", "/api/v1/sites",
		dto.CreateSiteRequest{ID: "site-mall", Name: "Mall"}, bearer(adminToken))
	require.Equal(t, http.StatusCreated, rr.Code)

	var token dto.GenerateTokenResponse
	t.Run("generate token", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/v1/provisioning-tokens",
			dto.GenerateTokenRequest{SiteID: "site-mall", CameraName: "Food court"},
			bearer(adminToken))
		require.Equal(t, http.StatusCreated, rr.Code)
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &token))
		assert.Contains(t, token.Token, "PT_")
	})

	t.Run("token info is public", func(t *testing.T) {
		rr := doJSON(router, "GET", "/token-info?token="+token.Token, nil, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Food court")
		assert.Contains(t, rr.Body.String(), `"valid":true`)
	})

	t.Run("token info accepts body", func(t *testing.T) {
		rr := doJSON(router, "POST", "/token-info", dto.TokenInfoRequest{Token: token.Token}, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"valid":true`)
	})

	t.Run("provision camera", func(t *testing.T) {
		rr := doJSON(router, "POST", "/provisionCamera",
			dto.ProvisionCameraRequest{Token: token.Token, RaspberryPiIP: "10.0.0.7"}, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "CAM_")
		assert.Contains(t, rr.Body.String(), "DEV_")
	})

	t.Run("token is single use", func(t *testing.T) {
		rr := doJSON(router, "POST", "/provisionCamera",
			dto.ProvisionCameraRequest{Token: token.Token}, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), dto.CodeTokenUsed)
	})

	t.Run("pending approval flow", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/cameras/pending",
			dto.PendingCameraReport{DeviceID: "rpi-42", MACAddress: "aa:bb:cc:dd:ee:ff"}, nil)
		require.Equal(t, http.StatusAccepted, rr.Code)

		rr = doJSON(router, "GET", "/api/v1/pending-cameras", nil, bearer(adminToken))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "rpi-42")

		rr = doJSON(router, "POST", "/api/v1/pending-cameras/rpi-42/approve",
			dto.ApproveCameraRequest{Name: "Back door", SiteID: "site-mall"}, bearer(adminToken))
		require.Equal(t, http.StatusCreated, rr.Code)

		var resp dto.ApproveCameraResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Contains(t, resp.DeviceToken, "DEV_")

		// The pending row is gone after approval.
		rr = doJSON(router, "GET", "/api/v1/pending-cameras", nil, bearer(adminToken))
		assert.NotContains(t, rr.Body.String(), "rpi-42")
	})

	t.Run("cameras listed", func(t *testing.T) {
		rr := doJSON(router, "GET", "/api/v1/cameras?siteId=site-mall", nil, bearer(adminToken))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Food court")
		assert.Contains(t, rr.Body.String(), "Back door")
	})
}

// TestActivationWebhook exercises the bearer-token webhook.
func TestActivationWebhook(t *testing.T, router *gin.Engine, webhookToken string) {
	t.Run("rejects without token", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/cameras/activate",
			dto.ActivateCameraRequest{CameraID: "CAM_hook", SiteID: "site-mall"}, nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("activates with token", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/cameras/activate",
			dto.ActivateCameraRequest{CameraID: "CAM_hook", SiteID: "site-mall"},
			bearer(webhookToken))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "true")
	})
}
