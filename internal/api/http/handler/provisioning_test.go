package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/countersight/counter-cloud/internal/api/http/dto"
	"github.com/countersight/counter-cloud/internal/provisioning"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvTokens struct {
	tokens map[string]*provisioning.Token
}

func (f *fakeProvTokens) Create(ctx context.Context, t provisioning.Token) error {
	f.tokens[t.Token] = &t
	return nil
}

func (f *fakeProvTokens) Get(ctx context.Context, token string) (provisioning.Token, error) {
	t, ok := f.tokens[token]
	if !ok {
		return provisioning.Token{}, provisioning.ErrTokenNotFound
	}
	return *t, nil
}

func (f *fakeProvTokens) MarkUsed(ctx context.Context, token, cameraID string, usedAt time.Time) error {
	t, ok := f.tokens[token]
	if !ok {
		return provisioning.ErrTokenNotFound
	}
	if t.Status != provisioning.TokenStatusPending {
		return provisioning.ErrTokenUsed
	}
	t.Status = provisioning.TokenStatusUsed
	t.AssignedCameraID = cameraID
	t.UsedAt = &usedAt
	return nil
}

func (f *fakeProvTokens) MarkExpired(ctx context.Context, token string) error {
	if t, ok := f.tokens[token]; ok {
		t.Status = provisioning.TokenStatusExpired
	}
	return nil
}

type fakeProvCameras struct{}

func (fakeProvCameras) Insert(ctx context.Context, c provisioning.Camera) error { return nil }

type fakeProvPending struct{}

func (fakeProvPending) Upsert(ctx context.Context, p provisioning.PendingCamera) error { return nil }

func (fakeProvPending) Get(ctx context.Context, deviceID string) (provisioning.PendingCamera, error) {
	return provisioning.PendingCamera{}, provisioning.ErrPendingNotFound
}

func (fakeProvPending) List(ctx context.Context) ([]provisioning.PendingCamera, error) {
	return nil, nil
}

func (fakeProvPending) Delete(ctx context.Context, deviceID string) error {
	return provisioning.ErrPendingNotFound
}

type fakeProvSites struct{}

func (fakeProvSites) Get(ctx context.Context, id string) (provisioning.Site, error) {
	return provisioning.Site{ID: id}, nil
}

func (fakeProvSites) AppendCamera(ctx context.Context, siteID, cameraID string) error { return nil }

func setupProvisioningRouter(tokens *fakeProvTokens) *gin.Engine {
	svc := provisioning.NewService(tokens, fakeProvCameras{}, fakeProvPending{}, fakeProvSites{})
	h := NewProvisioningHandler(svc, nil)
	r := gin.New()
	r.GET("/token-info", h.TokenInfo)
	r.POST("/token-info", h.TokenInfo)
	r.POST("/provisionCamera", h.ProvisionCamera)
	return r
}

func seedProvToken(status string, expiresAt time.Time) (*fakeProvTokens, string) {
	raw := "PT_c0ffee00c0ffee00"
	return &fakeProvTokens{tokens: map[string]*provisioning.Token{
		raw: {
			Token:      raw,
			CameraName: "Food court",
			SiteID:     "site1",
			Status:     status,
			ExpiresAt:  expiresAt,
		},
	}}, raw
}

func doProvJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTokenInfoQueryParam(t *testing.T) {
	tokens, raw := seedProvToken(provisioning.TokenStatusPending, time.Now().Add(time.Hour))
	r := setupProvisioningRouter(tokens)

	w := doProvJSON(r, "GET", "/token-info?token="+raw, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":true`)
	assert.Contains(t, w.Body.String(), "Food court")
}

func TestTokenInfoBodyParam(t *testing.T) {
	tokens, raw := seedProvToken(provisioning.TokenStatusPending, time.Now().Add(time.Hour))
	r := setupProvisioningRouter(tokens)

	w := doProvJSON(r, "POST", "/token-info", dto.TokenInfoRequest{Token: raw})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":true`)
}

func TestTokenInfoMissingToken(t *testing.T) {
	tokens, _ := seedProvToken(provisioning.TokenStatusPending, time.Now().Add(time.Hour))
	r := setupProvisioningRouter(tokens)

	w := doProvJSON(r, "POST", "/token-info", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp dto.ProvisionErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, dto.CodeMissingParams, resp.ErrorCode)
}

func TestProvisionCamera(t *testing.T) {
	tokens, raw := seedProvToken(provisioning.TokenStatusPending, time.Now().Add(time.Hour))
	r := setupProvisioningRouter(tokens)

	w := doProvJSON(r, "POST", "/provisionCamera", dto.ProvisionCameraRequest{Token: raw})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)
	assert.Contains(t, w.Body.String(), "CAM_")
	assert.Contains(t, w.Body.String(), "DEV_")
}

func TestProvisionCameraUsedToken(t *testing.T) {
	tokens, raw := seedProvToken(provisioning.TokenStatusUsed, time.Now().Add(time.Hour))
	r := setupProvisioningRouter(tokens)

	w := doProvJSON(r, "POST", "/provisionCamera", dto.ProvisionCameraRequest{Token: raw})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp dto.ProvisionErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, dto.CodeTokenUsed, resp.ErrorCode)
}

func TestProvisionCameraExpiredToken(t *testing.T) {
	tokens, raw := seedProvToken(provisioning.TokenStatusPending, time.Now().Add(-time.Hour))
	r := setupProvisioningRouter(tokens)

	w := doProvJSON(r, "POST", "/provisionCamera", dto.ProvisionCameraRequest{Token: raw})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp dto.ProvisionErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.CodeTokenExpired, resp.ErrorCode)
}

func TestProvisionCameraMalformedToken(t *testing.T) {
	tokens, _ := seedProvToken(provisioning.TokenStatusPending, time.Now().Add(time.Hour))
	r := setupProvisioningRouter(tokens)

	w := doProvJSON(r, "POST", "/provisionCamera", dto.ProvisionCameraRequest{Token: "nonsense"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp dto.ProvisionErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.CodeInvalidToken, resp.ErrorCode)
}
