package systemtest

import (
	"context"
	"testing"

	"github.com/countersight/counter-cloud/internal/alerts"
	internalhttp "github.com/countersight/counter-cloud/internal/api/http"
	"github.com/countersight/counter-cloud/internal/auth"
	"github.com/countersight/counter-cloud/internal/credentials"
	"github.com/countersight/counter-cloud/internal/db"
	"github.com/countersight/counter-cloud/internal/detection"
	"github.com/countersight/counter-cloud/internal/devices"
	"github.com/countersight/counter-cloud/internal/enrollment"
	"github.com/countersight/counter-cloud/internal/live"
	"github.com/countersight/counter-cloud/internal/provisioning"
	"github.com/countersight/counter-cloud/internal/telemetry"
	"github.com/countersight/counter-cloud/internal/users"
	"github.com/countersight/counter-cloud/systemtest/postgres"
	"github.com/countersight/counter-cloud/systemtest/tests"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const (
	jwtSecret    = "systemtest-secret"
	webhookToken = "systemtest-webhook-token"
	enrollSecret = "systemtest-enroll-token"
)

func TestSystemIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed system test in short mode")
	}

	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	container, err := postgres.StartPostgres(ctx, "postgres", "postgres", "counter_cloud_test")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = postgres.TerminatePostgres(context.Background(), container)
	})

	dbURL, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, db.RunMigrations(dbURL))

	pool, err := db.InitDB(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	userStore := users.NewStore(pool)
	enrollTokens := enrollment.NewStore(pool)
	deviceStore := devices.NewStore(pool)
	keyStore := credentials.NewStore(pool)
	provTokens := provisioning.NewTokenPgStore(pool)
	cameraStore := provisioning.NewCameraPgStore(pool)
	pendingStore := provisioning.NewPendingPgStore(pool)
	siteStore := provisioning.NewSitePgStore(pool)
	logStore := telemetry.NewStore(pool)
	ruleStore := alerts.NewStore(pool)

	jwtConfig := auth.JWTConfig{Secret: jwtSecret, ExpiryMinutes: 60}
	authService := auth.NewService(userStore, jwtConfig)
	enrollmentService := enrollment.NewService(enrollTokens, deviceStore, keyStore)
	provisioningService := provisioning.NewService(provTokens, cameraStore, pendingStore, siteStore)
	evaluator := alerts.NewEvaluator(ruleStore, alerts.LogNotifier{})
	pipeline := telemetry.NewPipeline(logStore, deviceStore, cameraStore, evaluator, live.NewHub())
	detectionController := detection.NewController(cameraStore, detection.NewAgentClient())

	engine := gin.New()
	internalhttp.SetupRoute(engine, &internalhttp.Services{
		Enrollment:   enrollmentService,
		Provisioning: provisioningService,
		Pipeline:     pipeline,
		Detection:    detectionController,
		Auth:         authService,
		Keys:         keyStore,
		Cameras:      cameraStore,
		Sites:        siteStore,
		Logs:         logStore,
		AlertRules:   ruleStore,
		JWTSecret:    jwtSecret,
		WebhookToken: webhookToken,
	})

	// Seed a superadmin and an enrollment token; both are normally created
	// out of band by operators.
	_, err = authService.Register(ctx, "admin", "password123", auth.RoleSuperadmin)
	require.NoError(t, err)
	require.NoError(t, enrollTokens.CreateToken(ctx, enrollment.Token{
		TokenHash: credentials.HashKey(enrollSecret),
		TenantID:  "tenant1",
		Active:    true,
	}))

	t.Run("HealthCheck", func(t *testing.T) { tests.TestHealthCheck(t, engine) })
	t.Run("AdminAuth", func(t *testing.T) { tests.TestAdminAuth(t, engine) })
	t.Run("DeviceLifecycle", func(t *testing.T) { tests.TestDeviceLifecycle(t, engine, enrollSecret) })
	t.Run("ProvisioningFlow", func(t *testing.T) { tests.TestProvisioningFlow(t, engine) })
	t.Run("ActivationWebhook", func(t *testing.T) { tests.TestActivationWebhook(t, engine, webhookToken) })
}
