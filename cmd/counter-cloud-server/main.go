package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

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
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var AppVersion string

func main() {
	InitConfig()

	slog.Info("Counter Cloud Server", "version", AppVersion)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.RunMigrations(config.Db.Url); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	pool, err := db.InitDB(ctx, config.Db.Url)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Stores.
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

	// Live fan-out: the in-process hub always runs; MQTT joins when configured.
	hub := live.NewHub()
	publishers := live.Fanout{hub}
	if config.Mqtt.Enabled {
		mqttPub, err := live.NewMQTTPublisher(live.MQTTConfig{
			Broker:   config.Mqtt.Broker,
			ClientID: config.Mqtt.ClientID,
			Username: config.Mqtt.Username,
			Password: config.Mqtt.Password,
		})
		if err != nil {
			slog.Error("Failed to connect MQTT publisher", "error", err)
			os.Exit(1)
		}
		defer mqttPub.Close()
		publishers = append(publishers, mqttPub)
	}

	// Services.
	enrollmentService := enrollment.NewService(enrollTokens, deviceStore, keyStore)
	provisioningService := provisioning.NewService(provTokens, cameraStore, pendingStore, siteStore)
	authService := auth.NewService(userStore, config.Jwt)
	evaluator := alerts.NewEvaluator(ruleStore, alerts.LogNotifier{})
	pipeline := telemetry.NewPipeline(logStore, deviceStore, cameraStore, evaluator, publishers)
	detectionController := detection.NewController(cameraStore, detection.NewAgentClient())

	// Liveness sweep over both registries, once a minute.
	reconciler := devices.NewReconciler(time.Minute, deviceStore, cameraStore)
	go reconciler.Run(ctx)

	services := &internalhttp.Services{
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
		JWTSecret:    config.Jwt.Secret,
		WebhookToken: config.Http.WebhookToken,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"PUT", "PATCH", "GET", "POST", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-API-Key", "x-enroll-token"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(gin.Recovery())
	internalhttp.SetupRoute(engine, services)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Http.Port),
		Handler: engine,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		slog.Error("Server error", "error", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	}

	slog.Info("Shutting down...")
	cancel()

	var wg sync.WaitGroup
	shutdownTimeout := 10 * time.Second

	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server stopped")
		}
	}()

	wg.Wait()
	slog.Info("Shutdown complete")
}
