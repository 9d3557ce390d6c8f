package detection

import (
	"context"
	"errors"
	"log/slog"

	"github.com/countersight/counter-cloud/internal/auth"
	"github.com/countersight/counter-cloud/internal/provisioning"
)

var (
	ErrForbidden      = errors.New("role may not control detection on this camera")
	ErrNoAgentAddress = errors.New("camera has no agent address")
)

// CameraSource is the slice of the camera store the controller needs.
type CameraSource interface {
	Get(ctx context.Context, id string) (provisioning.Camera, error)
	SetDetectionStatus(ctx context.Context, cameraID, status string) error
}

// Agent is the device-side detection API.
type Agent interface {
	Start(ctx context.Context, ip string) (AgentResponse, error)
	Stop(ctx context.Context, ip string) (AgentResponse, error)
	Status(ctx context.Context, ip string) (AgentResponse, error)
	Health(ctx context.Context, ip string) AgentResponse
}

// Controller proxies detection control to device agents, enforcing role
// checks and persisting the resulting detection status.
type Controller struct {
	cameras CameraSource
	agent   Agent
}

func NewController(cameras CameraSource, agent Agent) *Controller {
	return &Controller{cameras: cameras, agent: agent}
}

func (c *Controller) Start(ctx context.Context, userID string, role auth.Role, cameraID string) (AgentResponse, error) {
	camera, err := c.authorize(ctx, userID, role, cameraID)
	if err != nil {
		return nil, err
	}

	resp, err := c.agent.Start(ctx, camera.RaspberryPiIP)
	if err != nil {
		return nil, err
	}
	if err := c.cameras.SetDetectionStatus(ctx, cameraID, "active"); err != nil {
		slog.Warn("Detection started but status not persisted", "camera_id", cameraID, "error", err)
	}
	slog.Info("Detection started", "camera_id", cameraID, "user_id", userID)
	return resp, nil
}

func (c *Controller) Stop(ctx context.Context, userID string, role auth.Role, cameraID string) (AgentResponse, error) {
	camera, err := c.authorize(ctx, userID, role, cameraID)
	if err != nil {
		return nil, err
	}

	resp, err := c.agent.Stop(ctx, camera.RaspberryPiIP)
	if err != nil {
		return nil, err
	}
	if err := c.cameras.SetDetectionStatus(ctx, cameraID, "inactive"); err != nil {
		slog.Warn("Detection stopped but status not persisted", "camera_id", cameraID, "error", err)
	}
	slog.Info("Detection stopped", "camera_id", cameraID, "user_id", userID)
	return resp, nil
}

// Status is readable by any authenticated role.
func (c *Controller) Status(ctx context.Context, cameraID string) (AgentResponse, error) {
	camera, err := c.cameras.Get(ctx, cameraID)
	if err != nil {
		return nil, err
	}
	if camera.RaspberryPiIP == "" {
		return nil, ErrNoAgentAddress
	}
	return c.agent.Status(ctx, camera.RaspberryPiIP)
}

// Health never fails: an unreachable agent reports offline.
func (c *Controller) Health(ctx context.Context, cameraID string) (AgentResponse, error) {
	camera, err := c.cameras.Get(ctx, cameraID)
	if err != nil {
		return nil, err
	}
	if camera.RaspberryPiIP == "" {
		return AgentResponse{"rpi_status": "offline"}, nil
	}
	return c.agent.Health(ctx, camera.RaspberryPiIP), nil
}

func (c *Controller) authorize(ctx context.Context, userID string, role auth.Role, cameraID string) (provisioning.Camera, error) {
	camera, err := c.cameras.Get(ctx, cameraID)
	if err != nil {
		return provisioning.Camera{}, err
	}
	if !role.CanControlDetection(camera.SubadminID == userID) {
		return provisioning.Camera{}, ErrForbidden
	}
	if camera.RaspberryPiIP == "" {
		return provisioning.Camera{}, ErrNoAgentAddress
	}
	return camera, nil
}
