package detection

import (
	"context"
	"testing"

	"github.com/countersight/counter-cloud/internal/auth"
	"github.com/countersight/counter-cloud/internal/provisioning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCameras struct {
	cameras  map[string]provisioning.Camera
	statuses map[string]string
}

func newMemCameras() *memCameras {
	return &memCameras{
		cameras:  make(map[string]provisioning.Camera),
		statuses: make(map[string]string),
	}
}

func (m *memCameras) Get(ctx context.Context, id string) (provisioning.Camera, error) {
	c, ok := m.cameras[id]
	if !ok {
		return provisioning.Camera{}, provisioning.ErrCameraNotFound
	}
	return c, nil
}

func (m *memCameras) SetDetectionStatus(ctx context.Context, cameraID, status string) error {
	m.statuses[cameraID] = status
	return nil
}

type fakeAgent struct {
	calls     []string
	reachable bool
}

func (f *fakeAgent) Start(ctx context.Context, ip string) (AgentResponse, error) {
	f.calls = append(f.calls, "start "+ip)
	if !f.reachable {
		return nil, ErrAgentUnreachable
	}
	return AgentResponse{"detection": "started"}, nil
}

func (f *fakeAgent) Stop(ctx context.Context, ip string) (AgentResponse, error) {
	f.calls = append(f.calls, "stop "+ip)
	if !f.reachable {
		return nil, ErrAgentUnreachable
	}
	return AgentResponse{"detection": "stopped"}, nil
}

func (f *fakeAgent) Status(ctx context.Context, ip string) (AgentResponse, error) {
	if !f.reachable {
		return nil, ErrAgentUnreachable
	}
	return AgentResponse{"detection": "active"}, nil
}

func (f *fakeAgent) Health(ctx context.Context, ip string) AgentResponse {
	if !f.reachable {
		return AgentResponse{"rpi_status": "offline"}
	}
	return AgentResponse{"rpi_status": "online"}
}

func newTestController(reachable bool) (*memCameras, *fakeAgent, *Controller) {
	cameras := newMemCameras()
	cameras.cameras["cam1"] = provisioning.Camera{
		ID: "cam1", SiteID: "site1", SubadminID: "sub1", RaspberryPiIP: "10.0.0.5",
	}
	agent := &fakeAgent{reachable: reachable}
	return cameras, agent, NewController(cameras, agent)
}

func TestStartDetection(t *testing.T) {
	cameras, agent, ctrl := newTestController(true)

	resp, err := ctrl.Start(context.Background(), "super1", auth.RoleSuperadmin, "cam1")
	require.NoError(t, err)
	assert.Equal(t, "started", resp["detection"])
	assert.Equal(t, "active", cameras.statuses["cam1"])
	assert.Equal(t, []string{"start 10.0.0.5"}, agent.calls)
}

func TestStopDetection(t *testing.T) {
	cameras, _, ctrl := newTestController(true)

	_, err := ctrl.Stop(context.Background(), "sub1", auth.RoleSubadmin, "cam1")
	require.NoError(t, err)
	assert.Equal(t, "inactive", cameras.statuses["cam1"])
}

func TestDetectionPermissions(t *testing.T) {
	_, _, ctrl := newTestController(true)

	// Viewers never control detection.
	_, err := ctrl.Start(context.Background(), "viewer1", auth.RoleViewer, "cam1")
	assert.ErrorIs(t, err, ErrForbidden)

	// Subadmins only control their own cameras.
	_, err = ctrl.Start(context.Background(), "sub2", auth.RoleSubadmin, "cam1")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = ctrl.Start(context.Background(), "sub1", auth.RoleSubadmin, "cam1")
	assert.NoError(t, err)
}

func TestDetectionUnreachableAgent(t *testing.T) {
	cameras, _, ctrl := newTestController(false)

	_, err := ctrl.Start(context.Background(), "super1", auth.RoleSuperadmin, "cam1")
	assert.ErrorIs(t, err, ErrAgentUnreachable)
	assert.Empty(t, cameras.statuses, "status untouched when the agent call fails")
}

func TestDetectionNoAgentAddress(t *testing.T) {
	cameras, _, ctrl := newTestController(true)
	cameras.cameras["cam2"] = provisioning.Camera{ID: "cam2", SubadminID: "sub1"}

	_, err := ctrl.Start(context.Background(), "super1", auth.RoleSuperadmin, "cam2")
	assert.ErrorIs(t, err, ErrNoAgentAddress)
}

func TestHealthFailsSoft(t *testing.T) {
	cameras, _, ctrl := newTestController(false)

	resp, err := ctrl.Health(context.Background(), "cam1")
	require.NoError(t, err)
	assert.Equal(t, "offline", resp["rpi_status"])

	// No agent address at all also reports offline.
	cameras.cameras["cam2"] = provisioning.Camera{ID: "cam2"}
	resp, err = ctrl.Health(context.Background(), "cam2")
	require.NoError(t, err)
	assert.Equal(t, "offline", resp["rpi_status"])

	_, err = ctrl.Health(context.Background(), "nope")
	assert.ErrorIs(t, err, provisioning.ErrCameraNotFound)
}
