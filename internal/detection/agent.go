package detection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Agent timeouts. Starting the detector loads a model on the device, so it
// gets the longest budget; the health probe fails soft and stays short.
const (
	startTimeout  = 10 * time.Second
	stopTimeout   = 5 * time.Second
	statusTimeout = 5 * time.Second
	healthTimeout = 3 * time.Second

	agentPort = 5000
)

var ErrAgentUnreachable = errors.New("device agent unreachable")

// AgentResponse is the device agent's JSON reply, passed through to the
// admin as-is.
type AgentResponse map[string]any

// AgentClient talks to the detection agent running on the camera's
// Raspberry Pi.
type AgentClient struct {
	http *http.Client
}

func NewAgentClient() *AgentClient {
	return &AgentClient{http: &http.Client{}}
}

func (c *AgentClient) Start(ctx context.Context, ip string) (AgentResponse, error) {
	return c.call(ctx, http.MethodPost, ip, "/start", startTimeout)
}

func (c *AgentClient) Stop(ctx context.Context, ip string) (AgentResponse, error) {
	return c.call(ctx, http.MethodPost, ip, "/stop", stopTimeout)
}

func (c *AgentClient) Status(ctx context.Context, ip string) (AgentResponse, error) {
	return c.call(ctx, http.MethodGet, ip, "/status", statusTimeout)
}

// Health probes the agent. It never returns an error: an unreachable or
// unhealthy agent reports rpi_status offline.
func (c *AgentClient) Health(ctx context.Context, ip string) AgentResponse {
	resp, err := c.call(ctx, http.MethodGet, ip, "/health", healthTimeout)
	if err != nil {
		return AgentResponse{"rpi_status": "offline"}
	}
	resp["rpi_status"] = "online"
	return resp
}

func (c *AgentClient) call(ctx context.Context, method, ip, path string, timeout time.Duration) (AgentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := fmt.Sprintf("http://%s:%d%s", ip, agentPort, path)
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build agent request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAgentUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: agent returned %d", ErrAgentUnreachable, resp.StatusCode)
	}

	body := AgentResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode agent response: %w", err)
	}
	return body, nil
}
