package live

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig holds broker connection settings.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// MQTTPublisher bridges count events onto an MQTT broker under
// sites/{siteId}/cameras/{cameraId}/counts, so external consumers can
// follow live counts without touching the HTTP API.
type MQTTPublisher struct {
	client mqtt.Client
}

func NewMQTTPublisher(cfg MQTTConfig) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("MQTT connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		slog.Info("MQTT client connected", "broker", cfg.Broker)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker: %w", token.Error())
	}
	return &MQTTPublisher{client: client}, nil
}

func (p *MQTTPublisher) PublishCounts(event CountEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal count event: %w", err)
	}

	topic := fmt.Sprintf("sites/%s/cameras/%s/counts", event.SiteID, event.CameraID)
	token := p.client.Publish(topic, 0, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish count event: %w", token.Error())
	}
	return nil
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}

// Fanout publishes to several publishers, logging failures instead of
// returning them so one broken sink does not starve the others.
type Fanout []Publisher

func (f Fanout) PublishCounts(event CountEvent) error {
	for _, p := range f {
		if err := p.PublishCounts(event); err != nil {
			slog.Warn("Live publish failed", "camera_id", event.CameraID, "error", err)
		}
	}
	return nil
}
