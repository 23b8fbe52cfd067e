package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const mqttTimeout = 10 * time.Second

// MQTTConfig configures the MQTT republishing backend.
type MQTTConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string

	// Topic is the topic prefix; readings publish on
	// <topic>/<facility>/<metric>.
	Topic string
	QoS   byte
}

// MQTTStorage republishes readings to an MQTT broker, one JSON message
// per reading. Downstream dashboards subscribe to the topic tree instead
// of polling a database.
type MQTTStorage struct {
	client mqtt.Client
	topic  string
	qos    byte
}

// NewMQTTStorage connects to the broker. Reconnects after broker restarts
// are handled by the underlying client.
func NewMQTTStorage(cfg MQTTConfig) (*MQTTStorage, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(mqttTimeout).
		SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttTimeout) {
		return nil, fmt.Errorf("connecting to MQTT broker %s: timed out", cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to MQTT broker %s: %w", cfg.BrokerURL, err)
	}

	topic := cfg.Topic
	if topic == "" {
		topic = "meridian/readings"
	}
	return &MQTTStorage{client: client, topic: topic, qos: cfg.QoS}, nil
}

// Store publishes every reading and waits for broker acknowledgement.
func (s *MQTTStorage) Store(ctx context.Context, readings []Reading) error {
	for _, r := range readings {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encoding reading: %w", err)
		}
		topic := fmt.Sprintf("%s/%s/%s", s.topic, r.Facility, r.Metric)
		token := s.client.Publish(topic, s.qos, false, payload)
		if !token.WaitTimeout(mqttTimeout) {
			return fmt.Errorf("publishing to %s: timed out", topic)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("publishing to %s: %w", topic, err)
		}
	}
	return nil
}

func (s *MQTTStorage) Name() string { return "mqtt" }

// Close disconnects from the broker, allowing in-flight messages a short
// grace period.
func (s *MQTTStorage) Close() error {
	s.client.Disconnect(250)
	return nil
}

var _ Storage = (*MQTTStorage)(nil)
