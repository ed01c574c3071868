package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	defaultTopicPrefix = "uda"
	mqttWait           = 10 * time.Second
)

type MQTTConfig struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// MQTT publishes events to <prefix>/<domain>/<device>/status with QoS 1.
type MQTT struct {
	client mqtt.Client
	prefix string
}

// NewMQTT connects to the broker.
func NewMQTT(cfg MQTTConfig) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(30 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if ok := token.WaitTimeout(mqttWait); !ok {
		return nil, fmt.Errorf("publish: MQTT connect timed out after %v", mqttWait)
	} else if token.Error() != nil {
		return nil, fmt.Errorf("publish: MQTT connect failed: %w", token.Error())
	}

	return newMQTTWithClient(client, cfg.TopicPrefix), nil
}

func newMQTTWithClient(client mqtt.Client, prefix string) *MQTT {
	if prefix == "" {
		prefix = defaultTopicPrefix
	}
	return &MQTT{client: client, prefix: strings.TrimRight(prefix, "/")}
}

func (p *MQTT) Topic(e Event) string {
	return strings.Join([]string{p.prefix, string(e.Domain), e.DeviceID, "status"}, "/")
}

func (p *MQTT) Publish(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}

	topic := p.Topic(e)
	token := p.client.Publish(topic, 1, false, b)

	waitDur := mqttWait
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < waitDur {
		waitDur = time.Until(deadline)
	}
	if ok := token.WaitTimeout(waitDur); !ok {
		// Timed out.
		return fmt.Errorf("publish: [%s] publish timed out after %v", topic, waitDur)
	} else if token.Error() != nil {
		// Finished before timeout but failed to publish.
		return fmt.Errorf("publish: [%s] failed to publish: %w", topic, token.Error())
	}
	return nil
}

// Close disconnects, giving in-flight messages up to 250ms.
func (p *MQTT) Close() {
	p.client.Disconnect(250)
}
