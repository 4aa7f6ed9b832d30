package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/i474232898/weather-forecast-aggregation/internal/weather"
)

const publishTimeout = 5 * time.Second

// client is the part of mqtt.Client the publisher needs.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher publishes every refreshed report as a retained JSON message
// on <prefix>/<city>:<country>.
type MQTTPublisher struct {
	client client
	prefix string
}

// NewMQTTPublisher wraps an already connected client.
func NewMQTTPublisher(c client, prefix string) *MQTTPublisher {
	return &MQTTPublisher{client: c, prefix: prefix}
}

// Connect dials the broker and returns the connected client.
func Connect(brokerURL, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", brokerURL, err)
	}
	log.Printf("INFO: mqtt connected to %s", brokerURL)
	return c, nil
}

// Topic returns the topic a location's reports are published on.
func (p *MQTTPublisher) Topic(loc weather.Location) string {
	return p.prefix + "/" + loc.Key()
}

func (p *MQTTPublisher) PublishReport(ctx context.Context, report weather.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	token := p.client.Publish(p.Topic(report.Location), 1, true, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("mqtt: publish to %s timed out", p.Topic(report.Location))
	}
}
