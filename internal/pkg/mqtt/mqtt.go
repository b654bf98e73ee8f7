// Package mqtt is the notification sink: anomalies and finalized daily
// summaries published as JSON to the configured broker. Delivery is
// best-effort; the publisher layer logs and moves on when it fails.
package mqtt

import (
	"errors"
	"time"

	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
)

const connectTimeout = 5 * time.Second

type service struct {
	client      paho_mqtt.Client
	topicPrefix string
}

func New(client paho_mqtt.Client, topicPrefix string) *service {
	return &service{
		client:      client,
		topicPrefix: topicPrefix,
	}
}

func (s *service) Connect() error {
	token := s.client.Connect()
	if token.WaitTimeout(connectTimeout) {
		return token.Error()
	}
	if err := token.Error(); err != nil {
		return err
	}
	return errors.New("unable to connect in time")
}
