package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anicoll/pvs-monitor/internal/pkg/model"
)

const publishTimeout = 10 * time.Second

// NotifyAnomaly publishes one anomaly to <prefix>/anomaly/<kind>. QoS 1: an
// alert is worth a duplicate more than a silent drop.
func (s *service) NotifyAnomaly(_ context.Context, anomaly model.Anomaly) error {
	topic := fmt.Sprintf("%s/anomaly/%s", s.topicPrefix, anomaly.Kind)
	payload, err := json.Marshal(anomaly)
	if err != nil {
		return err
	}
	return s.publish(topic, 1, payload)
}

// NotifySummary publishes the finalized day to <prefix>/summary, retained so
// late subscribers see the latest day.
func (s *service) NotifySummary(_ context.Context, sum model.DailySummary) error {
	payload, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	return s.publishRetained(s.topicPrefix+"/summary", 1, payload)
}

func (s *service) publish(topic string, qos byte, payload []byte) error {
	token := s.client.Publish(topic, qos, false, payload)
	if token.WaitTimeout(publishTimeout) {
		return token.Error()
	}
	if err := token.Error(); err != nil {
		return err
	}
	return fmt.Errorf("publish to %s timed out", topic)
}

func (s *service) publishRetained(topic string, qos byte, payload []byte) error {
	token := s.client.Publish(topic, qos, true, payload)
	if token.WaitTimeout(publishTimeout) {
		return token.Error()
	}
	if err := token.Error(); err != nil {
		return err
	}
	return fmt.Errorf("publish to %s timed out", topic)
}
