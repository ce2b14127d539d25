package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/incoming-webhook/internal/infrastructure/mqtt"
	"github.com/nerrad567/incoming-webhook/internal/switches"
)

// Publisher publishes one MQTT message. Both mqtt.Client and broker.Broker
// satisfy it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTSink publishes the retained switch state and the event.
type MQTTSink struct {
	pub    Publisher
	topics mqtt.Topics
	qos    byte
}

// NewMQTTSink creates a sink publishing under topics at qos.
func NewMQTTSink(pub Publisher, topics mqtt.Topics, qos byte) *MQTTSink {
	return &MQTTSink{pub: pub, topics: topics, qos: qos}
}

// Name implements Sink.
func (s *MQTTSink) Name() string { return "mqtt" }

// Deliver publishes {prefix}/switch/{id}/state (retained) then
// {prefix}/event/state_changed.
func (s *MQTTSink) Deliver(_ context.Context, ev switches.StateChanged) error {
	state, err := json.Marshal(NewStatePayload(ev))
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}
	if err := s.pub.Publish(s.topics.SwitchState(ev.SwitchID), state, s.qos, true); err != nil {
		return fmt.Errorf("publishing state: %w", err)
	}

	event, err := json.Marshal(NewEventPayload(ev))
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	if err := s.pub.Publish(s.topics.Event(mqtt.EventStateChanged), event, s.qos, false); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}
	return nil
}
