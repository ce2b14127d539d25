package mqtt

import "fmt"

// DefaultTopicPrefix is used when Topics.Prefix is empty.
const DefaultTopicPrefix = "incoming_webhook"

// EventStateChanged is the event type published on every committed transition.
const EventStateChanged = "state_changed"

// Topics builds the MQTT topics the service publishes to.
//
//	topics := mqtt.Topics{Prefix: "incoming_webhook"}
//	topics.SwitchState("doorbell")
//	// Returns: "incoming_webhook/switch/doorbell/state"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// SwitchState returns the retained state topic for one switch.
//
// Example: incoming_webhook/switch/doorbell/state
func (t Topics) SwitchState(switchID string) string {
	return fmt.Sprintf("%s/switch/%s/state", t.prefix(), switchID)
}

// Event returns the topic for a service event.
//
// Example: incoming_webhook/event/state_changed
func (t Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", t.prefix(), eventType)
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: incoming_webhook/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix())
}

// AllSwitchStates returns a pattern matching every switch state topic.
//
// Pattern: incoming_webhook/switch/+/state
func (t Topics) AllSwitchStates() string {
	return fmt.Sprintf("%s/switch/+/state", t.prefix())
}

// AllTopics returns a pattern matching everything under the prefix.
func (t Topics) AllTopics() string {
	return t.prefix() + "/#"
}
