package notify

import "github.com/nerrad567/incoming-webhook/internal/switches"

// EventType names the state-changed event on every transport.
const EventType = "switch.state_changed"

// EventPayload is the JSON form of a state change.
type EventPayload struct {
	EventID         string              `json:"event_id"`
	EventType       string              `json:"event_type"`
	SwitchID        string              `json:"switch_id"`
	Action          string              `json:"action"`
	OldState        string              `json:"old_state"`
	NewState        string              `json:"new_state"`
	Attributes      switches.Attributes `json:"attributes"`
	LastTriggeredAt string              `json:"last_triggered_at"`
	Timestamp       string              `json:"timestamp"`
}

// NewEventPayload converts an event. Attributes include last_triggered_at,
// matching the webhook response.
func NewEventPayload(ev switches.StateChanged) EventPayload {
	attrs := ev.Attributes.Clone()
	triggered := switches.FormatTimestamp(ev.LastTriggeredAt)
	attrs[switches.AttrLastTriggeredAt] = triggered

	return EventPayload{
		EventID:         ev.ID,
		EventType:       EventType,
		SwitchID:        ev.SwitchID,
		Action:          string(ev.Action),
		OldState:        string(ev.OldState),
		NewState:        string(ev.NewState),
		Attributes:      attrs,
		LastTriggeredAt: triggered,
		Timestamp:       switches.FormatTimestamp(ev.Timestamp),
	}
}

// StatePayload is the retained per-switch state document.
type StatePayload struct {
	SwitchID   string              `json:"switch_id"`
	State      string              `json:"state"`
	Attributes switches.Attributes `json:"attributes"`
}

// NewStatePayload builds the retained state for the switch after ev.
func NewStatePayload(ev switches.StateChanged) StatePayload {
	attrs := ev.Attributes.Clone()
	attrs[switches.AttrLastTriggeredAt] = switches.FormatTimestamp(ev.LastTriggeredAt)
	return StatePayload{
		SwitchID:   ev.SwitchID,
		State:      string(ev.NewState),
		Attributes: attrs,
	}
}
