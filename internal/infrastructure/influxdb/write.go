package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementSwitchTransition is the measurement every transition is written to.
const MeasurementSwitchTransition = "switch_transition"

// Transition is one committed switch state change.
type Transition struct {
	SwitchID string
	From     string
	To       string
	// Action is the webhook action that caused the change (on, off, toggle).
	Action string
	At     time.Time
}

// TransitionPoint builds the line-protocol point for a transition.
//
// Tags: switch_id, action. Fields: state ("on"/"off"), previous, is_on (bool).
func TransitionPoint(t Transition) *write.Point {
	return write.NewPoint(
		MeasurementSwitchTransition,
		map[string]string{
			"switch_id": t.SwitchID,
			"action":    t.Action,
		},
		map[string]any{
			"state":    t.To,
			"previous": t.From,
			"is_on":    t.To == "on",
		},
		t.At,
	)
}

// WriteSwitchTransition queues a transition point. No-op when disconnected.
func (c *Client) WriteSwitchTransition(t Transition) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(TransitionPoint(t))
}
