package notify

import (
	"context"

	"github.com/nerrad567/incoming-webhook/internal/infrastructure/influxdb"
	"github.com/nerrad567/incoming-webhook/internal/switches"
)

// TransitionWriter queues a transition point. *influxdb.Client satisfies it.
type TransitionWriter interface {
	WriteSwitchTransition(t influxdb.Transition)
}

// InfluxSink records each transition as telemetry.
type InfluxSink struct {
	w TransitionWriter
}

// NewInfluxSink creates a sink writing through w.
func NewInfluxSink(w TransitionWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// Name implements Sink.
func (s *InfluxSink) Name() string { return "influxdb" }

// Deliver queues the point. Write errors surface through the client's
// error callback, so this never fails.
func (s *InfluxSink) Deliver(_ context.Context, ev switches.StateChanged) error {
	s.w.WriteSwitchTransition(influxdb.Transition{
		SwitchID: ev.SwitchID,
		From:     string(ev.OldState),
		To:       string(ev.NewState),
		Action:   string(ev.Action),
		At:       ev.LastTriggeredAt,
	})
	return nil
}
