package notify

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nerrad567/incoming-webhook/internal/switches"
)

// drainTimeout bounds delivery of events still queued at shutdown.
const drainTimeout = 5 * time.Second

// Logger defines the logging interface used by the Notifier.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Sink receives every queued state change.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev switches.StateChanged) error
}

// Notifier is a bounded, non-blocking event queue with a single consumer.
// It implements switches.EventPublisher.
type Notifier struct {
	queue   chan switches.StateChanged
	sinks   []Sink
	dropped atomic.Uint64
	logger  Logger
}

// New creates a Notifier with room for queueSize pending events.
func New(queueSize int, sinks ...Sink) *Notifier {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Notifier{
		queue:  make(chan switches.StateChanged, queueSize),
		sinks:  sinks,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the notifier.
func (n *Notifier) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	n.logger = logger
}

// Publish queues ev. It never blocks: when the queue is full the event is
// dropped and counted.
func (n *Notifier) Publish(ev switches.StateChanged) {
	select {
	case n.queue <- ev:
	default:
		total := n.dropped.Add(1)
		n.logger.Warn("notification queue full, event dropped",
			"switch_id", ev.SwitchID, "event_id", ev.ID, "dropped_total", total)
	}
}

// Dropped returns the number of events discarded because the queue was full.
func (n *Notifier) Dropped() uint64 {
	return n.dropped.Load()
}

// Pending returns the number of queued events.
func (n *Notifier) Pending() int {
	return len(n.queue)
}

// Run delivers events until ctx is cancelled, then delivers whatever is
// still queued within drainTimeout. Always returns nil.
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-n.queue:
			n.deliver(ctx, ev)
		case <-ctx.Done():
			n.drain()
			return nil
		}
	}
}

func (n *Notifier) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case ev := <-n.queue:
			n.deliver(ctx, ev)
		default:
			return
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, ev switches.StateChanged) {
	for _, s := range n.sinks {
		if err := s.Deliver(ctx, ev); err != nil {
			n.logger.Warn("notification delivery failed",
				"sink", s.Name(), "switch_id", ev.SwitchID, "event_id", ev.ID, "error", err)
			continue
		}
		n.logger.Debug("notification delivered", "sink", s.Name(), "switch_id", ev.SwitchID)
	}
}
