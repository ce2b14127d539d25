package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/incoming-webhook/internal/infrastructure/broker"
	"github.com/nerrad567/incoming-webhook/internal/infrastructure/influxdb"
	"github.com/nerrad567/incoming-webhook/internal/infrastructure/mqtt"
	"github.com/nerrad567/incoming-webhook/internal/switches"
)

var testAt = time.Date(2026, 3, 1, 9, 30, 15, 123456000, time.UTC)

func testEvent(id string, n int) switches.StateChanged {
	return switches.StateChanged{
		ID:              id,
		SwitchID:        "doorbell",
		Action:          switches.ActionToggle,
		OldState:        switches.StateOff,
		NewState:        switches.StateOn,
		Attributes:      switches.Attributes{"n": float64(n)},
		LastTriggeredAt: testAt,
		Timestamp:       testAt,
	}
}

type recordingSink struct {
	mu   sync.Mutex
	got  []switches.StateChanged
	err  error
	gate chan struct{}
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Deliver(_ context.Context, ev switches.StateChanged) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, ev)
	return s.err
}

func (s *recordingSink) events() []switches.StateChanged {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]switches.StateChanged(nil), s.got...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for condition")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNotifier_DeliversInOrder(t *testing.T) {
	first := &recordingSink{}
	failing := &recordingSink{err: errors.New("unreachable")}
	n := New(16, failing, first)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Run(ctx) //nolint:errcheck // Always nil
		close(done)
	}()

	for i := 0; i < 10; i++ {
		n.Publish(testEvent("ev", i))
	}
	waitFor(t, func() bool { return len(first.events()) == 10 })
	cancel()
	<-done

	for i, ev := range first.events() {
		if ev.Attributes["n"] != float64(i) {
			t.Fatalf("event %d out of order: %v", i, ev.Attributes)
		}
	}
	if len(failing.events()) != 10 {
		t.Error("failing sink should still see every event")
	}
}

func TestNotifier_PublishNeverBlocks(t *testing.T) {
	sink := &recordingSink{gate: make(chan struct{})}
	n := New(2, sink)

	// Nothing consumes: the third publish must drop rather than block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			n.Publish(testEvent("ev", i))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}

	if got := n.Dropped(); got != 3 {
		t.Errorf("Dropped() = %d, want 3", got)
	}
	if got := n.Pending(); got != 2 {
		t.Errorf("Pending() = %d, want 2", got)
	}
	close(sink.gate)
}

func TestNotifier_DrainsOnShutdown(t *testing.T) {
	sink := &recordingSink{}
	n := New(8, sink)
	for i := 0; i < 3; i++ {
		n.Publish(testEvent("ev", i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// Run may pick events from the queue or drain; either way all arrive.
	if got := len(sink.events()); got != 3 {
		t.Errorf("delivered = %d, want 3", got)
	}
}

func TestNewEventPayload(t *testing.T) {
	p := NewEventPayload(testEvent("abc", 1))

	if p.EventType != EventType || p.EventID != "abc" {
		t.Errorf("payload identity = %s/%s", p.EventType, p.EventID)
	}
	if p.OldState != "off" || p.NewState != "on" || p.Action != "toggle" {
		t.Errorf("payload transition = %+v", p)
	}
	const wantTS = "2026-03-01T09:30:15.123456+00:00"
	if p.LastTriggeredAt != wantTS || p.Attributes[switches.AttrLastTriggeredAt] != wantTS {
		t.Errorf("last_triggered_at = %q / %v", p.LastTriggeredAt, p.Attributes[switches.AttrLastTriggeredAt])
	}
}

type publishCall struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type fakePublisher struct {
	calls []publishCall
	err   error
}

func (p *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if p.err != nil {
		return p.err
	}
	p.calls = append(p.calls, publishCall{topic, payload, qos, retained})
	return nil
}

func TestMQTTSink_Deliver(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewMQTTSink(pub, mqtt.Topics{Prefix: "hooks"}, 1)

	if err := sink.Deliver(context.Background(), testEvent("abc", 1)); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if len(pub.calls) != 2 {
		t.Fatalf("publishes = %d, want 2", len(pub.calls))
	}

	state := pub.calls[0]
	if state.topic != "hooks/switch/doorbell/state" || !state.retained || state.qos != 1 {
		t.Errorf("state publish = %+v", state)
	}
	var sp StatePayload
	if err := json.Unmarshal(state.payload, &sp); err != nil {
		t.Fatalf("state payload: %v", err)
	}
	if sp.State != "on" || sp.SwitchID != "doorbell" {
		t.Errorf("state payload = %+v", sp)
	}

	event := pub.calls[1]
	if event.topic != "hooks/event/state_changed" || event.retained {
		t.Errorf("event publish = %+v", event)
	}
}

func TestMQTTSink_PublishError(t *testing.T) {
	pub := &fakePublisher{err: mqtt.ErrNotConnected}
	sink := NewMQTTSink(pub, mqtt.Topics{}, 0)

	err := sink.Deliver(context.Background(), testEvent("abc", 1))
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Deliver() error = %v, want ErrNotConnected", err)
	}
}

func TestMQTTSink_EmbeddedBroker(t *testing.T) {
	b, err := broker.New(broker.Options{})
	if err != nil {
		t.Fatalf("broker.New() error = %v", err)
	}
	defer b.Close() //nolint:errcheck // Test cleanup

	topics := mqtt.Topics{Prefix: "hooks"}
	received := make(chan []byte, 1)
	unsubscribe, err := b.Subscribe(topics.Event(mqtt.EventStateChanged), func(_ string, payload []byte) {
		received <- payload
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer unsubscribe()

	sink := NewMQTTSink(b, topics, 0)
	if err := sink.Deliver(context.Background(), testEvent("abc", 1)); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	select {
	case payload := <-received:
		var ep EventPayload
		if err := json.Unmarshal(payload, &ep); err != nil {
			t.Fatalf("event payload: %v", err)
		}
		if ep.EventID != "abc" || ep.SwitchID != "doorbell" {
			t.Errorf("event payload = %+v", ep)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

type fakeTransitionWriter struct {
	got []influxdb.Transition
}

func (w *fakeTransitionWriter) WriteSwitchTransition(t influxdb.Transition) {
	w.got = append(w.got, t)
}

func TestInfluxSink_Deliver(t *testing.T) {
	w := &fakeTransitionWriter{}
	sink := NewInfluxSink(w)

	if err := sink.Deliver(context.Background(), testEvent("abc", 1)); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	want := influxdb.Transition{SwitchID: "doorbell", From: "off", To: "on", Action: "toggle", At: testAt}
	if len(w.got) != 1 || w.got[0] != want {
		t.Errorf("transitions = %+v, want %+v", w.got, want)
	}
}
