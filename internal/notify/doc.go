// Package notify delivers switch state changes to the host system.
//
// The Dispatcher hands every committed change to a Notifier, which queues
// it without blocking and fans it out from a single goroutine to the
// configured sinks: MQTT (external broker or the embedded one), InfluxDB
// telemetry and the WebSocket hub. Delivery is best effort. A full queue
// drops the event and counts it; a failing sink is logged and skipped.
//
// Usage:
//
//	n := notify.New(64, notify.NewMQTTSink(client, topics, 1))
//	go n.Run(ctx)
//	dispatcher := switches.NewDispatcher(store, n)
package notify
