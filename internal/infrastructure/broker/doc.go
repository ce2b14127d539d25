// Package broker runs an embedded MQTT broker for deployments without
// an external one.
//
// The broker publishes through mochi's inline client, so the service
// needs no network round trip to reach its own subscribers. A TCP
// listener is added only when an address is configured; without one the
// broker still serves inline subscribers (used by tests).
//
// When mqtt.auth.username is set, network clients must present those
// credentials. Otherwise every client is allowed.
package broker
