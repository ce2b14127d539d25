// Package mqtt publishes switch state to an MQTT broker.
//
// This package manages:
//   - Connection to an external broker with auto-reconnect
//   - Retained state messages and non-retained event messages
//   - Last Will and Testament on the system status topic
//
// Topic layout, with the default prefix:
//
//	incoming_webhook/switch/{switch_id}/state   retained, current state
//	incoming_webhook/event/state_changed        one message per transition
//	incoming_webhook/system/status              retained, online/offline
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := client.Topics().SwitchState("doorbell")
//	err = client.Publish(topic, payload, 1, true)
package mqtt
