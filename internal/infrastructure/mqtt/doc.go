// Package mqtt provides MQTT connectivity for TrainLink.
//
// TrainLink publishes the throttle state of every loco on a retained topic
// and accepts speed, direction and function commands on a per-loco command
// topic, so handsets and other controllers can drive the layout without
// going through the HTTP API.
//
//	Handset / controller ↔ MQTT broker ↔ TrainLink
//
// The client reconnects automatically with backoff, restores its
// subscriptions after reconnecting, and keeps a retained online/offline
// status (with a Last Will for crashes) on {prefix}/system/status.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.AllLocoCommands(), client.QoS(), handle)
//	err = client.PublishRetained(topics.LocoState(66), payload)
//
// Use TLS (mqtt.broker.tls) outside a trusted local network.
package mqtt
