// Package mqtt connects the state store to an MQTT broker.
//
// It wraps paho.mqtt.golang with connection management, automatic
// reconnection with subscription restore, panic-safe handlers and a retained
// online/offline status (with a last will for unexpected disconnects).
//
// # Topics
//
// All topics live under the configured prefix (default "statestore"):
//
//	{prefix}/request/{type}/{uuid}    lookup requests
//	{prefix}/response/{type}/{uuid}   lookup answers
//	{prefix}/status                   retained online/offline status
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllRequests(), client.QoS(), handler)
package mqtt
