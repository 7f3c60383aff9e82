// Package responder serves state lookups over MQTT.
//
// Clients publish to {prefix}/request/{type}/{uuid} and receive a JSON body
// on {prefix}/response/{type}/{uuid}:
//
//	{"found": true, "state": {"id": "...", "value": 42, ...}}
//	{"found": false, "state": null}
//	{"found": false, "state": null, "error": "state: unknown type: thermostat"}
//
// Each request runs one Repository.FindOne with its own timeout.
package responder
