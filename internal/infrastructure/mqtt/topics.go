package mqtt

import "strings"

// Topic segments below the configured prefix.
const (
	segmentRequest  = "request"
	segmentResponse = "response"
	segmentStatus   = "status"
)

// Topics builds the state store's MQTT topics under a configurable prefix.
//
//	topics := mqtt.Topics{Prefix: "site/statestore"}
//	topics.Request("property", "f81d4fae-7dec-11d0-a765-00a0c91e6bf6")
//	// Returns: "site/statestore/request/property/f81d4fae-7dec-11d0-a765-00a0c91e6bf6"
type Topics struct {
	Prefix string
}

// Request returns the topic a client publishes a lookup request to.
//
// Example: statestore/request/property/{uuid}
func (t Topics) Request(typeName, id string) string {
	return t.join(segmentRequest, typeName, id)
}

// Response returns the topic the answer to a lookup request is published on.
//
// Example: statestore/response/property/{uuid}
func (t Topics) Response(typeName, id string) string {
	return t.join(segmentResponse, typeName, id)
}

// Status returns the retained online/offline status topic.
//
// Example: statestore/status
func (t Topics) Status() string {
	return t.join(segmentStatus)
}

// AllRequests returns the pattern matching every lookup request.
//
// Pattern: statestore/request/+/+
func (t Topics) AllRequests() string {
	return t.join(segmentRequest, "+", "+")
}

// ParseRequest splits a request topic into its state type and identifier.
// It reports false for topics outside the request hierarchy.
func (t Topics) ParseRequest(topic string) (typeName, id string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.join(segmentRequest)+"/")
	if !found {
		return "", "", false
	}
	typeName, id, found = strings.Cut(rest, "/")
	if !found || typeName == "" || id == "" || strings.Contains(id, "/") {
		return "", "", false
	}
	return typeName, id, true
}

func (t Topics) join(segments ...string) string {
	prefix := strings.TrimSuffix(t.Prefix, "/")
	if prefix == "" {
		return strings.Join(segments, "/")
	}
	return prefix + "/" + strings.Join(segments, "/")
}
