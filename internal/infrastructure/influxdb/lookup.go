package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-statestore/internal/state"
)

// MeasurementLookup is the measurement written for every repository lookup.
const MeasurementLookup = "state_lookup"

// ObserveLookup records one repository lookup as a state_lookup point
// tagged with the state type and outcome. It implements state.LookupObserver
// and does nothing once the client is closed.
//
// Example point:
//
//	state_lookup,outcome=found,type=property duration_ms=1.42
func (c *Client) ObserveLookup(typeName string, outcome state.Outcome, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		MeasurementLookup,
		map[string]string{
			"type":    typeName,
			"outcome": string(outcome),
		},
		map[string]any{
			"duration_ms": float64(duration) / float64(time.Millisecond),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// Compile-time interface check.
var _ state.LookupObserver = (*Client)(nil)
