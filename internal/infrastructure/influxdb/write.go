package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePollMetric records one cache poll cycle.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - latency: fetch round-trip time
//   - entitiesRaw: parsed entity count before the relevance filter
//   - entitiesKept: entity count after the relevance filter
//   - success: whether the poll succeeded
func (c *Client) WritePollMetric(latency time.Duration, entitiesRaw, entitiesKept int, success bool) {
	if !c.IsConnected() {
		return
	}

	status := "ok"
	if !success {
		status = "error"
	}

	point := write.NewPoint(
		"poll_metrics",
		map[string]string{
			"status": status,
		},
		map[string]interface{}{
			"latency_ms":    float64(latency.Microseconds()) / 1000.0,
			"entities_raw":  entitiesRaw,
			"entities_kept": entitiesKept,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteConnectionEvent records one protocol-client state transition.
//
// Parameters:
//   - state: the lifecycle state entered (e.g. "connected", "cooldown")
//   - attempts: consecutive failed connect attempts at the transition
func (c *Client) WriteConnectionEvent(state string, attempts int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"connection_events",
		map[string]string{
			"state": state,
		},
		map[string]interface{}{
			"attempts": attempts,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point for measurements the helpers don't
// cover.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
