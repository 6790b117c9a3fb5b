// Package influxdb provides the optional time-series writer for HearthView.
//
// Two measurement families are written:
//
//   - poll_metrics: one point per cache poll cycle (latency, entity counts,
//     success/failure) for dashboards tracking controller responsiveness.
//   - connection_events: one point per protocol-client state transition
//     (connect, disconnect, cooldown) for availability analysis.
//
// Writes are non-blocking and batched by the underlying client; a slow or
// absent InfluxDB never stalls the poll loop. Async write failures surface
// through the SetOnError callback.
package influxdb
