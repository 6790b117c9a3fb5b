// Package mqtt provides the optional event publisher for HearthView.
//
// The service publishes observed device state transitions and its own
// online/offline status to an MQTT broker so external consumers (wall
// panels, automations, logging pipelines) can react without polling the
// HTTP API. The client is publish-only; HearthView never consumes broker
// traffic.
//
// Topic hierarchy:
//
//	hearthview/state/{category}/{entity}   state transitions (retained)
//	hearthview/system/status               online/offline + LWT (retained)
//
// Connection management (reconnect, keepalive) is delegated to the paho
// client; a failed publish is reported to the caller and otherwise dropped,
// the dashboard never blocks on the broker.
package mqtt
