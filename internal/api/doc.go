// Package api implements the HTTP REST API and WebSocket server for Hearthview.
//
// This package provides:
//   - REST endpoints for dashboard summaries, entity reads, and device commands
//   - Controller connection status and manual refresh
//   - State history queries backed by the SQLite recorder
//   - WebSocket hub broadcasting state changes to connected dashboards
//   - Camera stream reverse proxy
//   - JWT authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The API server sits between the dashboard UI and the device cache + MCP
// client. Reads are always served from the cache (never a live controller
// round trip); commands go straight to the controller via the MCP client.
// State changes detected by the cache's poll loop are broadcast to WebSocket
// clients subscribed to the "state_changed" channel.
//
// # Security
//
// A single operator authenticates with POST /auth/login and receives a JWT.
// WebSocket connections use single-use tickets to keep tokens out of URLs.
//
// # Graceful Degradation
//
// The server keeps answering reads from the last known good cache contents
// while the controller connection is down; only commands fail.
package api
