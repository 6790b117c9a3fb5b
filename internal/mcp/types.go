package mcp

import (
	"encoding/json"
	"time"
)

// ConnectionState describes where the client is in its connection lifecycle.
// Transitions are owned exclusively by the Client's manager goroutine.
type ConnectionState int

// Connection states, in rough lifecycle order.
const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateAwaitingEndpoint
	StateSessionInitializing
	StateConnected
	StateReconnecting
	StateCooldown
)

// String returns the lowercase name of the state for logs and diagnostics.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAwaitingEndpoint:
		return "awaiting_endpoint"
	case StateSessionInitializing:
		return "session_initializing"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Status is a diagnostic snapshot of the client's connection.
type Status struct {
	// State is the current lifecycle state name.
	State string `json:"state"`

	// Connected mirrors IsConnected(): Connected state AND endpoint present.
	Connected bool `json:"connected"`

	// EndpointMissing is true when the state flag says connected but no
	// endpoint is held. Historically a split-brain failure mode, so it is
	// surfaced separately rather than folded silently into Connected.
	EndpointMissing bool `json:"endpoint_missing"`

	// Reconnecting is true while the manager goroutine is between attempts.
	Reconnecting bool `json:"reconnecting"`

	// Attempts is the consecutive failed connect attempt count.
	Attempts int `json:"attempts"`

	// ReconnectsTotal counts successful reconnections since start.
	ReconnectsTotal uint64 `json:"reconnects_total"`

	// LastActivityAge is the time since any stream traffic was observed.
	LastActivityAge time.Duration `json:"last_activity_age"`

	// PendingRequests is the current size of the correlation table.
	PendingRequests int `json:"pending_requests"`

	// CooldownUntil is set while the client waits out the long cooldown
	// after exhausting its attempt budget.
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`

	// LastError is the most recent connection-level error, if any.
	LastError string `json:"last_error,omitempty"`
}

// CommandOutcome is the tagged result of a device command. Command wrappers
// never propagate errors past their boundary; failures are converted to
// {Success: false, Message} so HTTP handlers can respond uniformly.
type CommandOutcome struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// rpcRequest is an outgoing JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcNotification is an outgoing JSON-RPC 2.0 notification (no id, no reply).
type rpcNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcResponse is an incoming JSON-RPC 2.0 response or server notification.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError is the error member of a JSON-RPC response.
type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// toolCallParams is the params shape for the controller's tools/call method.
type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// jsonrpcVersion is the fixed version string on every message.
const jsonrpcVersion = "2.0"
