package mcp

import (
	"errors"
	"fmt"
)

// Domain errors for the MCP client package.
var (
	// ErrNotConnected is returned when an operation requires a live session
	// but the client is not connected to the controller.
	ErrNotConnected = errors.New("mcp: not connected to controller")

	// ErrConnectionFailed is returned when opening the event stream fails.
	ErrConnectionFailed = errors.New("mcp: connection to controller failed")

	// ErrEndpointMissing is returned when the stream never announced the
	// request endpoint, or a request was attempted without one.
	ErrEndpointMissing = errors.New("mcp: request endpoint not announced")

	// ErrRequestTimeout is returned when a pending request exceeded its
	// deadline without a matching response. Only the affected caller fails;
	// the connection stays up.
	ErrRequestTimeout = errors.New("mcp: request timed out")

	// ErrStreamClosed is returned to pending requests when the event stream
	// terminates before their responses arrive.
	ErrStreamClosed = errors.New("mcp: event stream closed")

	// ErrClientClosed is returned when an operation is attempted after Close.
	ErrClientClosed = errors.New("mcp: client closed")
)

// RemoteError is an error envelope explicitly returned by the controller in
// a JSON-RPC response. It fails only the request that triggered it.
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("mcp: remote error %d: %s", e.Code, e.Message)
}
