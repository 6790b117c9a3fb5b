package mcp

import (
	"context"
	"encoding/json"
	"fmt"
)

// protocolVersion is the protocol revision advertised during initialize.
const protocolVersion = "2024-11-05"

// initializeResult is the subset of the initialize response we care about.
type initializeResult struct {
	ProtocolVersion string `json:"protocolVersion"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
}

// toolsListResult is the subset of a tools/list response used for diagnostics.
type toolsListResult struct {
	Tools []struct {
		Name string `json:"name"`
	} `json:"tools"`
}

// initializeSession performs the protocol handshake on a freshly opened
// stream: the initialize exchange, the initialized notification, and a
// best-effort capability listing. Requests go through the transport
// directly because the session is not considered connected until this
// completes.
func (c *Client) initializeSession(ctx context.Context) error {
	params := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    c.opts.ClientName,
			"version": c.opts.ClientVersion,
		},
	}

	raw, err := c.transport.send(ctx, "initialize", params)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	var res initializeResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return fmt.Errorf("initialize: decoding response: %w", err)
	}

	if err := c.transport.notify(ctx, "notifications/initialized", nil); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}

	c.log().Info("session established",
		"server", res.ServerInfo.Name,
		"server_version", res.ServerInfo.Version,
		"protocol", res.ProtocolVersion)

	// Capability enumeration is diagnostic only. A server that cannot list
	// its tools can still serve them.
	if raw, err := c.transport.send(ctx, "tools/list", map[string]any{}); err == nil {
		var tools toolsListResult
		if err := json.Unmarshal(raw, &tools); err == nil {
			names := make([]string, 0, len(tools.Tools))
			for _, t := range tools.Tools {
				names = append(names, t.Name)
			}
			c.log().Debug("server tools enumerated", "count", len(names), "tools", names)
		}
	} else {
		c.log().Debug("tool enumeration failed", "error", err)
	}

	return nil
}
