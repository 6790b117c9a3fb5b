// Package mcp implements the resilient protocol client for the remote
// smart-home controller's MCP (model-context protocol) endpoint.
//
// The controller pushes events over a long-lived SSE stream and accepts
// JSON-RPC 2.0 requests on a POST endpoint whose path is announced over
// that stream. This package owns the full connection lifecycle:
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                            Client                                 │
//	│                                                                   │
//	│  ┌───────────────┐   ┌─────────────────┐   ┌──────────────────┐  │
//	│  │   transport   │   │   correlator    │   │     monitor      │  │
//	│  │ (transport.go)│──▶│ (correlator.go) │   │   (monitor.go)   │  │
//	│  │               │   │                 │   │                  │  │
//	│  │ • SSE stream  │   │ • id allocation │   │ • backoff ladder │  │
//	│  │ • endpoint    │   │ • pending table │   │ • cooldown       │  │
//	│  │   discovery   │   │ • timeouts      │   │ • attempt count  │  │
//	│  │ • POST sender │   │ • fail-all      │   │                  │  │
//	│  └───────────────┘   └─────────────────┘   └──────────────────┘  │
//	│          │                                                        │
//	│          ▼                                                        │
//	│  ┌───────────────┐        manager goroutine reconnects on        │
//	│  │   session.go  │        stream loss; watchdog goroutine        │
//	│  │ initialize /  │        forces reconnect on silent streams     │
//	│  │ initialized   │                                               │
//	│  └───────────────┘                                               │
//	└──────────────────────────────────────────────────────────────────┘
//
// # Connection lifecycle
//
// Connect opens the stream, waits for the endpoint announcement (bounded by
// a short grace window), performs the initialize/initialized session
// handshake, and only then reports Connected. A lost or silently dead
// stream is detected (by read error or by the staleness watchdog), all
// pending requests are failed immediately, and the manager goroutine
// reconnects with exponential backoff. After the configured attempt budget
// is exhausted the client waits out a long cooldown before trying again.
//
// Connection-level failures never escape to callers: consumers observe
// IsConnected() == false and per-call tagged outcomes instead.
//
// # Usage
//
//	client := mcp.New(mcp.Options{
//	    BaseURL: cfg.Controller.BaseURL,
//	    Token:   cfg.Controller.Token,
//	})
//	client.SetLogger(log)
//	if err := client.Connect(ctx); err != nil {
//	    // initial attempt failed; retries continue in the background
//	}
//	defer client.Close()
//
//	raw, err := client.FetchFullState(ctx)
//	outcome := client.TurnOn(ctx, "Kitchen Light")
package mcp
