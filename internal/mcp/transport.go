package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Stream framing constants.
const (
	// scanBufferSize is the initial line buffer for the stream scanner.
	scanBufferSize = 64 * 1024

	// scanBufferMax caps a single stream line. Snapshot payloads travel in
	// POST responses, not the stream, so lines stay small.
	scanBufferMax = 1024 * 1024

	// eventTypeEndpoint is the announcement carrying the request endpoint.
	eventTypeEndpoint = "endpoint"
)

// Logger is the logging interface used throughout the package.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// transport owns one streaming connection to the controller: the SSE GET,
// line decoding, endpoint discovery, and the POST path for requests.
//
// A transport is reused across reconnections; open establishes a fresh
// stream and abort tears the current one down. The endpoint is valid only
// between an open and the next stream termination.
type transport struct {
	baseURL       string
	streamPath    string
	token         string
	endpointGrace time.Duration
	httpc         *http.Client
	corr          *correlator
	logger        Logger

	// onDown is invoked once per stream termination with the read error
	// (nil on clean remote close). Set before the first open.
	onDown func(err error)

	mu         sync.RWMutex
	endpoint   string
	cancel     context.CancelFunc
	endpointCh chan struct{}

	lastActivity atomic.Int64 // unix nanoseconds
	wg           sync.WaitGroup
}

func newTransport(baseURL, streamPath, token string, grace time.Duration, corr *correlator) *transport {
	return &transport{
		baseURL:       strings.TrimRight(baseURL, "/"),
		streamPath:    streamPath,
		token:         token,
		endpointGrace: grace,
		httpc:         &http.Client{}, // no overall timeout: the stream GET is unbounded
		corr:          corr,
		logger:        noopLogger{},
	}
}

// dial establishes the event stream and starts the read loop. It returns as
// soon as the stream is up; endpoint discovery is a separate phase (see
// awaitEndpoint) so the client can report the two lifecycle states apart.
//
// The stream itself outlives ctx: ctx only bounds establishment.
func (t *transport) dial(ctx context.Context) error {
	streamCtx, cancel := context.WithCancel(context.Background())

	// Abort establishment if the caller gives up first. Detached once open
	// returns, so the stream is not tied to the connect context.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, t.baseURL+t.streamPath, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("%w: building stream request: %w", ErrConnectionFailed, err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+t.token)

	resp, err := t.httpc.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("%w: stream returned %s", ErrConnectionFailed, resp.Status)
	}

	epCh := make(chan struct{})

	t.mu.Lock()
	t.endpoint = ""
	t.cancel = cancel
	t.endpointCh = epCh
	t.mu.Unlock()

	t.lastActivity.Store(time.Now().UnixNano())

	t.wg.Add(1)
	go t.readLoop(resp.Body)

	return nil
}

// awaitEndpoint blocks until the server announces the request endpoint,
// the grace window expires, or ctx is cancelled. On failure the stream is
// torn down: a stream with no endpoint cannot carry requests.
func (t *transport) awaitEndpoint(ctx context.Context) error {
	t.mu.RLock()
	epCh := t.endpointCh
	announced := t.endpoint != ""
	t.mu.RUnlock()

	if announced {
		return nil
	}
	if epCh == nil {
		return ErrStreamClosed
	}

	select {
	case <-epCh:
		return nil
	case <-time.After(t.endpointGrace):
		t.abort()
		return fmt.Errorf("%w: no announcement within %v", ErrEndpointMissing, t.endpointGrace)
	case <-ctx.Done():
		t.abort()
		return fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
	}
}

// readLoop decodes the stream line by line until it terminates.
// On exit it invalidates the endpoint, fails all pending requests, and
// reports the termination upward.
func (t *transport) readLoop(body io.ReadCloser) {
	defer t.wg.Done()
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, scanBufferSize), scanBufferMax)

	eventType := ""
	for scanner.Scan() {
		line := scanner.Text()
		t.lastActivity.Store(time.Now().UnixNano())

		switch {
		case line == "":
			// Blank line terminates an event.
			eventType = ""
		case strings.HasPrefix(line, ":"):
			// Comment line; brokers use these as keepalives.
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			t.handleData(eventType, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		default:
			// Unknown SSE field (id:, retry:), ignore.
		}
	}

	err := scanner.Err()

	t.mu.Lock()
	t.endpoint = ""
	t.endpointCh = nil
	t.mu.Unlock()

	// Outstanding callers must never be left waiting on a dead stream.
	if failed := t.corr.failAll(ErrStreamClosed); failed > 0 {
		t.logger.Warn("stream closed with requests in flight", "failed", failed)
	}

	if t.onDown != nil {
		t.onDown(err)
	}
}

// handleData routes one data line. An endpoint announcement is captured
// verbatim; everything else is treated as a JSON-RPC payload for the
// correlator. Undecodable data is discarded: the stream is known to
// interleave non-JSON keepalive noise.
func (t *transport) handleData(eventType, data string) {
	if eventType == eventTypeEndpoint {
		t.mu.Lock()
		t.endpoint = data
		if t.endpointCh != nil {
			close(t.endpointCh)
			t.endpointCh = nil
		}
		t.mu.Unlock()

		t.logger.Debug("request endpoint announced", "endpoint", data)
		return
	}

	var msg rpcResponse
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		t.logger.Debug("discarding non-JSON stream data", "bytes", len(data))
		return
	}

	if msg.ID != nil {
		var resErr error
		if msg.Error != nil {
			resErr = &RemoteError{Code: msg.Error.Code, Message: msg.Error.Message}
		}
		if !t.corr.resolve(*msg.ID, msg.Result, resErr) {
			t.logger.Debug("discarding reply for unknown request id", "id", *msg.ID)
		}
		return
	}

	if msg.Method != "" {
		t.logger.Debug("server notification", "method", msg.Method)
	}
}

// post delivers a serialized JSON-RPC payload to the announced endpoint.
func (t *transport) post(ctx context.Context, payload []byte) error {
	t.mu.RLock()
	endpoint := t.endpoint
	t.mu.RUnlock()

	if endpoint == "" {
		return ErrEndpointMissing
	}

	url := endpoint
	if !strings.HasPrefix(endpoint, "http") {
		if !strings.HasPrefix(endpoint, "/") {
			endpoint = "/" + endpoint
		}
		url = t.baseURL + endpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.token)

	resp, err := t.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	// Responses arrive over the stream; the POST body is drained and dropped.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: endpoint returned %s", ErrConnectionFailed, resp.Status)
	}
	return nil
}

// send issues a request through the correlator and waits for its response,
// the per-request timeout, or ctx cancellation.
func (t *transport) send(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id, ch := t.corr.track(method)

	body, err := json.Marshal(rpcRequest{
		JSONRPC: jsonrpcVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		t.corr.fail(id, err)
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	if postErr := t.post(ctx, body); postErr != nil {
		// Delivery failed; complete the pending entry so the table stays bounded.
		t.corr.fail(id, postErr)
	}

	select {
	case res := <-ch:
		return res.payload, res.err
	case <-ctx.Done():
		t.corr.fail(id, ctx.Err())
		return nil, ctx.Err()
	}
}

// notify issues a fire-and-forget notification (no id, no response).
func (t *transport) notify(ctx context.Context, method string, params any) error {
	body, err := json.Marshal(rpcNotification{
		JSONRPC: jsonrpcVersion,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}
	return t.post(ctx, body)
}

// abort tears down the current stream, if any. The readLoop observes the
// cancellation, fails pending requests, and reports the disconnect.
func (t *transport) abort() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// wait blocks until the read loop has exited.
func (t *transport) wait() {
	t.wg.Wait()
}

// endpointValue returns the currently announced endpoint, or "".
func (t *transport) endpointValue() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.endpoint
}

// activityTime returns when stream traffic was last observed.
func (t *transport) activityTime() time.Time {
	return time.Unix(0, t.lastActivity.Load())
}
