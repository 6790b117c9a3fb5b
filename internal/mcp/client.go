package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Default option values applied by Options.withDefaults.
const (
	defaultStreamPath         = "/sse"
	defaultRequestTimeout     = 10 * time.Second
	defaultEndpointGrace      = 2 * time.Second
	defaultBackoffInitial     = 1 * time.Second
	defaultBackoffMax         = 30 * time.Second
	defaultMaxAttempts        = 10
	defaultCooldown           = 5 * time.Minute
	defaultWatchdogInterval   = 30 * time.Second
	defaultStalenessThreshold = 60 * time.Second
	defaultClientName         = "hearthview-core"
)

// Options configures a Client. BaseURL and Token are required; every other
// field falls back to a sensible default.
type Options struct {
	// BaseURL is the controller root, e.g. "http://homeassistant.local:8123".
	BaseURL string

	// StreamPath is the event stream path relative to BaseURL.
	StreamPath string

	// Token is the bearer token presented on every request.
	Token string

	// RequestTimeout bounds each outstanding JSON-RPC request.
	RequestTimeout time.Duration

	// EndpointGrace is how long to wait for the endpoint announcement
	// after the stream opens.
	EndpointGrace time.Duration

	// Backoff and cooldown tuning for the reconnect loop.
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	MaxAttempts    int
	Cooldown       time.Duration

	// Watchdog tuning. The stream is considered stale when no traffic has
	// been observed for StalenessThreshold.
	WatchdogInterval   time.Duration
	StalenessThreshold time.Duration

	// ClientName and ClientVersion identify this client in the handshake.
	ClientName    string
	ClientVersion string

	Logger Logger
}

func (o *Options) withDefaults() {
	if o.StreamPath == "" {
		o.StreamPath = defaultStreamPath
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = defaultRequestTimeout
	}
	if o.EndpointGrace <= 0 {
		o.EndpointGrace = defaultEndpointGrace
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = defaultBackoffInitial
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = defaultBackoffMax
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.Cooldown <= 0 {
		o.Cooldown = defaultCooldown
	}
	if o.WatchdogInterval <= 0 {
		o.WatchdogInterval = defaultWatchdogInterval
	}
	if o.StalenessThreshold <= 0 {
		o.StalenessThreshold = defaultStalenessThreshold
	}
	if o.ClientName == "" {
		o.ClientName = defaultClientName
	}
	if o.ClientVersion == "" {
		o.ClientVersion = "dev"
	}
	if o.Logger == nil {
		o.Logger = noopLogger{}
	}
}

// Client maintains a resilient session with the controller: it owns the
// stream transport, drives the reconnect loop, and exposes the request
// surface the rest of the service uses.
//
// All methods are safe for concurrent use.
type Client struct {
	opts      Options
	corr      *correlator
	transport *transport
	backoff   *backoffSchedule

	stateMu       sync.RWMutex
	state         ConnectionState
	cooldownUntil time.Time
	lastErr       error

	statsMu         sync.Mutex
	reconnectsTotal uint64
	everConnected   bool

	// streamDown wakes the manager when the read loop reports termination.
	streamDown chan struct{}

	// now is replaceable for staleness tests.
	now func() time.Time

	done      chan struct{}
	closeOnce sync.Once
	startOnce sync.Once
	wg        sync.WaitGroup
}

// New builds a Client from opts. Connect must be called before the client
// will serve requests.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("mcp: base URL is required")
	}
	if opts.Token == "" {
		return nil, fmt.Errorf("mcp: token is required")
	}
	opts.withDefaults()

	corr := newCorrelator(opts.RequestTimeout)
	tr := newTransport(opts.BaseURL, opts.StreamPath, opts.Token, opts.EndpointGrace, corr)
	tr.logger = opts.Logger

	c := &Client{
		opts:       opts,
		corr:       corr,
		transport:  tr,
		backoff:    newBackoffSchedule(opts.BackoffInitial, opts.BackoffMax, opts.Cooldown, opts.MaxAttempts),
		state:      StateDisconnected,
		streamDown: make(chan struct{}, 1),
		now:        time.Now,
		done:       make(chan struct{}),
	}
	tr.onDown = c.handleStreamDown
	return c, nil
}

// Connect starts the connection manager and blocks until the first connect
// attempt resolves. A first-attempt failure is returned to the caller, but
// the manager keeps retrying in the background regardless; callers that can
// tolerate a late connection may ignore the error and watch IsConnected.
// Connect is one-shot: calls after the first return nil immediately.
func (c *Client) Connect(ctx context.Context) error {
	first := make(chan error, 1)

	started := false
	c.startOnce.Do(func() {
		started = true
		c.wg.Add(2)
		go c.run(first)
		go c.watchdogLoop()
	})
	if !started {
		return nil
	}

	select {
	case err := <-first:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClientClosed
	}
}

// run is the connection manager: connect, hold, reconnect, forever.
func (c *Client) run(first chan<- error) {
	defer c.wg.Done()

	reported := false
	report := func(err error) {
		if !reported {
			reported = true
			first <- err
		}
	}

	for {
		select {
		case <-c.done:
			return
		default:
		}

		err := c.establish()

		if err == nil {
			c.backoff.reset()
			c.setState(StateConnected, nil)
			report(nil)

			c.statsMu.Lock()
			if c.everConnected {
				c.reconnectsTotal++
			}
			c.everConnected = true
			c.statsMu.Unlock()

			c.log().Info("controller connected", "endpoint", c.transport.endpointValue())

			// Drain a stale wakeup from a previous stream before waiting.
			select {
			case <-c.streamDown:
			default:
			}

			select {
			case <-c.done:
				return
			case <-c.streamDown:
				c.setState(StateReconnecting, c.lastError())
				c.log().Warn("stream lost, reconnecting")
				continue
			}
		}

		report(err)
		c.setState(StateReconnecting, err)

		delay, isCooldown := c.backoff.next()
		if isCooldown {
			until := c.now().Add(delay)
			c.setCooldown(until, err)
			c.log().Warn("connect attempts exhausted, entering cooldown",
				"error", err, "retry_in", delay)
		} else {
			c.log().Warn("connect failed, retrying",
				"error", err, "attempt", c.backoff.count(), "retry_in", delay)
		}

		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}
	}
}

// establish performs one full connection attempt: dial the stream, wait for
// the endpoint announcement, then initialize the session. Any failure tears
// the stream back down.
func (c *Client) establish() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Unblock a connect attempt caught mid-flight by Close.
	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-stopped:
		}
	}()

	c.setState(StateConnecting, nil)
	if err := c.transport.dial(ctx); err != nil {
		return err
	}

	c.setState(StateAwaitingEndpoint, nil)
	if err := c.transport.awaitEndpoint(ctx); err != nil {
		return err
	}

	c.setState(StateSessionInitializing, nil)
	initCtx, initCancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer initCancel()
	if err := c.initializeSession(initCtx); err != nil {
		c.transport.abort()
		return err
	}

	return nil
}

// handleStreamDown is the transport's termination callback.
func (c *Client) handleStreamDown(err error) {
	select {
	case <-c.done:
		return
	default:
	}

	c.setState(StateDisconnected, err)

	select {
	case c.streamDown <- struct{}{}:
	default:
	}
}

// watchdogLoop periodically checks stream liveness while connected and
// forces a reconnect when the stream has gone silent past the threshold.
// This catches half-open connections that produce no transport error.
func (c *Client) watchdogLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.opts.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.checkStaleness()
		}
	}
}

// checkStaleness aborts the stream if it is stale. Returns whether a
// reconnect was forced.
func (c *Client) checkStaleness() bool {
	if c.currentState() != StateConnected {
		return false
	}

	age := c.now().Sub(c.transport.activityTime())
	if age <= c.opts.StalenessThreshold {
		return false
	}

	c.log().Warn("stream stale, forcing reconnect",
		"last_activity_age", age, "threshold", c.opts.StalenessThreshold)
	c.transport.abort()
	return true
}

// IsConnected reports whether the session is fully established: stream up,
// endpoint known, handshake complete.
func (c *Client) IsConnected() bool {
	return c.currentState() == StateConnected && c.transport.endpointValue() != ""
}

// ConnectionStatus returns a point-in-time snapshot of the session for
// status surfaces.
func (c *Client) ConnectionStatus() Status {
	c.stateMu.RLock()
	state := c.state
	cooldownUntil := c.cooldownUntil
	lastErr := c.lastErr
	c.stateMu.RUnlock()

	c.statsMu.Lock()
	reconnects := c.reconnectsTotal
	c.statsMu.Unlock()

	var lastErrMsg string
	if lastErr != nil {
		lastErrMsg = lastErr.Error()
	}
	var cooldown *time.Time
	if !cooldownUntil.IsZero() {
		cooldown = &cooldownUntil
	}

	return Status{
		State:           state.String(),
		Connected:       state == StateConnected && c.transport.endpointValue() != "",
		EndpointMissing: state == StateConnected && c.transport.endpointValue() == "",
		Reconnecting:    state == StateReconnecting || state == StateCooldown,
		Attempts:        c.backoff.count(),
		ReconnectsTotal: reconnects,
		LastActivityAge: c.now().Sub(c.transport.activityTime()),
		PendingRequests: c.corr.pendingCount(),
		CooldownUntil:   cooldown,
		LastError:       lastErrMsg,
	}
}

// FetchFullState retrieves the controller's live context snapshot: the raw
// tool result payload, to be unwrapped and parsed by the snapshot package.
func (c *Client) FetchFullState(ctx context.Context) ([]byte, error) {
	select {
	case <-c.done:
		return nil, ErrClientClosed
	default:
	}
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	raw, err := c.transport.send(ctx, "tools/call", toolCallParams{
		Name:      toolLiveContext,
		Arguments: map[string]any{},
	})
	if err != nil {
		return nil, fmt.Errorf("fetching live context: %w", err)
	}
	return raw, nil
}

// callTool invokes a named tool and folds the result into a CommandOutcome.
// Tool failures are outcomes, not errors: command dispatch never panics the
// caller's flow over a device that declined.
func (c *Client) callTool(ctx context.Context, tool string, args map[string]any) CommandOutcome {
	select {
	case <-c.done:
		return CommandOutcome{Success: false, Message: ErrClientClosed.Error()}
	default:
	}
	if !c.IsConnected() {
		return CommandOutcome{Success: false, Message: ErrNotConnected.Error()}
	}
	if args == nil {
		args = map[string]any{}
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	raw, err := c.transport.send(ctx, "tools/call", toolCallParams{
		Name:      tool,
		Arguments: args,
	})
	if err != nil {
		return CommandOutcome{Success: false, Message: err.Error()}
	}

	return outcomeFromToolResult(raw)
}

// Close shuts the client down: the manager and watchdog stop, the stream is
// torn down, and outstanding requests fail with ErrClientClosed. Close is
// idempotent and blocks until all goroutines have exited.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.transport.abort()
		c.corr.failAll(ErrClientClosed)
	})
	c.wg.Wait()
	c.transport.wait()
	c.setState(StateDisconnected, nil)
	return nil
}

func (c *Client) log() Logger {
	return c.opts.Logger
}

func (c *Client) currentState() ConnectionState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *Client) lastError() error {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.lastErr
}

func (c *Client) setState(s ConnectionState, err error) {
	c.stateMu.Lock()
	c.state = s
	if s != StateCooldown {
		c.cooldownUntil = time.Time{}
	}
	if err != nil {
		c.lastErr = err
	}
	c.stateMu.Unlock()
}

func (c *Client) setCooldown(until time.Time, err error) {
	c.stateMu.Lock()
	c.state = StateCooldown
	c.cooldownUntil = until
	if err != nil {
		c.lastErr = err
	}
	c.stateMu.Unlock()
}
