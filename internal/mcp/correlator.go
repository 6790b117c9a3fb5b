package mcp

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// result carries a completed request back to its waiting caller.
type result struct {
	payload json.RawMessage
	err     error
}

// pendingRequest tracks one in-flight request until its response, timeout,
// or disconnect failure. At most one pendingRequest exists per id.
type pendingRequest struct {
	id       int64
	method   string
	issuedAt time.Time
	ch       chan result
	timer    *time.Timer
}

// correlator matches asynchronous JSON-RPC responses to their callers by id.
//
// Ids are allocated from a monotonically increasing counter and are never
// reused while pending. Completion order is independent of send order; the
// controller may answer out of order. A per-request timer bounds table
// growth: unresolved requests are failed with ErrRequestTimeout and removed,
// after which a late reply with the same id is discarded.
//
// Thread Safety: all methods are safe for concurrent use.
type correlator struct {
	timeout time.Duration

	nextID  atomic.Int64
	mu      sync.Mutex
	pending map[int64]*pendingRequest
}

func newCorrelator(timeout time.Duration) *correlator {
	return &correlator{
		timeout: timeout,
		pending: make(map[int64]*pendingRequest),
	}
}

// track allocates the next request id and registers a pending entry for it.
// The returned channel receives exactly one result: the matching response,
// a timeout, or a disconnect failure.
func (c *correlator) track(method string) (int64, <-chan result) {
	id := c.nextID.Add(1)

	// Buffered so resolve never blocks even if the caller has given up.
	req := &pendingRequest{
		id:       id,
		method:   method,
		issuedAt: time.Now(),
		ch:       make(chan result, 1),
	}

	// The timer is armed inside the critical section: once the entry is
	// visible in pending, resolve/failAll may read req.timer from another
	// goroutine. An immediate fire blocks on c.mu until the entry is in.
	c.mu.Lock()
	req.timer = time.AfterFunc(c.timeout, func() {
		c.fail(id, ErrRequestTimeout)
	})
	c.pending[id] = req
	c.mu.Unlock()

	return id, req.ch
}

// resolve completes the pending request with the given id. Unknown ids
// (already timed out, already resolved, or from a previous connection) are
// ignored. Returns true if a caller was delivered to.
func (c *correlator) resolve(id int64, payload json.RawMessage, err error) bool {
	c.mu.Lock()
	req, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}

	if req.timer != nil {
		req.timer.Stop()
	}
	req.ch <- result{payload: payload, err: err}
	return true
}

// fail completes a single pending request with an error.
func (c *correlator) fail(id int64, err error) bool {
	return c.resolve(id, nil, err)
}

// failAll fails every outstanding request with the given error. Called on
// disconnect so callers are never left waiting on a dead connection; ids are
// not preserved across reconnections.
func (c *correlator) failAll(err error) int {
	c.mu.Lock()
	drained := make([]*pendingRequest, 0, len(c.pending))
	for _, req := range c.pending {
		drained = append(drained, req)
	}
	c.pending = make(map[int64]*pendingRequest)
	c.mu.Unlock()

	for _, req := range drained {
		if req.timer != nil {
			req.timer.Stop()
		}
		req.ch <- result{err: err}
	}
	return len(drained)
}

// pendingCount returns the number of outstanding requests.
func (c *correlator) pendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
