package dashboard

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/hearthview/hearthview-core/internal/snapshot"
)

// ErrNoData indicates that no poll has ever succeeded since process start,
// so the cache has nothing to serve, not even stale data.
var ErrNoData = errors.New("dashboard: no snapshot received yet")

// Source is the protocol client surface the cache polls.
type Source interface {
	IsConnected() bool
	FetchFullState(ctx context.Context) ([]byte, error)
}

// Cache polls the controller on a fixed interval and maintains the device
// entry store. The poll loop is the store's only writer; readers get copies.
type Cache struct {
	source   Source
	filter   *Filter
	interval time.Duration
	logger   Logger

	// now is replaceable for change-detection tests.
	now func() time.Time

	// Listeners run inside the poll loop and must return quickly.
	changeListeners []func(Change)
	pollListeners   []func(PollResult, error)

	mu         sync.RWMutex
	entries    map[string]*CacheEntry
	hasData    bool
	keptCount  int // post-filter count of the most recent merge
	lastUpdate time.Time

	statsMu sync.Mutex
	stats   PerformanceStats

	done      chan struct{}
	closeOnce sync.Once
	startOnce sync.Once
	wg        sync.WaitGroup
}

// NewCache creates a cache polling source every interval. Start must be
// called to begin polling.
func NewCache(source Source, filter *Filter, interval time.Duration) *Cache {
	return &Cache{
		source:   source,
		filter:   filter,
		interval: interval,
		logger:   noopLogger{},
		now:      time.Now,
		entries:  make(map[string]*CacheEntry),
		done:     make(chan struct{}),
	}
}

// SetLogger sets the logger for the cache.
func (c *Cache) SetLogger(logger Logger) {
	c.logger = logger
}

// OnChange registers a listener for state transitions. Must be called
// before Start; listeners run synchronously inside the poll loop.
func (c *Cache) OnChange(fn func(Change)) {
	c.changeListeners = append(c.changeListeners, fn)
}

// OnPoll registers a listener for poll outcomes, successful or not. Must be
// called before Start.
func (c *Cache) OnPoll(fn func(PollResult, error)) {
	c.pollListeners = append(c.pollListeners, fn)
}

// Start launches the poll loop. Polling begins only once the source reports
// connected for the first time; ticking against a dead client is wasted
// work. Start is one-shot.
func (c *Cache) Start() {
	c.startOnce.Do(func() {
		c.wg.Add(1)
		go c.run()
	})
}

// Stop halts the poll loop and waits for it to exit. Idempotent.
func (c *Cache) Stop() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	c.wg.Wait()
}

func (c *Cache) run() {
	defer c.wg.Done()

	// Hold off until the first connection.
	for !c.source.IsConnected() {
		select {
		case <-c.done:
			return
		case <-time.After(c.interval):
		}
	}

	c.logger.Info("poll loop started", "interval", c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if _, err := c.pollOnce(context.Background()); err != nil {
			c.logger.Debug("poll failed", "error", err)
		}

		select {
		case <-c.done:
			return
		case <-ticker.C:
		}
	}
}

// Refresh performs exactly one extra poll cycle outside the timer and
// returns its outcome synchronously.
func (c *Cache) Refresh(ctx context.Context) (PollResult, error) {
	return c.pollOnce(ctx)
}

// pollOnce runs one fetch-parse-filter-merge cycle. On failure the entry
// store is left untouched and only the error counters move.
func (c *Cache) pollOnce(ctx context.Context) (PollResult, error) {
	start := c.now()

	raw, err := c.source.FetchFullState(ctx)
	latency := c.now().Sub(start)

	if err != nil {
		c.recordError(err)
		c.notifyPoll(PollResult{Latency: latency}, err)
		return PollResult{Latency: latency}, err
	}

	text, kind := snapshot.Unwrap(raw)
	parsed := snapshot.Parse(text)

	res := PollResult{
		Latency:     latency,
		EntitiesRaw: len(parsed),
	}

	changes := c.merge(parsed)
	res.EntitiesKept = c.lastKeptCount()
	res.Changed = len(changes)

	c.recordSuccess(latency, res.EntitiesRaw, res.EntitiesKept)

	for _, ch := range changes {
		c.notifyChange(ch)
	}
	c.notifyPoll(res, nil)

	if res.EntitiesRaw == 0 && len(text) > 0 {
		c.logger.Debug("snapshot yielded no entities", "envelope", kind.String(), "bytes", len(text))
	}

	return res, nil
}

// merge folds one parsed snapshot into the entry store and returns the
// state transitions it produced.
func (c *Cache) merge(parsed []snapshot.Entity) []Change {
	now := c.now()
	var changes []Change

	c.mu.Lock()
	defer c.mu.Unlock()

	kept := 0
	for _, e := range parsed {
		category, ok := c.filter.Categorize(e)
		if !ok {
			continue
		}
		kept++

		existing, present := c.entries[e.ID]
		if present && existing.State == e.State {
			// Unchanged: refresh volatile fields only.
			existing.Entity = e
			existing.Category = category
			existing.LastSeen = now
			continue
		}

		previous := ""
		if present {
			previous = existing.State
		}
		c.entries[e.ID] = &CacheEntry{
			Entity:      e,
			Category:    category,
			LastChanged: now,
			LastSeen:    now,
		}

		changes = append(changes, Change{
			Entity:   e,
			Category: category,
			Previous: previous,
			At:       now,
		})
	}

	c.hasData = true
	c.keptCount = kept
	c.lastUpdate = now

	return changes
}

// Entries returns every cached entry, sorted by id for stable output.
// Returns ErrNoData until the first successful poll.
func (c *Cache) Entries() ([]CacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.hasData {
		return nil, ErrNoData
	}

	out := make([]CacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Category returns the cached entries belonging to one dashboard category,
// sorted by id. Returns ErrNoData until the first successful poll.
func (c *Cache) Category(name string) ([]CacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.hasData {
		return nil, ErrNoData
	}

	var out []CacheEntry
	for _, e := range c.entries {
		if e.Category == name {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get returns one cached entry by device name.
func (c *Cache) Get(id string) (CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	if !ok {
		return CacheEntry{}, false
	}
	return *e, true
}

// EntityCount returns the number of entries in the store. Zero before the
// first successful poll.
func (c *Cache) EntityCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// LastUpdate returns when the store last merged a successful poll. Failed
// polls do not advance it; the zero time means no poll has succeeded yet.
func (c *Cache) LastUpdate() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}

// HasData reports whether any poll has ever succeeded.
func (c *Cache) HasData() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hasData
}

// Stats returns a copy of the accumulated performance counters.
func (c *Cache) Stats() PerformanceStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

func (c *Cache) lastKeptCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keptCount
}

func (c *Cache) recordSuccess(latency time.Duration, raw, kept int) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	c.stats.TotalPolls++
	c.stats.LastPollTime = c.now()
	c.stats.EntitiesRaw = raw
	c.stats.EntitiesKept = kept

	// Running average over successful polls, never reset.
	n := float64(c.stats.TotalPolls - c.stats.Errors)
	if n < 1 {
		n = 1
	}
	ms := float64(latency.Microseconds()) / 1000.0
	c.stats.AvgLatencyMs += (ms - c.stats.AvgLatencyMs) / n
}

func (c *Cache) recordError(err error) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	c.stats.TotalPolls++
	c.stats.Errors++
	c.stats.LastError = err.Error()
	c.stats.LastErrorTime = c.now()
	c.stats.LastPollTime = c.now()
}

func (c *Cache) notifyChange(ch Change) {
	for _, fn := range c.changeListeners {
		fn(ch)
	}
}

func (c *Cache) notifyPoll(res PollResult, err error) {
	for _, fn := range c.pollListeners {
		fn(res, err)
	}
}
