package dashboard

import (
	"time"

	"github.com/hearthview/hearthview-core/internal/snapshot"
)

// Logger defines the logging interface used by the cache.
// This allows different logging implementations to be used.
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

// CacheEntry is one cached device with change-tracking timestamps.
type CacheEntry struct {
	snapshot.Entity

	// Category is the dashboard grouping the relevance filter assigned.
	Category string `json:"category"`

	// LastChanged is when the state value was last observed to transition.
	LastChanged time.Time `json:"last_changed"`

	// LastSeen is the last poll in which the device appeared. Entries are
	// not evicted when a device stops appearing; a growing LastSeen gap is
	// the signal a device has gone away.
	LastSeen time.Time `json:"last_seen"`
}

// Change describes one observed state transition, delivered to change
// listeners from inside the poll loop.
type Change struct {
	Entity   snapshot.Entity
	Category string

	// Previous is the prior state value, empty on first observation.
	Previous string

	At time.Time
}

// PollResult is the outcome of a single poll cycle.
type PollResult struct {
	// Latency is the fetch round-trip time.
	Latency time.Duration `json:"latency_ms"`

	// EntitiesRaw counts parsed entities before the relevance filter.
	EntitiesRaw int `json:"entities_raw"`

	// EntitiesKept counts entities after the relevance filter.
	EntitiesKept int `json:"entities_kept"`

	// Changed counts state transitions this cycle.
	Changed int `json:"changed"`
}

// PerformanceStats accumulates counters across polls. Counters are
// monotonic and reset only on process restart.
type PerformanceStats struct {
	TotalPolls    uint64    `json:"total_polls"`
	Errors        uint64    `json:"errors"`
	AvgLatencyMs  float64   `json:"avg_latency_ms"`
	LastError     string    `json:"last_error,omitempty"`
	LastErrorTime time.Time `json:"last_error_time,omitzero"`
	LastPollTime  time.Time `json:"last_poll_time,omitzero"`
	EntitiesRaw   int       `json:"entities_raw"`
	EntitiesKept  int       `json:"entities_kept"`
}
